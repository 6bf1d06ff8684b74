package chat

import (
	"fmt"
	"strings"

	"github.com/HelloJC24/BNGCIA/retrieval"
)

const systemPrompt = "You are a knowledgeable assistant for company information. " +
	"Answer questions using ONLY the provided sources. " +
	"If information isn't in the sources, say you don't have that information. " +
	"Be conversational and reference previous context when relevant. " +
	"Always cite sources with URLs."

const contextSeparator = "\n---\n"

// buildContext greedily packs ranked matches into a context block of at most
// maxContextChars characters. A match that would overflow the budget ends
// the packing; it is never truncated mid-chunk. The returned sources mirror
// exactly the matches that made it into the block.
func buildContext(matches []retrieval.Match, maxContextChars int) (string, []Source) {
	var (
		pieces  []string
		sources []Source
		total   int
	)

	for i, match := range matches {
		piece := fmt.Sprintf("[Source %d: %s (relevance: %.2f)]\n%s\n", i+1, match.Chunk.URL, match.Score, match.Chunk.Text)

		cost := len(piece)
		if len(pieces) > 0 {
			cost += len(contextSeparator)
		}
		if total+cost > maxContextChars {
			break
		}

		pieces = append(pieces, piece)
		total += cost

		preview := match.Chunk.Text
		if runes := []rune(preview); len(runes) > sourcePreviewLen {
			preview = string(runes[:sourcePreviewLen]) + "..."
		}
		sources = append(sources, Source{
			Score: match.Score,
			ID:    match.Chunk.ID,
			URL:   match.Chunk.URL,
			Text:  preview,
		})
	}

	return strings.Join(pieces, contextSeparator), sources
}

func formatUserPrompt(query, contextBlock string, history []Message) string {
	var sb strings.Builder

	recent := history
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}
	if len(recent) > 0 {
		sb.WriteString("PREVIOUS CONVERSATION:\n")
		for _, msg := range recent {
			sb.WriteString(strings.ToUpper(msg.Role))
			sb.WriteString(": ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("CURRENT QUESTION: ")
	sb.WriteString(query)
	sb.WriteString("\n\nSOURCES:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n\nPlease answer the current question using the provided sources and considering the conversation context. Include citations with URLs for any information you use.")

	return sb.String()
}
