package llms

import (
	"fmt"
	"strings"

	"pko/internal/rag/schema"
)

// maxHistoryTurns bounds how much conversation history is rendered into the
// prompt; only the most recent turns are kept.
const maxHistoryTurns = 10

// BuildPrompt assembles the shared prompt every generation backend must use:
// an instruction block restricting the answer to the supplied context,
// optionally prefixed with recent history as "ROLE: content" lines, followed
// by the context, the question, and a trailing "Answer:" cue.
func BuildPrompt(context, question string, history []schema.HistoryItem) string {
	var sb strings.Builder

	sb.WriteString("You are a helpful assistant for a personal knowledge organizer.\n")
	sb.WriteString("You must answer **only** based on the provided context.\n")
	sb.WriteString("If the answer cannot be found in the context, reply explicitly that " +
		`"the answer is not found in the provided documents.".` + "\n\n")

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history) > 0 {
		sb.WriteString("Conversation history:\n")
		for _, item := range history {
			role := item.Role
			if role == "" {
				role = "user"
			}
			sb.WriteString(fmt.Sprintf("%s: %s\n", strings.ToUpper(role), item.Content))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Context:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nQuestion:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}
