package chat

import (
	"strings"

	"github.com/ragkit/ragkit/internal/session"
)

// systemInstruction frames every generation request: the model grounds its
// answer in both the replayed history and the retrieved context.
const systemInstruction = "You are a helpful AI assistant with memory and retrieval. Always use:\n" +
	"1) The conversation history\n" +
	"2) Retrieved database context"

// buildPrompt assembles the full generation prompt: instruction, replayed
// conversation history, retrieved context, and the current question.
//
// History roles are rendered uppercase (USER / ASSISTANT) so the transcript
// format matches the trailing "USER: ... ASSISTANT:" cue.
func buildPrompt(query, contextBlock string, history []session.Message) string {
	var sb strings.Builder

	sb.WriteString(systemInstruction)
	sb.WriteString("\n\n")

	if len(history) > 0 {
		sb.WriteString("Conversation history:\n")
		for _, msg := range history {
			sb.WriteString(strings.ToUpper(string(msg.Role)))
			sb.WriteString(": ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Retrieved Context:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n\n")

	sb.WriteString("USER: ")
	sb.WriteString(query)
	sb.WriteString("\nASSISTANT:")

	return sb.String()
}
