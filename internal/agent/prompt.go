package agent

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/hostline/concierge/internal/knowledge"
	"github.com/hostline/concierge/internal/memory"
)

const systemPrompt = `You are a helpful assistant for a short-term rental property
management company. Guests message you over WhatsApp with questions about
properties, bookings, availability, pricing, and policies.

Guidelines:
- Answer from the business context below when it covers the question.
- Use the available tools for availability checks, property details, and
  property listings. Do not invent availability or prices.
- Keep replies short and friendly; they are read on a phone.
- If you do not know something, say so and offer to connect the guest
  with the support team.`

// buildMessages assembles the model request: system prompt with the
// retrieved business context, the conversation window in chronological
// order, then the incoming message. Retrieved chunks are injected in
// ranking order.
func buildMessages(results []knowledge.Result, window []memory.Turn, userMessage string) []*ai.Message {
	var sys strings.Builder
	sys.WriteString(systemPrompt)
	if len(results) > 0 {
		sys.WriteString("\n\nBusiness context:\n")
		for _, r := range results {
			fmt.Fprintf(&sys, "- %s\n", r.Content)
		}
	}

	msgs := make([]*ai.Message, 0, len(window)+2)
	msgs = append(msgs, &ai.Message{
		Role:    ai.RoleSystem,
		Content: []*ai.Part{ai.NewTextPart(sys.String())},
	})

	for _, turn := range window {
		role := ai.RoleUser
		if turn.Role == memory.RoleAssistant {
			role = ai.RoleModel
		}
		msgs = append(msgs, &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(turn.Content)},
		})
	}

	msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(userMessage)))
	return msgs
}
