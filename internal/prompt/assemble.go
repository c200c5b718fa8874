// Package prompt builds completion requests from a persona record and a
// conversation log. Assembly is a pure function: identical inputs always
// produce identical message lists, and the full log is resent on every turn
// with no truncation or windowing.
package prompt

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"personachat/internal/models"
)

const systemTemplate = `You are %s. %s

Personality: %s

Background: %s

Traits: %s

Stay in character as %s at all times. Respond in 2-4 sentences unless the conversation calls for more, and let the emotion in your replies reflect your traits.`

// SystemInstruction renders the persona record into the fixed system prompt
// that seeds every completion request.
func SystemInstruction(p *models.Persona) string {
	return fmt.Sprintf(systemTemplate,
		p.Name,
		p.Description,
		p.Personality,
		p.Background,
		strings.Join(p.Traits, ", "),
		p.Name,
	)
}

// Assemble produces the ordered message list for a chat-turn request: the
// system instruction first, every logged turn in log order with its role
// preserved, and the new user message last.
func Assemble(p *models.Persona, log []models.Turn, userText string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(log)+2)
	messages = append(messages, &schema.Message{
		Role:    schema.System,
		Content: SystemInstruction(p),
	})
	for _, turn := range log {
		messages = append(messages, &schema.Message{
			Role:    toSchemaRole(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, &schema.Message{
		Role:    schema.User,
		Content: userText,
	})
	return messages
}

func toSchemaRole(role models.Role) schema.RoleType {
	switch role {
	case models.RoleUser:
		return schema.User
	case models.RoleAssistant:
		return schema.Assistant
	case models.RoleSystem:
		return schema.System
	default:
		return schema.User
	}
}
