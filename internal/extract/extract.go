// Package extract turns free-form provider output into a validated persona
// record. Providers rarely return bare JSON (the payload is usually wrapped
// in prose, markdown fences, or both), so extraction is deliberately lenient:
// carve the outermost brace-delimited substring, then validate strictly.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"personachat/internal/models"
)

var (
	// ErrNoStructuredPayload means the provider text contained no
	// brace-delimited substring at all.
	ErrNoStructuredPayload = errors.New("no structured payload in provider output")

	// ErrMalformedPersona means a candidate payload was found but failed to
	// decode or was missing required fields.
	ErrMalformedPersona = errors.New("malformed persona payload")
)

type personaPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Personality string   `json:"personality"`
	Background  string   `json:"background"`
	Traits      []string `json:"traits"`
}

// Persona parses raw provider text into a persona record.
//
// The candidate payload is the substring from the first '{' to the last '}'
// (greedy, so nested objects survive). Surrounding noise is ignored. The
// decoded object must carry non-blank name, description, personality and
// background strings plus a non-empty traits list of non-blank strings.
func Persona(text string) (*models.Persona, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return nil, ErrNoStructuredPayload
	}
	end := strings.LastIndex(text, "}")
	if end <= start {
		return nil, ErrNoStructuredPayload
	}
	candidate := text[start : end+1]

	var payload personaPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPersona, err)
	}

	required := []struct {
		field string
		value string
	}{
		{"name", payload.Name},
		{"description", payload.Description},
		{"personality", payload.Personality},
		{"background", payload.Background},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedPersona, r.field)
		}
	}
	if len(payload.Traits) == 0 {
		return nil, fmt.Errorf("%w: missing traits", ErrMalformedPersona)
	}
	for _, trait := range payload.Traits {
		if strings.TrimSpace(trait) == "" {
			return nil, fmt.Errorf("%w: blank trait entry", ErrMalformedPersona)
		}
	}

	return &models.Persona{
		Name:        payload.Name,
		Description: payload.Description,
		Personality: payload.Personality,
		Background:  payload.Background,
		Traits:      payload.Traits,
	}, nil
}
