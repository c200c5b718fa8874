package models

import "time"

// Persona is the character profile synthesized from an uploaded image.
// Once installed on a session it is never mutated; a new image upload
// replaces it wholesale.
type Persona struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Personality string    `json:"personality"`
	Background  string    `json:"background"`
	Traits      []string  `json:"traits"`
	CreatedAt   time.Time `json:"created_at"`
}

// Clone returns a deep copy so callers cannot reach into the installed record.
func (p *Persona) Clone() *Persona {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Traits = append([]string(nil), p.Traits...)
	return &cp
}
