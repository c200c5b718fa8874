package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"personachat/internal/extract"
	"personachat/internal/models"
	"personachat/internal/prompt"
)

var (
	// ErrNoImage rejects a persona request that carries no image bytes.
	ErrNoImage = errors.New("no image provided")

	// ErrEmptyMessage rejects a turn with blank text or no active persona.
	ErrEmptyMessage = errors.New("empty message or no active persona")

	// ErrHistoryTooLarge rejects a turn whose assembled request would no
	// longer fit the configured prompt ceiling.
	ErrHistoryTooLarge = errors.New("conversation history exceeds the prompt ceiling")
)

// FallbackReply is appended as the assistant turn whenever a completion
// fails, so the conversation never dangles on an unanswered user turn.
const FallbackReply = "I'm sorry, I'm having trouble finding my words right now. Could you say that again in a moment?"

// Snapshot is a point-in-time copy of one session, safe to serialize.
type Snapshot struct {
	Session  models.Session
	Persona  *models.Persona
	Messages []models.Turn
}

// Snapshot copies the session so callers can render it without holding locks.
func (m *Manager) Snapshot(id string) (*Snapshot, error) {
	st, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	snap := &Snapshot{
		Session:  models.Session{ID: st.id, CreatedAt: st.createdAt, UpdatedAt: st.updatedAt},
		Messages: append([]models.Turn(nil), st.log...),
	}
	if st.persona != nil {
		snap.Persona = st.persona.Clone()
	}
	return snap, nil
}

// CreatePersona sends the image upstream, validates the structured reply and
// installs the resulting persona. Installation is atomic: on any failure the
// previous persona and conversation log survive untouched; on success the
// log is reset so the new persona starts from a blank conversation.
func (m *Manager) CreatePersona(ctx context.Context, id string, img models.ImagePayload) (*models.Persona, error) {
	st, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if len(img.Data) == 0 {
		return nil, ErrNoImage
	}
	if !st.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer st.busy.Store(false)

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	defer cancel()

	text, err := m.gen.DescribePersona(callCtx, img)
	if err != nil {
		return nil, err
	}
	persona, err := extract.Persona(text)
	if err != nil {
		return nil, err
	}
	persona.CreatedAt = time.Now()

	st.mu.Lock()
	st.persona = persona
	st.log = nil
	st.updatedAt = persona.CreatedAt
	st.mu.Unlock()

	return persona.Clone(), nil
}

// SubmitTurn runs one conversation exchange: it assembles the full history
// behind the user's text, sends it upstream and appends exactly two turns.
// The user turn is appended before the call; if the completion fails the
// assistant slot is filled with FallbackReply and the error is returned
// alongside both turns so the caller can surface it.
func (m *Manager) SubmitTurn(ctx context.Context, id, text string) (userTurn, assistantTurn models.Turn, err error) {
	st, lookupErr := m.lookup(id)
	if lookupErr != nil {
		return models.Turn{}, models.Turn{}, lookupErr
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return models.Turn{}, models.Turn{}, fmt.Errorf("%w: blank message text", ErrEmptyMessage)
	}

	if !st.busy.CompareAndSwap(false, true) {
		return models.Turn{}, models.Turn{}, ErrBusy
	}
	defer st.busy.Store(false)

	st.mu.RLock()
	persona := st.persona
	history := append([]models.Turn(nil), st.log...)
	st.mu.RUnlock()

	if persona == nil {
		return models.Turn{}, models.Turn{}, fmt.Errorf("%w: no active persona", ErrEmptyMessage)
	}

	messages := prompt.Assemble(persona, history, text)
	if m.cfg.MaxPromptTokens > 0 {
		count, countErr := m.cfg.CountTokens(m.cfg.ModelName, messages)
		switch {
		case countErr != nil:
			// Token accounting is advisory; a broken tokenizer must not
			// block the conversation.
			log.Warn("token accounting unavailable", "error", countErr)
		case count > m.cfg.MaxPromptTokens:
			return models.Turn{}, models.Turn{}, fmt.Errorf("%w: %d tokens, ceiling %d",
				ErrHistoryTooLarge, count, m.cfg.MaxPromptTokens)
		}
	}

	userTurn = models.Turn{Role: models.RoleUser, Content: text, CreatedAt: time.Now()}
	st.append(userTurn)

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	defer cancel()

	reply, genErr := m.gen.Complete(callCtx, messages)
	if genErr != nil {
		assistantTurn = models.Turn{Role: models.RoleAssistant, Content: FallbackReply, CreatedAt: time.Now()}
		st.append(assistantTurn)
		return userTurn, assistantTurn, genErr
	}

	assistantTurn = models.Turn{Role: models.RoleAssistant, Content: reply, CreatedAt: time.Now()}
	st.append(assistantTurn)
	return userTurn, assistantTurn, nil
}
