package completion

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// History stores conversation turns under generated response IDs so back-ends
// without server-side continuation can honor PreviousResponseID.
type History struct {
	mu    sync.RWMutex
	turns map[string][]Message
}

func NewHistory() *History {
	return &History{turns: make(map[string][]Message)}
}

// Resolve returns the turns that precede a request chained to previousID,
// followed by the request's own turns.
func (h *History) Resolve(previousID string, turns []Message) ([]Message, error) {
	if previousID == "" {
		return append([]Message(nil), turns...), nil
	}

	h.mu.RLock()
	prior, ok := h.turns[previousID]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResponse, previousID)
	}

	out := make([]Message, 0, len(prior)+len(turns))
	out = append(out, prior...)
	return append(out, turns...), nil
}

// Record returns a new response ID for reply. The full conversation is stored
// under that ID only when keep is set; other IDs cannot be continued.
func (h *History) Record(conversation []Message, reply string, keep bool) string {
	id := "resp_" + uuid.NewString()
	if !keep {
		return id
	}

	stored := make([]Message, 0, len(conversation)+1)
	stored = append(stored, conversation...)
	stored = append(stored, Message{Role: RoleAssistant, Content: reply})

	h.mu.Lock()
	h.turns[id] = stored
	h.mu.Unlock()
	return id
}

// Len reports how many conversations are stored.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
