package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// MemoryRegistry is an in-process ClientRegistry tracking connected client
// windows by identifier. The gateway registers a client when a page
// connects and removes it when the connection drops.
type MemoryRegistry struct {
	mu      sync.Mutex
	order   []string
	focused string
	claimed int
	logger  zerolog.Logger
}

// NewMemoryRegistry creates an empty in-memory client registry.
func NewMemoryRegistry(logger zerolog.Logger) *MemoryRegistry {
	return &MemoryRegistry{logger: logger}
}

// Register adds a connected client.
func (m *MemoryRegistry) Register(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if id == clientID {
			return
		}
	}
	m.order = append(m.order, clientID)
}

// Unregister removes a disconnected client.
func (m *MemoryRegistry) Unregister(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range m.order {
		if id == clientID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// List returns the connected client identifiers in registration order.
func (m *MemoryRegistry) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out, nil
}

// Focus marks a client as foregrounded.
func (m *MemoryRegistry) Focus(ctx context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if id == clientID {
			m.focused = clientID
			return nil
		}
	}
	return fmt.Errorf("unknown client %q", clientID)
}

// Focused returns the identifier of the last focused client.
func (m *MemoryRegistry) Focused() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// OpenWindow registers a fresh client window at the given URL.
func (m *MemoryRegistry) OpenWindow(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("window-%d:%s", len(m.order)+1, url)
	m.order = append(m.order, id)
	m.focused = id
	return nil
}

// ClaimAll takes control of every connected client.
func (m *MemoryRegistry) ClaimAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimed++
	m.logger.Debug().Int("clients", len(m.order)).Msg("Claimed open clients")
	return nil
}

// LogDisplayer renders notifications to the structured log. It stands in
// for a real notification surface when the gateway runs headless.
type LogDisplayer struct {
	logger zerolog.Logger
}

// NewLogDisplayer creates a displayer writing to the given logger.
func NewLogDisplayer(logger zerolog.Logger) *LogDisplayer {
	return &LogDisplayer{logger: logger}
}

// Display logs the notification.
func (d *LogDisplayer) Display(ctx context.Context, n Notification) error {
	d.logger.Info().
		Str("title", n.Title).
		Str("body", n.Body).
		Str("target_url", n.TargetURL).
		Msg("Notification")
	return nil
}

// Close logs the dismissal.
func (d *LogDisplayer) Close(ctx context.Context, n Notification) error {
	d.logger.Debug().
		Str("title", n.Title).
		Msg("Notification closed")
	return nil
}
