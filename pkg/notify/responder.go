// Package notify reacts to push events and notification clicks. It is
// independent of the fetch pipeline and shares no state with it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/offline-worker/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// Defaults used when a push payload omits fields.
const (
	DefaultTitle = "Update"
	DefaultBody  = "Something new is waiting for you."
	DefaultIcon  = "/assets/icons/icon-192.png"
	DefaultURL   = "/"
)

// Payload is the optional JSON body of a push event. All fields are
// optional; absent fields use the documented defaults.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// ParsePayload decodes a push payload. A missing or malformed payload
// never fails the event: defaults are substituted instead.
func ParsePayload(data []byte) Payload {
	var p Payload
	if len(data) > 0 {
		// Malformed JSON falls through to defaults
		_ = json.Unmarshal(data, &p)
	}

	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.Body == "" {
		p.Body = DefaultBody
	}
	if p.URL == "" {
		p.URL = DefaultURL
	}
	return p
}

// Notification is a displayed notification with an attached navigation
// target.
type Notification struct {
	Title     string
	Body      string
	Icon      string
	TargetURL string
}

// Displayer is the hosting environment's notification surface.
type Displayer interface {
	Display(ctx context.Context, n Notification) error
	Close(ctx context.Context, n Notification) error
}

// ClientRegistry is the hosting environment's view of open client windows.
type ClientRegistry interface {
	// List returns identifiers of the currently open clients.
	List(ctx context.Context) ([]string, error)

	// Focus brings an open client to the foreground.
	Focus(ctx context.Context, clientID string) error

	// OpenWindow opens a new window at the given URL.
	OpenWindow(ctx context.Context, url string) error

	// ClaimAll takes control of all open clients for the active version.
	ClaimAll(ctx context.Context) error
}

// Responder handles push and notification-click events.
type Responder struct {
	displayer Displayer
	clients   ClientRegistry
	logger    zerolog.Logger
}

// NewResponder creates a notification responder.
func NewResponder(displayer Displayer, clients ClientRegistry, logger zerolog.Logger) (*Responder, error) {
	if displayer == nil {
		return nil, fmt.Errorf("displayer is required")
	}
	if clients == nil {
		return nil, fmt.Errorf("client registry is required")
	}
	return &Responder{
		displayer: displayer,
		clients:   clients,
		logger:    logger,
	}, nil
}

// HandlePush displays a notification for a push event. The payload is
// optional; parsing never fails the event.
func (r *Responder) HandlePush(ctx context.Context, payload []byte) error {
	p := ParsePayload(payload)

	n := Notification{
		Title:     p.Title,
		Body:      p.Body,
		Icon:      DefaultIcon,
		TargetURL: p.URL,
	}

	if err := r.displayer.Display(ctx, n); err != nil {
		pushesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("display notification: %w", err)
	}

	pushesTotal.WithLabelValues("displayed").Inc()
	r.logger.Debug().
		Str("title", n.Title).
		Str("target_url", n.TargetURL).
		Msg("Push notification displayed")

	return nil
}

// HandleClick reacts to a notification click: the notification is closed,
// then an existing open client is focused, or a new window opens at the
// notification's target. The work is registered on the waiter so the
// event lifetime covers it.
func (r *Responder) HandleClick(ctx context.Context, n Notification, w *lifecycle.Waiter) {
	w.Add(func() error {
		return r.click(ctx, n)
	})
}

func (r *Responder) click(ctx context.Context, n Notification) error {
	if err := r.displayer.Close(ctx, n); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to close notification")
	}

	clientIDs, err := r.clients.List(ctx)
	if err != nil {
		clicksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("list clients: %w", err)
	}

	if len(clientIDs) > 0 {
		if err := r.clients.Focus(ctx, clientIDs[0]); err != nil {
			clicksTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("focus client: %w", err)
		}
		clicksTotal.WithLabelValues("focused").Inc()
		r.logger.Debug().Str("client", clientIDs[0]).Msg("Focused existing client")
		return nil
	}

	if err := r.clients.OpenWindow(ctx, n.TargetURL); err != nil {
		clicksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("open window: %w", err)
	}
	clicksTotal.WithLabelValues("opened").Inc()
	r.logger.Debug().Str("url", n.TargetURL).Msg("Opened new client window")
	return nil
}
