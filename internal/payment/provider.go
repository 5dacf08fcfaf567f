// Package payment submits finalized checkout drafts to the storefront API
// and drives the two completion paths: immediate redirect for manual bank
// transfer, and an embedded third-party widget for automatic payment.
package payment

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// Outcome is a payment widget callback result.
type Outcome string

const (
	// OutcomeSuccess means the widget reported a settled payment.
	OutcomeSuccess Outcome = "success"
	// OutcomePending means payment was initiated but not yet settled.
	OutcomePending Outcome = "pending"
	// OutcomeClosed means the customer dismissed the widget without paying.
	OutcomeClosed Outcome = "close"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomePending || o == OutcomeClosed
}

// ErrWidgetUnavailable is returned when the payment widget cannot be
// reached. Submission is blocked with a notice; nothing is mutated.
var ErrWidgetUnavailable = errors.New("payment widget is unavailable")

// Callbacks receives widget outcomes. The three outcomes are distinct on
// purpose even though the default routing sends them all to the same page;
// see the orchestrator's route table.
type Callbacks struct {
	OnSuccess func(ctx context.Context)
	OnPending func(ctx context.Context)
	OnClose   func(ctx context.Context)
}

// Embedding tells the UI how to mount the widget for one payment session.
type Embedding struct {
	Token     string `json:"token"`
	EmbedID   string `json:"embed_id"`
	ScriptURL string `json:"script_url"`
	ClientKey string `json:"client_key"`
}

// Provider is the payment widget lifecycle. The real widget is an ambient
// third-party script; modeling it as an interface keeps the orchestrator
// testable with a fake.
type Provider interface {
	// Load ensures the widget is reachable. It must be polled/awaited, not
	// assumed: absence is a recoverable user-facing error.
	Load(ctx context.Context) error
	// Embed registers callbacks for a payment session token and returns
	// the embedding instructions for the UI.
	Embed(ctx context.Context, token string, cb Callbacks) (*Embedding, error)
	// Dispatch routes a reported outcome to the callbacks registered for
	// token. It returns false when the token is unknown (stale or replayed
	// callback).
	Dispatch(ctx context.Context, token string, outcome Outcome) bool
	// Unload drops the registration for token. No two embeddings for the
	// same token coexist.
	Unload(token string)
}

// SnapConfig configures the snap widget provider.
type SnapConfig struct {
	// ScriptURL is the widget bootstrap script location, also probed for
	// availability.
	ScriptURL string
	// ClientKey authenticates the storefront to the widget.
	ClientKey string
	// EmbedID is the DOM container the UI mounts the widget into.
	EmbedID string
	// LoadTimeout bounds the availability poll.
	LoadTimeout time.Duration
	// PollInterval is the delay between availability probes.
	PollInterval time.Duration
}

// SnapProvider embeds the snap payment widget. Availability is verified by
// probing the script URL; the result is cached until a probe fails again.
type SnapProvider struct {
	cfg  SnapConfig
	http *http.Client

	mu       sync.Mutex
	loaded   bool
	sessions map[string]Callbacks
}

var _ Provider = (*SnapProvider)(nil)

// NewSnapProvider creates a SnapProvider.
func NewSnapProvider(cfg SnapConfig) *SnapProvider {
	if cfg.EmbedID == "" {
		cfg.EmbedID = "snap-container"
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &SnapProvider{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.LoadTimeout},
		sessions: make(map[string]Callbacks),
	}
}

// Load probes the widget script until it answers or the timeout elapses.
func (p *SnapProvider) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.loaded {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.LoadTimeout)
	defer cancel()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if p.probe(ctx) {
			p.mu.Lock()
			p.loaded = true
			p.mu.Unlock()
			return nil
		}
		select {
		case <-ctx.Done():
			return ErrWidgetUnavailable
		case <-ticker.C:
		}
	}
}

func (p *SnapProvider) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.cfg.ScriptURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 400
}

// Embed registers the session callbacks and returns mount instructions.
func (p *SnapProvider) Embed(_ context.Context, token string, cb Callbacks) (*Embedding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		return nil, ErrWidgetUnavailable
	}
	p.sessions[token] = cb

	return &Embedding{
		Token:     token,
		EmbedID:   p.cfg.EmbedID,
		ScriptURL: p.cfg.ScriptURL,
		ClientKey: p.cfg.ClientKey,
	}, nil
}

// Dispatch invokes the registered callback for the outcome and drops the
// registration: one outcome per embedding.
func (p *SnapProvider) Dispatch(ctx context.Context, token string, outcome Outcome) bool {
	p.mu.Lock()
	cb, ok := p.sessions[token]
	if ok {
		delete(p.sessions, token)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}

	switch outcome {
	case OutcomeSuccess:
		if cb.OnSuccess != nil {
			cb.OnSuccess(ctx)
		}
	case OutcomePending:
		if cb.OnPending != nil {
			cb.OnPending(ctx)
		}
	case OutcomeClosed:
		if cb.OnClose != nil {
			cb.OnClose(ctx)
		}
	default:
		return false
	}
	return true
}

// Unload drops the registration for token.
func (p *SnapProvider) Unload(token string) {
	p.mu.Lock()
	delete(p.sessions, token)
	p.mu.Unlock()
}
