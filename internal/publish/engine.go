// Package publish constructs, signs and publishes mutation events.
//
// Signing is delegated to the external signer capability; the secret key
// never enters this package. Publication fans out to every configured
// relay and resolves on the first of "all relays acknowledged" or the
// configured timeout; a timeout is not a failure.
package publish

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/xid"

	"github.com/mistic0xb/moonshot-sub000/internal/config"
	nostrclient "github.com/mistic0xb/moonshot-sub000/internal/nostr"
	"github.com/mistic0xb/moonshot-sub000/internal/ops"
)

// Publisher is the slice of the relay client the engine needs
type Publisher interface {
	PublishEvent(ctx context.Context, relays []string, event *nostr.Event) error
}

// Engine signs and publishes mutation events
type Engine struct {
	publisher Publisher
	signer    nostrclient.Signer
	relays    []string
	timeout   time.Duration
	log       *ops.Logger
}

// New creates a mutation engine from configuration
func New(publisher Publisher, signer nostrclient.Signer, cfg *config.Config) *Engine {
	return &Engine{
		publisher: publisher,
		signer:    signer,
		relays:    cfg.Relays.Seeds,
		timeout:   time.Duration(cfg.Publish.TimeoutSeconds) * time.Second,
		log:       ops.Default().WithComponent("publish"),
	}
}

// NewWithTimeout creates a mutation engine with an explicit bound
func NewWithTimeout(publisher Publisher, signer nostrclient.Signer, relays []string, timeout time.Duration) *Engine {
	return &Engine{
		publisher: publisher,
		signer:    signer,
		relays:    relays,
		timeout:   timeout,
		log:       ops.Default().WithComponent("publish"),
	}
}

// NewID generates a random, globally unique entity identifier. Not
// derived from content, so independent creators cannot collide.
func NewID() string {
	return xid.New().String()
}

// signAndPublish signs the unsigned event and fans it out. Signer absence
// and signer rejection propagate to the caller; a publish timeout does
// not, since whatever reached a relay before the deadline is delivery
// enough.
func (e *Engine) signAndPublish(ctx context.Context, event *nostr.Event) error {
	if e.signer == nil {
		return nostrclient.ErrNoSigner
	}

	if err := e.signer.Sign(ctx, event); err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.publisher.PublishEvent(pubCtx, e.relays, event); err != nil {
		if pubCtx.Err() != nil {
			e.log.Warn("publish timed out, treating as delivered",
				"event_id", event.ID, "kind", event.Kind)
			return nil
		}
		return err
	}

	return nil
}
