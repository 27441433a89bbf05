package publish

import (
	"context"
	"fmt"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// CreateMoonshot publishes a new moonshot under a fresh identifier.
// The returned entity carries the assigned identifier, the signing
// pubkey and the live event id.
func (e *Engine) CreateMoonshot(ctx context.Context, draft *codec.Moonshot) (*codec.Moonshot, error) {
	if draft.Title == "" {
		return nil, fmt.Errorf("moonshot title is required")
	}

	m := *draft
	m.ID = NewID()
	m.Explorable = true
	if m.Status == "" {
		m.Status = codec.StatusOpen
	}
	m.CreatedAt = 0 // fresh timestamp at encode time

	event := codec.EncodeMoonshot(&m)
	if err := e.signAndPublish(ctx, event); err != nil {
		return nil, err
	}

	m.Pubkey = event.PubKey
	m.EventID = event.ID
	m.CreatedAt = int64(event.CreatedAt)

	return &m, nil
}

// UpdateMoonshot replaces the live state of a moonshot. The pre-update
// state is preserved as an immutable snapshot first; only after that
// snapshot is out does the new live event go up under the same
// identifier. The two publishes are sequential, not atomic: a failure
// after step one leaves an orphaned snapshot and an unchanged live
// state, which reads the same as no update at all.
func (e *Engine) UpdateMoonshot(ctx context.Context, current *codec.Moonshot, next *codec.Moonshot) (*codec.Moonshot, error) {
	if current.ID == "" || current.EventID == "" {
		return nil, fmt.Errorf("current moonshot is not a fetched live state")
	}
	if next.Title == "" {
		return nil, fmt.Errorf("moonshot title is required")
	}

	if err := e.snapshotCurrent(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to preserve version history: %w", err)
	}

	m := *next
	m.ID = current.ID
	m.Pubkey = current.Pubkey
	m.CreatedAt = 0

	event := codec.EncodeMoonshot(&m)
	if err := e.signAndPublish(ctx, event); err != nil {
		return nil, err
	}

	m.Pubkey = event.PubKey
	m.EventID = event.ID
	m.CreatedAt = int64(event.CreatedAt)

	return &m, nil
}

// RetireMoonshot soft-deletes a moonshot by republishing it with
// explorable=false. Relays never truly forget; the explore listing just
// stops showing it. Deletion is not itself versioned, so no snapshot
// precedes it.
func (e *Engine) RetireMoonshot(ctx context.Context, current *codec.Moonshot) (*codec.Moonshot, error) {
	if current.ID == "" {
		return nil, fmt.Errorf("current moonshot is not a fetched live state")
	}

	m := *current
	m.Explorable = false
	m.CreatedAt = 0

	event := codec.EncodeMoonshot(&m)
	if err := e.signAndPublish(ctx, event); err != nil {
		return nil, err
	}

	m.Pubkey = event.PubKey
	m.EventID = event.ID
	m.CreatedAt = int64(event.CreatedAt)

	return &m, nil
}
