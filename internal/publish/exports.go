package publish

import (
	"context"
	"fmt"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// ExportMoonshot records that a moonshot was handed off to an external
// funding platform. The record is immutable and append-only; exporting
// the same moonshot twice produces two records, and readers treat any
// matching record as "exported".
func (e *Engine) ExportMoonshot(ctx context.Context, moonshot *codec.Moonshot, projectRef string) (*codec.ExportRecord, error) {
	if moonshot.ID == "" || moonshot.EventID == "" {
		return nil, fmt.Errorf("moonshot is not a fetched live state")
	}

	rec := &codec.ExportRecord{
		ID:              NewID(),
		MoonshotEventID: moonshot.EventID,
		Moonshot:        moonshot.Ref(),
		ProjectRef:      projectRef,
	}

	event := codec.EncodeExport(rec)
	if err := e.signAndPublish(ctx, event); err != nil {
		return nil, err
	}

	rec.Pubkey = event.PubKey
	rec.EventID = event.ID
	rec.CreatedAt = int64(event.CreatedAt)

	return rec, nil
}
