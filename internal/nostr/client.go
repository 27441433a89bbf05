package nostr

import (
	"context"
	"fmt"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/mistic0xb/moonshot-sub000/internal/config"
	"github.com/mistic0xb/moonshot-sub000/internal/ops"
)

// Client provides a high-level interface for interacting with Nostr relays.
// All queries and publishes fan out to the full configured relay set.
type Client struct {
	pool        *nostr.SimplePool
	relayConfig *config.Relays
	log         *ops.Logger
	ctx         context.Context
}

// New creates a new Nostr client with the given configuration
func New(ctx context.Context, relayConfig *config.Relays) *Client {
	pool := nostr.NewSimplePool(ctx)
	return &Client{
		pool:        pool,
		relayConfig: relayConfig,
		log:         ops.Default().WithComponent("nostr"),
		ctx:         ctx,
	}
}

var (
	sharedOnce   sync.Once
	sharedClient *Client
)

// Shared returns the process-wide client, lazily created on first use.
// The underlying pool is shared by every logical query; each subscription
// carries its own filter and callbacks, so callers never interfere.
// It is never explicitly torn down.
func Shared(relayConfig *config.Relays) *Client {
	sharedOnce.Do(func() {
		sharedClient = New(context.Background(), relayConfig)
	})
	return sharedClient
}

// Pool returns the underlying SimplePool for advanced operations
func (c *Client) Pool() *nostr.SimplePool {
	return c.pool
}

// FetchEvents fetches stored events matching the filter from every relay.
// The returned channel closes once all relays signal EOSE or ctx is done;
// the caller bounds the wait with its own deadline.
func (c *Client) FetchEvents(ctx context.Context, relays []string, filter nostr.Filter) ([]*nostr.Event, error) {
	events := make([]*nostr.Event, 0)

	for relayEvent := range c.pool.SubManyEose(ctx, relays, nostr.Filters{filter}) {
		if relayEvent.Event != nil {
			events = append(events, relayEvent.Event)
		}
	}

	return events, nil
}

// FetchOne fetches the first event matching an arbitrary filter, closing
// the subscription as soon as a match arrives. With an id filter this is
// the single-event lookup: at most one event can ever match.
func (c *Client) FetchOne(ctx context.Context, relays []string, filter nostr.Filter) (*nostr.Event, error) {
	result := c.pool.QuerySingle(ctx, relays, filter)
	if result == nil || result.Event == nil {
		return nil, fmt.Errorf("no event matched filter")
	}

	return result.Event, nil
}

// PublishEvent publishes an event to the given relays. It resolves once
// every relay has responded or ctx expires; only a total failure with
// zero acknowledgements is an error, partial delivery counts.
func (c *Client) PublishEvent(ctx context.Context, relays []string, event *nostr.Event) error {
	results := c.pool.PublishMany(ctx, relays, *event)

	var lastErr error
	successCount := 0

	for result := range results {
		if result.Error != nil {
			lastErr = result.Error
		} else {
			successCount++
		}
	}

	c.log.LogPublish(event.ID, event.Kind, successCount, len(relays), nil)

	if successCount == 0 && lastErr != nil {
		return fmt.Errorf("failed to publish to any relay: %w", lastErr)
	}

	return nil
}

// SubscribeEvents subscribes to live events matching the filters on the
// given relays. The returned channel is closed when ctx is cancelled;
// cancelling ctx is the caller's close operation and releases the
// underlying relay subscriptions.
func (c *Client) SubscribeEvents(ctx context.Context, relays []string, filters nostr.Filters) <-chan *nostr.Event {
	eventChan := make(chan *nostr.Event, 100)

	go func() {
		defer close(eventChan)

		count := 0
		for relayEvent := range c.pool.SubMany(ctx, relays, filters) {
			if relayEvent.Event == nil {
				continue
			}
			count++

			select {
			case eventChan <- relayEvent.Event:
			case <-ctx.Done():
				c.log.Debug("subscription cancelled", "events", count)
				return
			}
		}
	}()

	return eventChan
}

// Close closes all relay connections
func (c *Client) Close() {
	c.pool.Close("client shutting down")
}

// GetSeedRelays returns the configured seed relays
func (c *Client) GetSeedRelays() []string {
	if c.relayConfig == nil {
		return []string{}
	}
	return c.relayConfig.Seeds
}
