package codec

import (
	"fmt"
	"strconv"

	"github.com/nbd-wtf/go-nostr"
)

// Status enumerates moonshot lifecycle states
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusAssigned   Status = "assigned"
)

// IsValid reports whether the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusAssigned:
		return true
	}
	return false
}

// Moonshot is a project proposal. The identifier is stable across edits;
// the live state is the newest event sharing (kind, pubkey, identifier).
type Moonshot struct {
	ID      string // stable identifier ("d" tag), unique per creator
	Pubkey  string // creator
	EventID string // physical event currently carrying this state

	Title      string
	Content    string   // markdown body
	Budget     string   // decimal sats, or BudgetTBD
	Timeline   string   // months; legacy field, decoded but no longer published
	Topics     []string // order-preserving
	Status     Status
	Explorable bool  // false = retired (soft delete)
	CreatedAt  int64 // unix seconds
}

// Ref returns the composite reference to this moonshot
func (m *Moonshot) Ref() EntityRef {
	return MoonshotRef(m.Pubkey, m.ID)
}

// BudgetSats returns the budget as an integer, false when it is TBD
func (m *Moonshot) BudgetSats() (int64, bool) {
	n, err := strconv.ParseInt(m.Budget, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// EncodeMoonshot builds the unsigned live event for a moonshot
func EncodeMoonshot(m *Moonshot) *nostr.Event {
	createdAt := nostr.Timestamp(m.CreatedAt)
	if m.CreatedAt == 0 {
		createdAt = nostr.Now()
	}

	status := m.Status
	if status == "" {
		status = StatusOpen
	}

	tags := nostr.Tags{
		{TagIdentifier, m.ID},
		{TagCategory, CategoryMoonshot},
		{TagTitle, m.Title},
		{TagBudget, m.Budget},
		{TagStatus, string(status)},
		{TagExplorable, strconv.FormatBool(m.Explorable)},
	}

	if len(m.Topics) > 0 {
		topics := append(nostr.Tag{TagTopics}, m.Topics...)
		tags = append(tags, topics)
	}

	return &nostr.Event{
		Kind:      KindEntity,
		CreatedAt: createdAt,
		Tags:      tags,
		Content:   m.Content,
	}
}

// DecodeMoonshot parses a moonshot from its event. Missing identifier or
// title is a parse failure; the caller skips the event and continues.
func DecodeMoonshot(event *nostr.Event) (*Moonshot, error) {
	if event.Kind != KindEntity {
		return nil, fmt.Errorf("expected kind %d, got %d", KindEntity, event.Kind)
	}
	if !HasCategory(event, CategoryMoonshot) {
		return nil, fmt.Errorf("event %s is not a moonshot", event.ID)
	}

	id := firstTagValue(event, TagIdentifier)
	if id == "" {
		return nil, fmt.Errorf("moonshot event %s missing identifier", event.ID)
	}

	title := firstTagValue(event, TagTitle)
	if title == "" {
		return nil, fmt.Errorf("moonshot event %s missing title", event.ID)
	}

	m := &Moonshot{
		ID:         id,
		Pubkey:     event.PubKey,
		EventID:    event.ID,
		Title:      title,
		Content:    event.Content,
		Budget:     decodeBudget(firstTagValue(event, TagBudget)),
		Timeline:   firstTagValue(event, TagTimeline),
		Status:     decodeStatus(firstTagValue(event, TagStatus)),
		Explorable: decodeExplorable(firstTagValue(event, TagExplorable)),
		CreatedAt:  int64(event.CreatedAt),
	}

	if topics := firstTag(event, TagTopics); len(topics) > 1 {
		m.Topics = append([]string(nil), topics[1:]...)
	}

	return m, nil
}

// decodeBudget substitutes the TBD sentinel for missing or non-numeric values
func decodeBudget(value string) string {
	if value == "" {
		return BudgetTBD
	}
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		return BudgetTBD
	}
	return value
}

func decodeStatus(value string) Status {
	s := Status(value)
	if !s.IsValid() {
		return StatusOpen
	}
	return s
}

// decodeExplorable defaults to true; only an explicit "false" retires
func decodeExplorable(value string) bool {
	return value != "false"
}
