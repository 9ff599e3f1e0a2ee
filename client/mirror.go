package client

import (
	"context"
	"sort"
	"sync"

	"github.com/shiftline/notifier/models"
)

// Snapshot is the authoritative REST response for a principal's feed.
type Snapshot struct {
	Items       []models.FeedItem `json:"items"`
	Total       int               `json:"total"`
	UnreadCount int               `json:"unreadCount"`
}

// FeedAPI is the REST surface the mirror reconciles against.
type FeedAPI interface {
	FetchSnapshot(ctx context.Context, limit, offset int) (*Snapshot, error)
	MarkRead(ctx context.Context, id uint) (*models.FeedItem, error)
}

// Mirror merges the REST snapshot and the push stream into one
// deduplicated, most-recent-first view. The same notification legitimately
// arrives on both channels around reconnects; dedup-by-id collapses every
// arrival order to a single entry.
type Mirror struct {
	api FeedAPI

	mu      sync.Mutex
	entries []models.FeedItem
}

func NewMirror(api FeedAPI) *Mirror {
	return &Mirror{api: api}
}

// LoadSnapshot fetches the most recent notifications and merges them into
// the view. Snapshot entries win over local copies with the same id; local
// entries the snapshot does not contain are kept.
func (m *Mirror) LoadSnapshot(ctx context.Context, limit int) error {
	snap, err := m.api.FetchSnapshot(ctx, limit, 0)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[uint]bool, len(snap.Items))
	merged := make([]models.FeedItem, 0, len(snap.Items)+len(m.entries))
	merged = append(merged, snap.Items...)
	for _, item := range snap.Items {
		seen[item.ID] = true
	}
	for _, item := range m.entries {
		if !seen[item.ID] {
			merged = append(merged, item)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
	})
	m.entries = merged
	return nil
}

// OnPush merges one push arrival: an existing entry with the same id is
// replaced and moved to the front, a new one is prepended. Arrival order
// across the two channels is not guaranteed, so this treats every push as
// the latest touch.
func (m *Mirror) OnPush(item models.FeedItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := m.entries[:0:len(m.entries)]
	for _, existing := range m.entries {
		if existing.ID != item.ID {
			filtered = append(filtered, existing)
		}
	}
	m.entries = append([]models.FeedItem{item}, filtered...)
}

// UnreadCount is always recomputed from the deduplicated view, never
// incremented imperatively, so the two update paths cannot drift.
func (m *Mirror) UnreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, item := range m.entries {
		if item.Status == models.StatusUnread {
			count++
		}
	}
	return count
}

// MarkRead invokes the store mutation and overwrites the local entry with
// the server-returned state. No optimistic flip: the read transition is
// only as trustworthy as the server's answer.
func (m *Mirror) MarkRead(ctx context.Context, id uint) error {
	item, err := m.api.MarkRead(ctx, id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.entries {
		if existing.ID == item.ID {
			m.entries[i] = *item
			return nil
		}
	}
	m.entries = append([]models.FeedItem{*item}, m.entries...)
	return nil
}

// Entries returns a copy of the current view, most recent first.
func (m *Mirror) Entries() []models.FeedItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.FeedItem, len(m.entries))
	copy(out, m.entries)
	return out
}
