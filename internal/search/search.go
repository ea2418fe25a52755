// Package search indexes tickets for front-desk lookup by customer name,
// device or problem text.
package search

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fixflow-io/fixflow/internal/repair"
)

type Hit struct {
	TicketID string  `json:"ticket_id"`
	Customer string  `json:"customer"`
	Device   string  `json:"device"`
	Problem  string  `json:"problem"`
	Score    float64 `json:"score"`
}

type Index interface {
	// IndexTicket upserts a ticket into the index.
	IndexTicket(ctx context.Context, t *repair.Ticket) error
	// Search returns matching tickets sorted by score desc, truncated to
	// limit; total is the untruncated match count.
	Search(ctx context.Context, q string, limit int) ([]*Hit, int, error)
}

type indexedTicket struct {
	id       string
	customer string
	device   string
	problem  string
}

// MemoryIndex is the default backend: a linear scan with field-weighted
// substring scoring. Fine at single-shop scale; the ES backend takes over
// when a cluster is configured.
type MemoryIndex struct {
	mu      sync.RWMutex
	tickets map[string]indexedTicket
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{tickets: make(map[string]indexedTicket)}
}

func (m *MemoryIndex) IndexTicket(ctx context.Context, t *repair.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = indexedTicket{
		id:       t.ID,
		customer: t.Customer.Name,
		device:   strings.TrimSpace(t.Device.Brand + " " + t.Device.Model + " " + t.Device.Serial),
		problem:  t.Problem,
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, q string, limit int) ([]*Hit, int, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []*Hit{}, 0, nil
	}
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []*Hit
	for _, t := range m.tickets {
		score := 0.0
		if strings.Contains(strings.ToLower(t.id), q) {
			score += 3
		}
		if strings.Contains(strings.ToLower(t.customer), q) {
			score += 2
		}
		if strings.Contains(strings.ToLower(t.device), q) {
			score += 1.5
		}
		if strings.Contains(strings.ToLower(t.problem), q) {
			score += 1
		}
		if score > 0 {
			hits = append(hits, &Hit{
				TicketID: t.id,
				Customer: t.customer,
				Device:   t.device,
				Problem:  t.problem,
				Score:    score,
			})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].TicketID < hits[j].TicketID
		}
		return hits[i].Score > hits[j].Score
	})
	total := len(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, total, nil
}
