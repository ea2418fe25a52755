package repair

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound sentinel for a missing record in any store.
var ErrNotFound = errors.New("not found")

// TicketStore defines ticket persistence. Updates are last-write-wins whole
// record replacements; the store enforces nothing about the audit triple,
// that is the workflow engine's job.
type TicketStore interface {
	Create(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, id string) (*Ticket, error)
	List(ctx context.Context) ([]*Ticket, error)
	Update(ctx context.Context, t *Ticket) error
	Delete(ctx context.Context, id string) error
}

type PartsNoteStore interface {
	Create(ctx context.Context, n *PartsNote) error
	Get(ctx context.Context, id string) (*PartsNote, error)
	Update(ctx context.Context, n *PartsNote) error
}

type QuotationStore interface {
	Create(ctx context.Context, q *Quotation) error
	Get(ctx context.Context, id string) (*Quotation, error)
	// FindByTicket returns the quotation issued for a ticket, ErrNotFound if
	// none was ever created.
	FindByTicket(ctx context.Context, ticketID string) (*Quotation, error)
}

type AgreementStore interface {
	Create(ctx context.Context, a *Agreement) error
	Get(ctx context.Context, id string) (*Agreement, error)
	List(ctx context.Context) ([]*Agreement, error)
	Delete(ctx context.Context, id string) error
}

type AppointmentStore interface {
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	List(ctx context.Context) ([]*Appointment, error)
	Delete(ctx context.Context, id string) error
}

// MemoryTicketStore is the default in-process implementation, also used by
// tests. Get and Update copy the record so racing handlers can't corrupt the
// stored audit triple through a shared slice.
type MemoryTicketStore struct {
	mu    sync.RWMutex
	store map[string]*Ticket
}

func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{store: make(map[string]*Ticket)}
}

func (s *MemoryTicketStore) Create(ctx context.Context, t *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store[t.ID]; ok {
		return errors.New("ticket id already exists")
	}
	s.store[t.ID] = t.Clone()
	return nil
}

func (s *MemoryTicketStore) Get(ctx context.Context, id string) (*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryTicketStore) List(ctx context.Context) ([]*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Ticket, 0, len(s.store))
	for _, t := range s.store {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (s *MemoryTicketStore) Update(ctx context.Context, t *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store[t.ID]; !ok {
		return ErrNotFound
	}
	s.store[t.ID] = t.Clone()
	return nil
}

func (s *MemoryTicketStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, id)
	return nil
}

type MemoryPartsNoteStore struct {
	mu    sync.RWMutex
	store map[string]*PartsNote
}

func NewMemoryPartsNoteStore() *MemoryPartsNoteStore {
	return &MemoryPartsNoteStore{store: make(map[string]*PartsNote)}
}

func (s *MemoryPartsNoteStore) Create(ctx context.Context, n *PartsNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[n.ID] = n.Clone()
	return nil
}

func (s *MemoryPartsNoteStore) Get(ctx context.Context, id string) (*PartsNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n.Clone(), nil
}

func (s *MemoryPartsNoteStore) Update(ctx context.Context, n *PartsNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store[n.ID]; !ok {
		return ErrNotFound
	}
	s.store[n.ID] = n.Clone()
	return nil
}

type MemoryQuotationStore struct {
	mu    sync.RWMutex
	store map[string]*Quotation
}

func NewMemoryQuotationStore() *MemoryQuotationStore {
	return &MemoryQuotationStore{store: make(map[string]*Quotation)}
}

func (s *MemoryQuotationStore) Create(ctx context.Context, q *Quotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	cp.Items = append([]QuoteItem(nil), q.Items...)
	s.store[q.ID] = &cp
	return nil
}

func (s *MemoryQuotationStore) Get(ctx context.Context, id string) (*Quotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *q
	cp.Items = append([]QuoteItem(nil), q.Items...)
	return &cp, nil
}

func (s *MemoryQuotationStore) FindByTicket(ctx context.Context, ticketID string) (*Quotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.store {
		if q.TicketID == ticketID {
			cp := *q
			cp.Items = append([]QuoteItem(nil), q.Items...)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

type MemoryAgreementStore struct {
	mu    sync.RWMutex
	store map[string]*Agreement
}

func NewMemoryAgreementStore() *MemoryAgreementStore {
	return &MemoryAgreementStore{store: make(map[string]*Agreement)}
}

func (s *MemoryAgreementStore) Create(ctx context.Context, a *Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.store[a.ID] = &cp
	return nil
}

func (s *MemoryAgreementStore) Get(ctx context.Context, id string) (*Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryAgreementStore) List(ctx context.Context) ([]*Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Agreement, 0, len(s.store))
	for _, a := range s.store {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryAgreementStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store[id]; !ok {
		return ErrNotFound
	}
	delete(s.store, id)
	return nil
}

type MemoryAppointmentStore struct {
	mu    sync.RWMutex
	store map[string]*Appointment
}

func NewMemoryAppointmentStore() *MemoryAppointmentStore {
	return &MemoryAppointmentStore{store: make(map[string]*Appointment)}
}

func (s *MemoryAppointmentStore) Create(ctx context.Context, a *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.store[a.ID] = &cp
	return nil
}

func (s *MemoryAppointmentStore) Get(ctx context.Context, id string) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryAppointmentStore) List(ctx context.Context) ([]*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Appointment, 0, len(s.store))
	for _, a := range s.store {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryAppointmentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store[id]; !ok {
		return ErrNotFound
	}
	delete(s.store, id)
	return nil
}
