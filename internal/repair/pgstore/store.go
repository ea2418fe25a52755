// Package pgstore is the Postgres implementation of the repair stores.
// Records are persisted as jsonb documents keyed by id; the engine relies
// on single-record semantics only, except for the ticket counter whose
// read-modify-write must be atomic across processes.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fixflow-io/fixflow/internal/repair"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func NewWithPool(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// EnsureSchema creates the tables when they don't exist yet. Deployments
// with managed migrations can skip this.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS repair_counter (
			id INT PRIMARY KEY,
			value BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS tickets (
			ticket_id TEXT PRIMARY KEY,
			ticket_num BIGINT NOT NULL,
			location TEXT NOT NULL,
			status INT NOT NULL,
			doc JSONB NOT NULL,
			created_at BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS parts_notes (
			id TEXT PRIMARY KEY,
			doc JSONB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS quotations (
			id TEXT PRIMARY KEY,
			ticket_id TEXT NOT NULL,
			doc JSONB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS agreements (
			id TEXT PRIMARY KEY,
			doc JSONB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			doc JSONB NOT NULL
		);
	`)
	return err
}

// Next allocates the next ticket number. The single upsert statement is the
// isolation boundary: a concurrent caller is forced to retry against the
// already-updated row, so two callers can never read the same stale value.
// The counter seeds at 1000, so the first allocated number is 1001.
func (s *Store) Next(ctx context.Context) (int64, error) {
	var next int64
	row := s.pool.QueryRow(ctx, `
		INSERT INTO repair_counter (id, value)
		VALUES (1, $1)
		ON CONFLICT (id)
		DO UPDATE SET value = repair_counter.value + 1
		RETURNING value
	`, repair.DefaultSequenceSeed+1)
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("allocate ticket number: %w", err)
	}
	return next, nil
}

// --- tickets ---

func (s *Store) Create(ctx context.Context, t *repair.Ticket) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tickets (ticket_id, ticket_num, location, status, doc, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.Num, t.Location, int(t.CurrentStatus()), doc, t.CreatedAt)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*repair.Ticket, error) {
	var doc []byte
	row := s.pool.QueryRow(ctx, `SELECT doc FROM tickets WHERE ticket_id = $1`, id)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repair.ErrNotFound
		}
		return nil, err
	}
	var t repair.Ticket
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) List(ctx context.Context) ([]*repair.Ticket, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM tickets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*repair.Ticket
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var t repair.Ticket
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Update replaces the whole record: last-write-wins, no optimistic check.
func (s *Store) Update(ctx context.Context, t *repair.Ticket) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE tickets SET ticket_num = $2, location = $3, status = $4, doc = $5, created_at = $6
		WHERE ticket_id = $1
	`, t.ID, t.Num, t.Location, int(t.CurrentStatus()), doc, t.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repair.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tickets WHERE ticket_id = $1`, id)
	return err
}

// --- parts notes ---

type PartsNoteStore struct{ s *Store }

func (s *Store) PartsNotes() *PartsNoteStore { return &PartsNoteStore{s: s} }

func (p *PartsNoteStore) Create(ctx context.Context, n *repair.PartsNote) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = p.s.pool.Exec(ctx, `INSERT INTO parts_notes (id, doc) VALUES ($1, $2)`, n.ID, doc)
	return err
}

func (p *PartsNoteStore) Get(ctx context.Context, id string) (*repair.PartsNote, error) {
	var doc []byte
	row := p.s.pool.QueryRow(ctx, `SELECT doc FROM parts_notes WHERE id = $1`, id)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repair.ErrNotFound
		}
		return nil, err
	}
	var n repair.PartsNote
	if err := json.Unmarshal(doc, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (p *PartsNoteStore) Update(ctx context.Context, n *repair.PartsNote) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return err
	}
	tag, err := p.s.pool.Exec(ctx, `UPDATE parts_notes SET doc = $2 WHERE id = $1`, n.ID, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repair.ErrNotFound
	}
	return nil
}

// --- quotations ---

type QuotationStore struct{ s *Store }

func (s *Store) Quotations() *QuotationStore { return &QuotationStore{s: s} }

func (q *QuotationStore) Create(ctx context.Context, quote *repair.Quotation) error {
	doc, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	_, err = q.s.pool.Exec(ctx, `INSERT INTO quotations (id, ticket_id, doc) VALUES ($1, $2, $3)`,
		quote.ID, quote.TicketID, doc)
	return err
}

func (q *QuotationStore) Get(ctx context.Context, id string) (*repair.Quotation, error) {
	return q.scanOne(q.s.pool.QueryRow(ctx, `SELECT doc FROM quotations WHERE id = $1`, id))
}

func (q *QuotationStore) FindByTicket(ctx context.Context, ticketID string) (*repair.Quotation, error) {
	return q.scanOne(q.s.pool.QueryRow(ctx, `SELECT doc FROM quotations WHERE ticket_id = $1 LIMIT 1`, ticketID))
}

func (q *QuotationStore) scanOne(row pgx.Row) (*repair.Quotation, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repair.ErrNotFound
		}
		return nil, err
	}
	var quote repair.Quotation
	if err := json.Unmarshal(doc, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// --- agreements ---

type AgreementStore struct{ s *Store }

func (s *Store) Agreements() *AgreementStore { return &AgreementStore{s: s} }

func (a *AgreementStore) Create(ctx context.Context, ag *repair.Agreement) error {
	doc, err := json.Marshal(ag)
	if err != nil {
		return err
	}
	_, err = a.s.pool.Exec(ctx, `INSERT INTO agreements (id, doc) VALUES ($1, $2)`, ag.ID, doc)
	return err
}

func (a *AgreementStore) Get(ctx context.Context, id string) (*repair.Agreement, error) {
	var doc []byte
	row := a.s.pool.QueryRow(ctx, `SELECT doc FROM agreements WHERE id = $1`, id)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repair.ErrNotFound
		}
		return nil, err
	}
	var ag repair.Agreement
	if err := json.Unmarshal(doc, &ag); err != nil {
		return nil, err
	}
	return &ag, nil
}

func (a *AgreementStore) List(ctx context.Context) ([]*repair.Agreement, error) {
	rows, err := a.s.pool.Query(ctx, `SELECT doc FROM agreements`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*repair.Agreement
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var ag repair.Agreement
		if err := json.Unmarshal(doc, &ag); err != nil {
			return nil, err
		}
		out = append(out, &ag)
	}
	return out, rows.Err()
}

func (a *AgreementStore) Delete(ctx context.Context, id string) error {
	tag, err := a.s.pool.Exec(ctx, `DELETE FROM agreements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repair.ErrNotFound
	}
	return nil
}

// --- appointments ---

type AppointmentStore struct{ s *Store }

func (s *Store) Appointments() *AppointmentStore { return &AppointmentStore{s: s} }

func (a *AppointmentStore) Create(ctx context.Context, ap *repair.Appointment) error {
	doc, err := json.Marshal(ap)
	if err != nil {
		return err
	}
	_, err = a.s.pool.Exec(ctx, `INSERT INTO appointments (id, doc) VALUES ($1, $2)`, ap.ID, doc)
	return err
}

func (a *AppointmentStore) Get(ctx context.Context, id string) (*repair.Appointment, error) {
	var doc []byte
	row := a.s.pool.QueryRow(ctx, `SELECT doc FROM appointments WHERE id = $1`, id)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repair.ErrNotFound
		}
		return nil, err
	}
	var ap repair.Appointment
	if err := json.Unmarshal(doc, &ap); err != nil {
		return nil, err
	}
	return &ap, nil
}

func (a *AppointmentStore) List(ctx context.Context) ([]*repair.Appointment, error) {
	rows, err := a.s.pool.Query(ctx, `SELECT doc FROM appointments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*repair.Appointment
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var ap repair.Appointment
		if err := json.Unmarshal(doc, &ap); err != nil {
			return nil, err
		}
		out = append(out, &ap)
	}
	return out, rows.Err()
}

func (a *AppointmentStore) Delete(ctx context.Context, id string) error {
	tag, err := a.s.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repair.ErrNotFound
	}
	return nil
}
