// Package store provides storage backends for zhanghealth.
//
// Members live in an encrypted JSON file (see members.go). Health readings,
// medications, adherence events, send receipts and inbound responses go to
// SQLite or PostgreSQL depending on the configured DSN, with an in-memory
// store for tests and dry runs.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/models"
)

// Opts holds configuration for store backends.
type Opts struct {
	DSN string
}

// Option configures store backends.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the database DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the database DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports the database driver implied by a DSN: "postgres"
// for URL or key=value connection strings, otherwise "sqlite3" (a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// Store is the persistence surface for health data and message bookkeeping.
// It also satisfies meds.Store.
type Store interface {
	AddReading(r models.ReadingRecord) error
	GetReadings(memberID string, since time.Time) ([]models.ReadingRecord, error)

	ListMedications(memberID string) ([]models.Medication, error)
	UpsertMedication(med models.Medication) error
	AddAdherenceEvent(ev models.AdherenceEvent) error
	AdherenceEvents(memberID string, since time.Time) ([]models.AdherenceEvent, error)

	AddReceipt(r models.Receipt) error
	GetReceipts() ([]models.Receipt, error)
	AddResponse(r models.Response) error
	GetResponses() ([]models.Response, error)

	Close() error
}

// InMemoryStore keeps everything in process memory. Used in tests and when
// no database DSN is configured.
type InMemoryStore struct {
	mu          sync.Mutex
	readings    []models.ReadingRecord
	medications map[string]models.Medication // keyed member_id:name
	adherence   []models.AdherenceEvent
	receipts    []models.Receipt
	responses   []models.Response
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{medications: make(map[string]models.Medication)}
}

func (s *InMemoryStore) AddReading(r models.ReadingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	return nil
}

func (s *InMemoryStore) GetReadings(memberID string, since time.Time) ([]models.ReadingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReadingRecord
	for _, r := range s.readings {
		if r.MemberID == memberID && !r.RecordedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListMedications(memberID string) ([]models.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Medication
	for _, m := range s.medications {
		if memberID == "" || m.MemberID == memberID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpsertMedication(med models.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.medications[med.MemberID+":"+strings.ToLower(med.Name)] = med
	return nil
}

func (s *InMemoryStore) AddAdherenceEvent(ev models.AdherenceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adherence = append(s.adherence, ev)
	return nil
}

func (s *InMemoryStore) AdherenceEvents(memberID string, since time.Time) ([]models.AdherenceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AdherenceEvent
	for _, ev := range s.adherence {
		if ev.MemberID != memberID {
			continue
		}
		// ResponseTime is RFC 3339; unparseable events are kept so the
		// report fold can decide what to do with them.
		if t, err := time.Parse(time.RFC3339, ev.ResponseTime); err == nil && t.Before(since) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *InMemoryStore) AddReceipt(r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *InMemoryStore) GetReceipts() ([]models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Receipt(nil), s.receipts...), nil
}

func (s *InMemoryStore) AddResponse(r models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return nil
}

func (s *InMemoryStore) GetResponses() ([]models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Response(nil), s.responses...), nil
}

func (s *InMemoryStore) Close() error { return nil }
