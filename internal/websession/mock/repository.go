package websessionmock

import (
	"context"
	"sync"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/serviceerr"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession"
)

type RepositoryOption func(*Repository)

func WithRecord(record websession.Record) RepositoryOption {
	return func(r *Repository) { r.records[record.ID] = record }
}

func WithLoadError(err error) RepositoryOption {
	return func(r *Repository) { r.loadErr = err }
}

func WithStoreError(err error) RepositoryOption {
	return func(r *Repository) { r.storeErr = err }
}

func WithDeleteError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteErr = err }
}

type Repository struct {
	mu      sync.Mutex
	records map[string]websession.Record

	loadErr, storeErr, deleteErr error
}

var _ = websession.Repository(&Repository{})

func NewRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{records: make(map[string]websession.Record)}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Record returns the stored record, if any, for assertions.
func (r *Repository) Record(recordID string) (websession.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[recordID]
	return record, ok
}

func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}

func (r *Repository) LoadRecord(_ context.Context, recordID string) (websession.Record, error) {
	if r.loadErr != nil {
		return websession.Record{}, r.loadErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.records[recordID]; ok {
		return record, nil
	}

	return websession.Record{}, serviceerr.ErrNotFound
}

func (r *Repository) StoreRecord(_ context.Context, record websession.Record) error {
	if r.storeErr != nil {
		return r.storeErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record

	return nil
}

func (r *Repository) DeleteRecord(_ context.Context, recordID string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[recordID]; !ok {
		return serviceerr.ErrNotFound
	}
	delete(r.records, recordID)

	return nil
}

func (r *Repository) ListRecords(_ context.Context) ([]websession.Record, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]websession.Record, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}

	return records, nil
}
