// Package websessionvalkey persists web session records in Valkey with a
// TTL matching the configured session duration.
package websessionvalkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession"
)

const objectTypeRecord = "websession"

type Repository struct {
	store *store
}

func NewRepository(valkeyClient valkey.Client, prefix string, ttl time.Duration) *Repository {
	return &Repository{
		store: newStore(valkeyClient, prefix, ttl),
	}
}

func (r *Repository) LoadRecord(ctx context.Context, recordID string) (record websession.Record, _ error) {
	if err := r.store.Get(ctx, objectTypeRecord, recordID, &record); err != nil {
		return websession.Record{}, fmt.Errorf("getting record from store: %w", err)
	}

	return record, nil
}

func (r *Repository) StoreRecord(ctx context.Context, record websession.Record) error {
	if err := r.store.Set(ctx, objectTypeRecord, record.ID, record); err != nil {
		return fmt.Errorf("setting record into storage: %w", err)
	}

	return nil
}

func (r *Repository) DeleteRecord(ctx context.Context, recordID string) error {
	if err := r.store.Destroy(ctx, objectTypeRecord, recordID); err != nil {
		return fmt.Errorf("deleting record from store: %w", err)
	}

	return nil
}

func (r *Repository) ListRecords(ctx context.Context) ([]websession.Record, error) {
	var records []websession.Record
	if err := getStoreObjects(ctx, r.store, objectTypeRecord, "*", &records); err != nil {
		return nil, fmt.Errorf("getting records from store: %w", err)
	}

	return records, nil
}
