package websession

import "context"

type Repository interface {
	LoadRecord(ctx context.Context, recordID string) (Record, error)
	StoreRecord(ctx context.Context, record Record) error
	DeleteRecord(ctx context.Context, recordID string) error
	ListRecords(ctx context.Context) ([]Record, error)
}
