package business

import (
	"context"
	"errors"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession"
)

// startHousekeeper runs the cleanup loop: expired session records are
// deleted from the repository and principal runtimes that have sat idle for
// a full session duration are torn down, stopping their pollers.
func startHousekeeper(ctx context.Context, cfg *config.Config, svcs *services) error {
	c := time.Tick(cfg.Housekeeper.TriggerInterval)
	for {
		select {
		case <-c:
		case <-ctx.Done():
			return nil
		}

		if err := purgeExpiredRecords(ctx, svcs.records); err != nil {
			slogctx.Error(ctx, "Error during session housekeeping", "error", err)
		}

		if evicted := svcs.principals.PruneIdle(cfg.Marketplace.SessionDuration); evicted > 0 {
			slogctx.Info(ctx, "Evicted idle session runtimes", "count", evicted)
		}
	}
}

// purgeExpiredRecords is a backstop for repositories without native TTL
// eviction; the Valkey repository mostly beats it to the punch.
func purgeExpiredRecords(ctx context.Context, records websession.Repository) error {
	all, err := records.ListRecords(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, record := range all {
		if !record.Expired() {
			continue
		}

		if err := records.DeleteRecord(ctx, record.ID); err != nil {
			errs = append(errs, err)
			continue
		}

		slogctx.Debug(ctx, "Deleted an expired session record", "record_id", record.ID)
	}

	return errors.Join(errs...)
}
