package app

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/riskibarqy/live-match/internal/domain/incident"
	"github.com/riskibarqy/live-match/internal/domain/match"
	"github.com/riskibarqy/live-match/internal/infrastructure/pushstream"
	"github.com/riskibarqy/live-match/internal/platform/logging"
	"github.com/riskibarqy/live-match/internal/usecase"
)

const maxLockRetries uint = 4

var errLockRetry = errors.New("match lock held by another writer")

type matchUpdater interface {
	UpdateMatch(ctx context.Context, matchID string, updates []match.FieldUpdate, sourceLabel string) usecase.UpdateResult
}

type incidentProcessor interface {
	ProcessIncidents(ctx context.Context, matchID string, items []incident.Incident, sourceLabel string) usecase.IncidentResult
}

// batchDispatcher feeds push batches into the orchestrator and incident ledger.
type batchDispatcher struct {
	updater   matchUpdater
	incidents incidentProcessor
	logger    *logging.Logger
	backoff   func() backoff.BackOff
}

func newBatchDispatcher(updater matchUpdater, incidents incidentProcessor, logger *logging.Logger) *batchDispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &batchDispatcher{
		updater:   updater,
		incidents: incidents,
		logger:    logger.Named("dispatcher"),
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

// Dispatch applies field updates first, retrying while another writer holds
// the match lock, then records incidents regardless of the update outcome.
func (d *batchDispatcher) Dispatch(ctx context.Context, batch pushstream.Batch) {
	if len(batch.Updates) > 0 {
		d.applyUpdates(ctx, batch)
	}
	if len(batch.Incidents) > 0 {
		res := d.incidents.ProcessIncidents(ctx, batch.MatchID, batch.Incidents, pushstream.SourceLabel)
		if res.Errors > 0 {
			d.logger.WarnContext(ctx, "incident batch had failures",
				"match_id", batch.MatchID,
				"added", res.Added,
				"skipped", res.Skipped,
				"errors", res.Errors,
			)
		}
	}
}

func (d *batchDispatcher) applyUpdates(ctx context.Context, batch pushstream.Batch) {
	res, err := backoff.Retry(ctx, func() (usecase.UpdateResult, error) {
		res := d.updater.UpdateMatch(ctx, batch.MatchID, batch.Updates, pushstream.SourceLabel)
		if res.Status == usecase.UpdateStatusRetry {
			return res, errLockRetry
		}
		return res, nil
	},
		backoff.WithBackOff(d.backoff()),
		backoff.WithMaxTries(maxLockRetries),
	)
	if err != nil {
		d.logger.WarnContext(ctx, "giving up on locked match update", "match_id", batch.MatchID, "fields", len(batch.Updates), "error", err)
		return
	}

	switch res.Status {
	case usecase.UpdateStatusRejected:
		if res.Reason == usecase.ErrNoEffectiveChange.Error() {
			return
		}
		d.logger.WarnContext(ctx, "match update rejected", "match_id", batch.MatchID, "error", res.Reason)
	case usecase.UpdateStatusSuccess:
		d.logger.DebugContext(ctx, "match updated", "match_id", batch.MatchID, "fields", res.FieldsUpdated)
	}
}
