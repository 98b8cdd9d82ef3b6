// Package service orchestrates one reconciliation run: load the stored
// snapshot, load and normalize the extract, partition it, and apply the
// resulting inserts and updates through the member writer.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"padron-sync/internal/differ"
	"padron-sync/internal/feed"
	"padron-sync/internal/loader"
	"padron-sync/internal/models"
	"padron-sync/internal/normalizer"
	"padron-sync/internal/report"
)

// SnapshotStore reads the current stored member view for one funding
// source.
type SnapshotStore interface {
	Load(ctx context.Context, fundingSourceID string) ([]models.SnapshotRecord, error)
}

// MemberStore is the write side of the reconciliation.
type MemberStore interface {
	InsertMember(ctx context.Context, f *feed.Feed, rec *models.MemberRecord) error
	UpdateMember(ctx context.Context, f *feed.Feed, rec *models.MemberRecord, stored *models.SnapshotRecord) error
	LinkHolder(ctx context.Context, f *feed.Feed, memberCard, holderCard string) error
}

// Engine runs one feed's reconciliation to completion. Single-threaded:
// one run, one connection, phases in order. Per-member write failures
// are isolated and reported; acquisition failures abort the run before
// anything is written.
type Engine struct {
	feed       *feed.Feed
	loader     loader.DataLoader
	snapshots  SnapshotStore
	members    MemberStore
	normalizer *normalizer.Normalizer
	differ     *differ.Differ
	lock       *RunLock
	logger     *zap.Logger
}

// NewEngine wires a reconciliation engine for one feed. lock may be nil.
func NewEngine(
	f *feed.Feed,
	dataLoader loader.DataLoader,
	snapshots SnapshotStore,
	members MemberStore,
	norm *normalizer.Normalizer,
	diff *differ.Differ,
	lock *RunLock,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		feed:       f,
		loader:     dataLoader,
		snapshots:  snapshots,
		members:    members,
		normalizer: norm,
		differ:     diff,
		lock:       lock,
		logger:     logger,
	}
}

// Run executes one reconciliation and returns its report. The returned
// error is non-nil only for run-fatal conditions (lock held, snapshot
// or extract acquisition failure); per-member failures are inside the
// report.
func (e *Engine) Run(ctx context.Context) (*report.RunReport, error) {
	rep := &report.RunReport{
		Feed:      e.feed.Name,
		StartedAt: time.Now(),
	}

	if err := e.lock.Acquire(ctx, e.feed.Name); err != nil {
		return nil, err
	}
	defer e.lock.Release(ctx, e.feed.Name)

	e.logger.Info("Reconciliation started",
		zap.String("feed", e.feed.Name),
		zap.String("funding_source", e.feed.FundingSourceID),
	)

	snapshot, err := e.snapshots.Load(ctx, e.feed.FundingSourceID)
	if err != nil {
		return nil, err
	}
	rep.SnapshotRows = len(snapshot)

	extract, err := e.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	rep.ExtractRows = len(extract.Rows)

	records, inputErrors := e.normalizer.Normalize(ctx, extract)
	for _, ie := range inputErrors {
		rep.SkipInput(ie.CardCode, ie)
	}

	result := e.differ.Partition(records, snapshot)
	rep.Missing = len(result.Missing)
	rep.Changed = len(result.Changed)
	rep.Unchanged = len(result.Unchanged)

	e.insertMissing(ctx, result.Missing, rep)
	e.applyChanged(ctx, result.Changed, rep)

	rep.FinishedAt = time.Now()
	e.logger.Info("Reconciliation finished", zap.String("summary", rep.Summary()))

	return rep, nil
}

// insertMissing writes each missing member in its own transaction, then
// re-links holders under the HolderResolve policy once the whole batch
// is in the store (a holder may itself arrive in the same extract).
func (e *Engine) insertMissing(ctx context.Context, missing []models.MemberRecord, rep *report.RunReport) {
	inserted := make([]models.MemberRecord, 0, len(missing))
	for i := range missing {
		rec := missing[i]
		if err := e.members.InsertMember(ctx, e.feed, &rec); err != nil {
			e.logger.Error("Failed to insert member",
				zap.String("card", rec.CardCode),
				zap.Error(err),
			)
			rep.Fail(rec.CardCode, report.StageInsert, err)
			continue
		}
		rep.Inserted++
		inserted = append(inserted, rec)
	}

	if e.feed.HolderPolicy != feed.HolderResolve {
		return
	}
	for i := range inserted {
		rec := inserted[i]
		if rec.HolderCardCode == "" || rec.HolderCardCode == rec.CardCode {
			continue
		}
		if err := e.members.LinkHolder(ctx, e.feed, rec.CardCode, rec.HolderCardCode); err != nil {
			e.logger.Error("Failed to link holder",
				zap.String("card", rec.CardCode),
				zap.String("holder_card", rec.HolderCardCode),
				zap.Error(err),
			)
			rep.Fail(rec.CardCode, report.StageLink, err)
		}
	}
}

func (e *Engine) applyChanged(ctx context.Context, changed []differ.Change, rep *report.RunReport) {
	for i := range changed {
		change := changed[i]
		if err := e.members.UpdateMember(ctx, e.feed, &change.Record, &change.Stored); err != nil {
			e.logger.Error("Failed to update member",
				zap.String("card", change.Record.CardCode),
				zap.Error(err),
			)
			rep.Fail(change.Record.CardCode, report.StageUpdate, err)
			continue
		}
		rep.Updated++
	}
}
