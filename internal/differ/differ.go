// Package differ classifies normalized extract records against the
// stored snapshot. Every extract record lands in exactly one of three
// buckets: missing from the store, present and changed, or present and
// unchanged.
package differ

import (
	"time"

	"go.uber.org/zap"

	"padron-sync/internal/models"
)

// Change pairs an extract record with the stored row it differs from,
// so the writer has both the incoming values and the surrogate ids.
type Change struct {
	Record models.MemberRecord
	Stored models.SnapshotRecord
}

// Result is the three-way partition of one extract. The buckets are
// disjoint and together cover the whole extract.
type Result struct {
	Missing   []models.MemberRecord
	Changed   []Change
	Unchanged []models.MemberRecord
}

// Differ partitions extracts. Both sides must already carry canonical
// card codes; the differ compares, it does not coerce.
type Differ struct {
	logger *zap.Logger
}

// New creates a Differ.
func New(logger *zap.Logger) *Differ {
	return &Differ{logger: logger}
}

// Partition classifies records against snapshot, keyed by card code.
// The snapshot may carry several rows per card (the source query joins
// contacts and enrollments, and row order is unspecified); the row
// whose plan already matches the incoming record wins, so a stale
// join row can never fake a plan change.
func (d *Differ) Partition(records []models.MemberRecord, snapshot []models.SnapshotRecord) *Result {
	stored := make(map[string][]models.SnapshotRecord, len(snapshot))
	for _, s := range snapshot {
		stored[s.CardCode] = append(stored[s.CardCode], s)
	}

	result := &Result{}
	for _, rec := range records {
		rows, ok := stored[rec.CardCode]
		if !ok {
			result.Missing = append(result.Missing, rec)
			continue
		}
		s := pickStored(&rec, rows)
		if recordChanged(&rec, &s) {
			result.Changed = append(result.Changed, Change{Record: rec, Stored: s})
		} else {
			result.Unchanged = append(result.Unchanged, rec)
		}
	}

	d.logger.Info("Extract partitioned",
		zap.Int("missing", len(result.Missing)),
		zap.Int("changed", len(result.Changed)),
		zap.Int("unchanged", len(result.Unchanged)),
	)

	return result
}

// pickStored selects the snapshot row to compare a record against.
// A row already carrying the record's plan means the plan is current
// and must win regardless of row order. Falls back to the first row.
func pickStored(rec *models.MemberRecord, rows []models.SnapshotRecord) models.SnapshotRecord {
	if rec.PlanID != nil {
		for _, s := range rows {
			if s.PlanID != nil && *s.PlanID == *rec.PlanID {
				return s
			}
		}
	}
	return rows[0]
}

// recordChanged reports whether any compared field genuinely differs.
// An absent incoming value never counts as a change: the store keeps
// what it has.
func recordChanged(rec *models.MemberRecord, s *models.SnapshotRecord) bool {
	if stringChanged(rec.GivenName, s.GivenName) {
		return true
	}
	if stringChanged(rec.FamilyName, s.FamilyName) {
		return true
	}
	if intPtrChanged(rec.DocumentTypeID, s.DocumentTypeID) {
		return true
	}
	if stringPtrChanged(rec.DocumentNumber, s.DocumentNumber) {
		return true
	}
	if dateChanged(rec.BirthDate, s.BirthDate) {
		return true
	}
	if stringChanged(rec.HolderCardCode, s.HolderCardCode) {
		return true
	}
	if stringPtrChanged(rec.PlanID, s.PlanID) {
		return true
	}
	return false
}

func stringChanged(incoming string, stored *string) bool {
	if incoming == "" {
		return false
	}
	return stored == nil || *stored != incoming
}

func stringPtrChanged(incoming, stored *string) bool {
	if incoming == nil || *incoming == "" {
		return false
	}
	return stored == nil || *stored != *incoming
}

func intPtrChanged(incoming, stored *int) bool {
	if incoming == nil {
		return false
	}
	return stored == nil || *stored != *incoming
}

func dateChanged(incoming, stored *time.Time) bool {
	if incoming == nil {
		return false
	}
	if stored == nil {
		return true
	}
	iy, im, id := incoming.Date()
	sy, sm, sd := stored.Date()
	return iy != sy || im != sm || id != sd
}
