// Package report collects per-member outcomes of one reconciliation
// run into an explicit result the caller can inspect and export.
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// Stages a member can fail in.
const (
	StageNormalize = "normalize"
	StageInsert    = "insert"
	StageUpdate    = "update"
	StageLink      = "link"
)

// Failure records one member the run could not process, with enough
// context (source card code) for manual replay.
type Failure struct {
	CardCode string
	Stage    string
	Reason   string
}

// RunReport aggregates one run's classification and write outcomes.
type RunReport struct {
	Feed       string
	StartedAt  time.Time
	FinishedAt time.Time

	ExtractRows  int
	SnapshotRows int
	SkippedInput int
	Missing      int
	Changed      int
	Unchanged    int
	Inserted     int
	Updated      int
	Failed       int

	Failures []Failure
}

// Fail records one failed member.
func (r *RunReport) Fail(cardCode, stage string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{
		CardCode: cardCode,
		Stage:    stage,
		Reason:   err.Error(),
	})
}

// SkipInput records one extract row skipped for invalid input. Skips
// are listed alongside failures for replay but counted separately.
func (r *RunReport) SkipInput(cardCode string, err error) {
	r.SkippedInput++
	r.Failures = append(r.Failures, Failure{
		CardCode: cardCode,
		Stage:    StageNormalize,
		Reason:   err.Error(),
	})
}

// Summary renders a one-line human summary for logs.
func (r *RunReport) Summary() string {
	return fmt.Sprintf("feed=%s extract=%d snapshot=%d missing=%d changed=%d unchanged=%d inserted=%d updated=%d failed=%d skipped=%d",
		r.Feed, r.ExtractRows, r.SnapshotRows, r.Missing, r.Changed, r.Unchanged,
		r.Inserted, r.Updated, r.Failed, r.SkippedInput)
}

// WriteXLSX exports the report as a spreadsheet: a summary sheet and,
// when there are failures, a detail sheet for ops replay.
func (r *RunReport) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("failed to rename summary sheet: %w", err)
	}

	rows := [][]any{
		{"Feed", r.Feed},
		{"Started", r.StartedAt.Format(time.RFC3339)},
		{"Finished", r.FinishedAt.Format(time.RFC3339)},
		{"Extract rows", r.ExtractRows},
		{"Snapshot rows", r.SnapshotRows},
		{"Missing", r.Missing},
		{"Changed", r.Changed},
		{"Unchanged", r.Unchanged},
		{"Inserted", r.Inserted},
		{"Updated", r.Updated},
		{"Failed", r.Failed},
		{"Skipped input rows", r.SkippedInput},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to build cell name: %w", err)
		}
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	if len(r.Failures) > 0 {
		const detail = "Failures"
		if _, err := f.NewSheet(detail); err != nil {
			return fmt.Errorf("failed to create failures sheet: %w", err)
		}
		header := []any{"Card", "Stage", "Reason"}
		if err := f.SetSheetRow(detail, "A1", &header); err != nil {
			return fmt.Errorf("failed to write failures header: %w", err)
		}
		for i, fail := range r.Failures {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return fmt.Errorf("failed to build cell name: %w", err)
			}
			row := []any{fail.CardCode, fail.Stage, fail.Reason}
			if err := f.SetSheetRow(detail, cell, &row); err != nil {
				return fmt.Errorf("failed to write failure row: %w", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}
