package report

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFailAndSkipCountedSeparately(t *testing.T) {
	r := &RunReport{Feed: "css"}

	r.Fail("1001", StageInsert, errors.New("deadlock detected"))
	r.SkipInput("10x1", errors.New("card code is not numeric"))

	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.SkippedInput)
	require.Len(t, r.Failures, 2)
	assert.Equal(t, StageInsert, r.Failures[0].Stage)
	assert.Equal(t, StageNormalize, r.Failures[1].Stage)
}

func TestSummary(t *testing.T) {
	r := &RunReport{Feed: "css", ExtractRows: 4, SnapshotRows: 2, Missing: 1, Changed: 1, Unchanged: 1, Inserted: 1, Updated: 1}

	assert.Equal(t,
		"feed=css extract=4 snapshot=2 missing=1 changed=1 unchanged=1 inserted=1 updated=1 failed=0 skipped=0",
		r.Summary())
}

func TestWriteXLSX(t *testing.T) {
	r := &RunReport{Feed: "css", ExtractRows: 2, Inserted: 1}
	r.Fail("1001", StageInsert, errors.New("deadlock detected"))

	path := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, r.WriteXLSX(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	feedCell, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "css", feedCell)

	card, err := f.GetCellValue("Failures", "A2")
	require.NoError(t, err)
	assert.Equal(t, "1001", card)
}

func TestWriteXLSX_NoFailuresSheetWhenClean(t *testing.T) {
	r := &RunReport{Feed: "demi"}

	path := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, r.WriteXLSX(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	idx, err := f.GetSheetIndex("Failures")
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
}
