package stats

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecorder_FlushWritesAtSecondOffset(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0)
	defer r.Close()

	ts := time.Date(2026, time.March, 5, 0, 0, 2, 0, time.UTC)
	require.NoError(t, r.Flush(ts, Bucket{PacketsPass: 7}, nil))

	raw, err := os.ReadFile(DayStatPath(dir, EncodeDay(ts)))
	require.NoError(t, err)
	require.Len(t, raw, 3*BucketSize)

	var b Bucket
	require.NoError(t, b.UnmarshalBinary(raw[2*BucketSize:]))
	require.Equal(t, uint32(7), b.PacketsPass)

	require.Equal(t, make([]byte, BucketSize), raw[0:BucketSize])
}

func TestRecorder_ModuleSamplesWriteFloat64(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0)
	defer r.Close()

	ts := time.Date(2026, time.March, 5, 0, 0, 1, 0, time.UTC)
	require.NoError(t, r.Flush(ts, Bucket{}, []ModuleSample{{Name: "entropy", Average: 3.5}}))

	f, err := os.Open(ModuleStatPath(dir, "entropy", EncodeDay(ts)))
	require.NoError(t, err)
	defer f.Close()

	avg, err := readFloatAt(f, moduleRecordSize)
	require.NoError(t, err)
	require.Equal(t, 3.5, avg)
}

func TestRecorder_RolloverClosesAndReopensOnDayChange(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0)
	defer r.Close()

	day1 := time.Date(2026, time.March, 5, 23, 59, 59, 0, time.UTC)
	day2 := time.Date(2026, time.March, 6, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Flush(day1, Bucket{PacketsPass: 1}, nil))
	require.NoError(t, r.Flush(day2, Bucket{PacketsPass: 2}, nil))

	require.FileExists(t, DayStatPath(dir, EncodeDay(day1)))
	require.FileExists(t, DayStatPath(dir, EncodeDay(day2)))
}

func TestRecorder_SweepRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()

	oldDay := EncodeDay(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, os.WriteFile(DayStatPath(dir, oldDay), make([]byte, BucketSize), 0o644))

	r := NewRecorder(dir, 7)
	defer r.Close()

	now := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Flush(now, Bucket{}, nil))

	require.NoFileExists(t, DayStatPath(dir, oldDay))
	require.FileExists(t, DayStatPath(dir, EncodeDay(now)))
}

func TestRecorder_SweepKeepsRecentFiles(t *testing.T) {
	dir := t.TempDir()

	recentDay := EncodeDay(time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, os.WriteFile(DayStatPath(dir, recentDay), make([]byte, BucketSize), 0o644))

	r := NewRecorder(dir, 7)
	defer r.Close()

	now := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Flush(now, Bucket{}, nil))

	require.FileExists(t, DayStatPath(dir, recentDay))
}

func TestRecorder_CreatesStatDir(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "nested", "statdir")

	r := NewRecorder(dir, 0)
	defer r.Close()

	require.NoError(t, r.Flush(time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), Bucket{}, nil))
	require.DirExists(t, dir)
}
