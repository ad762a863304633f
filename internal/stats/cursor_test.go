package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCursor_SetsDiscoversMainAndModuleSeries(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0)

	ts := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Flush(ts, Bucket{PacketsPass: 1}, []ModuleSample{{Name: "entropy", Average: 1.5}}))
	require.NoError(t, r.Close())

	c, err := Open(dir)
	require.NoError(t, err)
	defer c.Close()

	names := make([]string, 0)
	for _, s := range c.Sets() {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{"dstat", "entropy"}, names)
}

func TestCursor_SeekAndBucketReadsWrittenValue(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0)

	ts := time.Date(2026, time.March, 5, 12, 0, 5, 0, time.UTC)
	require.NoError(t, r.Flush(ts, Bucket{PacketsPass: 42, OctetsPass: 100}, nil))
	require.NoError(t, r.Close())

	c, err := Open(dir)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Seek("dstat", ts))
	b, err := c.Bucket()
	require.NoError(t, err)
	require.Equal(t, uint32(42), b.PacketsPass)
	require.Equal(t, uint32(100), b.OctetsPass)
}

func TestCursor_GapReturnsZeroBucket(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0)

	ts := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Flush(ts, Bucket{PacketsPass: 1}, nil))
	require.NoError(t, r.Close())

	c, err := Open(dir)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Seek("dstat", ts.AddDate(0, 0, -5)))
	b, err := c.Bucket()
	require.NoError(t, err)
	require.Equal(t, Bucket{}, b)
}

func TestCursor_NextAdvancesOneSecond(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0)

	ts := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Flush(ts, Bucket{PacketsPass: 1}, nil))
	require.NoError(t, r.Flush(ts.Add(time.Second), Bucket{PacketsPass: 2}, nil))
	require.NoError(t, r.Close())

	c, err := Open(dir)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Seek("dstat", ts))
	b1, err := c.Bucket()
	require.NoError(t, err)
	require.Equal(t, uint32(1), b1.PacketsPass)

	c.Next()
	b2, err := c.Bucket()
	require.NoError(t, err)
	require.Equal(t, uint32(2), b2.PacketsPass)
}

func TestCursor_AverageReadsModuleSeries(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0)

	ts := time.Date(2026, time.March, 5, 0, 0, 3, 0, time.UTC)
	require.NoError(t, r.Flush(ts, Bucket{}, []ModuleSample{{Name: "bymark", Average: 2.25}}))
	require.NoError(t, r.Close())

	c, err := Open(dir)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Seek("bymark", ts))
	avg, err := c.Average()
	require.NoError(t, err)
	require.Equal(t, 2.25, avg)
}

func TestCursor_SeekUnknownSetErrors(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)
	defer c.Close()

	require.Error(t, c.Seek("nope", time.Now().UTC()))
}

func TestCursor_SetStartEnd(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0)

	day1 := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, time.March, 6, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Flush(day1, Bucket{}, nil))
	require.NoError(t, r.Flush(day2, Bucket{}, nil))
	require.NoError(t, r.Close())

	c, err := Open(dir)
	require.NoError(t, err)
	defer c.Close()

	sets := c.Sets()
	require.Len(t, sets, 1)
	require.True(t, sets[0].Start().Equal(day1))
	require.True(t, sets[0].End().After(day2))
}
