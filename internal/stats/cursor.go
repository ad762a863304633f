package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// dayFile is one day's worth of records for a single set name.
type dayFile struct {
	day   int
	start time.Time // UTC midnight of day
	end   time.Time // start plus however many records the file holds
	path  string
}

// Set is a named time series discovered on disk: either "dstat" (the
// main pass/drop bucket series) or a module name (a wchart weight-average
// series).
type Set struct {
	Name string

	days       []dayFile
	recordSize int64
}

// Start returns the earliest timestamp covered by the set, or the zero
// Time if the set has no data.
func (s *Set) Start() time.Time {
	if len(s.days) == 0 {
		return time.Time{}
	}
	return s.days[0].start
}

// End returns the latest timestamp covered by the set (exclusive), or
// the zero Time if the set has no data.
func (s *Set) End() time.Time {
	if len(s.days) == 0 {
		return time.Time{}
	}
	return s.days[len(s.days)-1].end
}

// Cursor is the random-access reader side of the statistics store: it
// discovers every "<name>.DDMMYY.dat" file under a directory, groups
// them into Sets by name, and lets callers seek to an arbitrary time and
// walk forward one second at a time.
type Cursor struct {
	dir  string
	sets map[string]*Set

	cur     *Set
	curDay  int
	curFile *os.File
	t       time.Time
}

// Open scans dir and builds a Cursor over every statistics file found
// there. The main pass/drop series is named "dstat"; module series are
// named after their module.
func Open(dir string) (*Cursor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("stats: list stat dir: %w", err)
	}

	sets := make(map[string]*Set)

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name, day, ok := parseSetFilename(ent.Name())
		if !ok {
			continue
		}

		recordSize := int64(BucketSize)
		if name != "dstat" {
			recordSize = moduleRecordSize
		}

		path := filepath.Join(dir, ent.Name())
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		start := DayEpoch(day)
		nrec := info.Size() / recordSize
		end := start.Add(time.Duration(nrec) * time.Second)

		s, ok := sets[name]
		if !ok {
			s = &Set{Name: name, recordSize: recordSize}
			sets[name] = s
		}
		s.days = append(s.days, dayFile{day: day, start: start, end: end, path: path})
	}

	for _, s := range sets {
		sort.Slice(s.days, func(i, j int) bool { return s.days[i].day < s.days[j].day })
	}

	return &Cursor{dir: dir, sets: sets}, nil
}

// parseSetFilename splits a "<name>.DDMMYY.dat" filename into its set
// name and day. Files shorter than "X.DDMMYY.dat" (12 bytes) or without
// a parseable day are rejected.
func parseSetFilename(filename string) (string, int, bool) {
	if len(filename) < 12 {
		return "", 0, false
	}
	day, ok := parseDayFromFilename(filename)
	if !ok || day <= 0 {
		return "", 0, false
	}
	base := strings.TrimSuffix(filename, ".dat")
	idx := strings.LastIndex(base, ".")
	if idx <= 0 {
		return "", 0, false
	}
	return base[:idx], day, true
}

// Sets returns every discovered series, sorted by name.
func (c *Cursor) Sets() []*Set {
	names := make([]string, 0, len(c.sets))
	for name := range c.sets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Set, 0, len(names))
	for _, name := range names {
		out = append(out, c.sets[name])
	}
	return out
}

// Seek positions the cursor on set name at the second containing t. It
// is an error to seek to a set that was not discovered by Open.
func (c *Cursor) Seek(name string, t time.Time) error {
	s, ok := c.sets[name]
	if !ok {
		return fmt.Errorf("stats: unknown set %q", name)
	}

	if c.curFile != nil {
		_ = c.curFile.Close()
		c.curFile = nil
	}
	c.cur = s
	c.t = t.UTC()
	c.curDay = -1
	return nil
}

// Bucket reads (and zero-fills) the main pass/drop record at the
// cursor's current position and returns it.
func (c *Cursor) Bucket() (Bucket, error) {
	f, offset, zero, err := c.locate()
	if err != nil || zero {
		return Bucket{}, err
	}
	buf := make([]byte, BucketSize)
	n, err := f.ReadAt(buf, offset)
	if n < BucketSize {
		return Bucket{}, nil
	}
	if err != nil {
		return Bucket{}, err
	}
	var b Bucket
	if err := b.UnmarshalBinary(buf); err != nil {
		return Bucket{}, err
	}
	return b, nil
}

// Average reads the module weight-average record at the cursor's current
// position and returns it.
func (c *Cursor) Average() (float64, error) {
	f, offset, zero, err := c.locate()
	if err != nil || zero {
		return 0, err
	}
	return readFloatAt(f, offset)
}

// locate finds or opens the day file covering the cursor's current
// time, returning the file handle and the byte offset of the record.
// zero is true when the current time falls in a gap with no backing
// file: a day the daemon wasn't running gets treated as all-zero
// traffic rather than an error.
func (c *Cursor) locate() (f *os.File, offset int64, zero bool, err error) {
	if c.cur == nil {
		return nil, 0, false, fmt.Errorf("stats: cursor not seeked")
	}

	day := EncodeDay(c.t)
	if day != c.curDay {
		if c.curFile != nil {
			_ = c.curFile.Close()
			c.curFile = nil
		}
		df, ok := findDay(c.cur.days, day)
		if !ok {
			c.curDay = day
			return nil, 0, true, nil
		}
		opened, oerr := os.Open(df.path)
		if oerr != nil {
			return nil, 0, false, fmt.Errorf("stats: open %q: %w", df.path, oerr)
		}
		c.curFile = opened
		c.curDay = day
	}
	if c.curFile == nil {
		return nil, 0, true, nil
	}

	second := secondOfDay(c.t)
	return c.curFile, second * c.cur.recordSize, false, nil
}

func findDay(days []dayFile, day int) (dayFile, bool) {
	for _, d := range days {
		if d.day == day {
			return d, true
		}
	}
	return dayFile{}, false
}

// Next advances the cursor by one second.
func (c *Cursor) Next() {
	c.t = c.t.Add(time.Second)
}

// Time returns the cursor's current position.
func (c *Cursor) Time() time.Time {
	return c.t
}

// Close releases the cursor's open file handle, if any.
func (c *Cursor) Close() error {
	if c.curFile != nil {
		err := c.curFile.Close()
		c.curFile = nil
		return err
	}
	return nil
}
