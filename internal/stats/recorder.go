package stats

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// moduleRecordSize is the on-disk stride of a module weight-average
// record: one little-endian float64, not a Bucket (the module day files
// hold a single running average per second, not pass/drop counters).
const moduleRecordSize = 8

// ModuleSample is one module's per-second weight average, handed to
// Recorder.Flush alongside the main Bucket. Engine builds these from
// modules.Entry.Average() for every module with chart recording turned
// on.
type ModuleSample struct {
	Name    string
	Average float64
}

// Recorder is the writer side of the statistics store: it owns the
// currently open day files, rolls them over at midnight UTC, and prunes
// files older than the retention window. All methods assume the caller
// holds whatever lock serializes calls to Flush (the engine's mutex);
// Recorder itself does no internal locking.
type Recorder struct {
	dir      string
	keepDays int

	day      int
	statFile *os.File
	modFiles map[string]*os.File
}

// NewRecorder creates a Recorder that writes day files under dir and
// keeps the most recent keepDays of them (keepDays <= 0 disables
// pruning).
func NewRecorder(dir string, keepDays int) *Recorder {
	return &Recorder{
		dir:      dir,
		keepDays: keepDays,
		day:      -1,
		modFiles: make(map[string]*os.File),
	}
}

// Flush writes one second's Bucket and the given module samples to the
// day files for now's calendar date, rolling the files over and
// sweeping old ones first if now has crossed into a new day.
func (r *Recorder) Flush(now time.Time, bucket Bucket, samples []ModuleSample) error {
	day := EncodeDay(now)
	if day != r.day {
		if err := r.rollover(now, day); err != nil {
			return err
		}
	}

	second := secondOfDay(now)

	if err := writeBucketAt(r.statFile, second*BucketSize, bucket); err != nil {
		return fmt.Errorf("stats: write day stat: %w", err)
	}

	for _, s := range samples {
		f, err := r.moduleFile(day, s.Name)
		if err != nil {
			return err
		}
		if err := writeFloatAt(f, second*moduleRecordSize, s.Average); err != nil {
			return fmt.Errorf("stats: write module stat %q: %w", s.Name, err)
		}
	}

	return nil
}

func secondOfDay(t time.Time) int64 {
	t = t.UTC()
	return int64(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func writeBucketAt(f *os.File, offset int64, b Bucket) error {
	raw, _ := b.MarshalBinary()
	_, err := f.WriteAt(raw, offset)
	return err
}

func writeFloatAt(f *os.File, offset int64, avg float64) error {
	var raw [moduleRecordSize]byte
	binary.LittleEndian.PutUint64(raw[:], math.Float64bits(avg))
	_, err := f.WriteAt(raw[:], offset)
	return err
}

func readFloatAt(f *os.File, offset int64) (float64, error) {
	var raw [moduleRecordSize]byte
	n, err := f.ReadAt(raw[:], offset)
	if n < moduleRecordSize {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(raw[:])), nil
}

func (r *Recorder) rollover(now time.Time, day int) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("stats: create stat dir: %w", err)
	}

	if r.statFile != nil {
		_ = r.statFile.Close()
	}
	for name, f := range r.modFiles {
		_ = f.Close()
		delete(r.modFiles, name)
	}

	f, err := os.OpenFile(DayStatPath(r.dir, day), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("stats: open day stat file: %w", err)
	}
	r.statFile = f
	r.day = day

	if err := r.sweep(now); err != nil {
		slog.Warn("stats: retention sweep failed", "error", err)
	}
	return nil
}

func (r *Recorder) moduleFile(day int, name string) (*os.File, error) {
	if f, ok := r.modFiles[name]; ok {
		return f, nil
	}
	f, err := os.OpenFile(ModuleStatPath(r.dir, name, day), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("stats: open module stat file %q: %w", name, err)
	}
	r.modFiles[name] = f
	return f, nil
}

// sweep removes day files older than keepDays relative to now. No-op
// when keepDays <= 0.
func (r *Recorder) sweep(now time.Time) error {
	if r.keepDays <= 0 {
		return nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		day, ok := parseDayFromFilename(ent.Name())
		if !ok {
			continue
		}
		age := int(now.UTC().Sub(DayEpoch(day)).Hours() / 24)
		if age > r.keepDays {
			_ = os.Remove(filepath.Join(r.dir, ent.Name()))
		}
	}
	return nil
}

// parseDayFromFilename extracts the DDMMYY day component from a
// "<name>.DDMMYY.dat" statistics filename.
func parseDayFromFilename(filename string) (int, bool) {
	base := strings.TrimSuffix(filename, ".dat")
	if base == filename {
		return 0, false
	}
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return 0, false
	}
	day, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0, false
	}
	return day, true
}

// Close closes all currently open day files.
func (r *Recorder) Close() error {
	var err error
	if r.statFile != nil {
		err = r.statFile.Close()
		r.statFile = nil
	}
	for name, f := range r.modFiles {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		delete(r.modFiles, name)
	}
	return err
}
