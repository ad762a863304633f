package chart

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/natefinch/atomic"

	"github.com/vmxdev/damper/internal/stats"
)

// Server is a minimal HTTP front end over the statistics store: GET
// /chart?set=dstat&from=<unix>&to=<unix>&w=<px>&h=<px>&kind=packets|bytes
// renders and returns a PNG.
type Server struct {
	log      *slog.Logger
	statDir  string
	cacheDir string
}

// NewServer creates a Server reading statistics from statDir. If
// cacheDir is non-empty, rendered PNGs are persisted there via an
// atomic rename so concurrent requests for the same window never
// observe a torn file.
func NewServer(log *slog.Logger, statDir, cacheDir string) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{log: log, statDir: statDir, cacheDir: cacheDir}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chart" {
		http.NotFound(w, r)
		return
	}

	opts, err := s.parseOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cur, err := stats.Open(s.statDir)
	if err != nil {
		s.log.Error("opening stats dir", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer cur.Close()

	var buf bytes.Buffer
	if err := Render(cur, opts, &buf); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.cacheDir != "" {
		path := filepath.Join(s.cacheDir, cacheFilename(opts))
		if err := atomic.WriteFile(path, bytes.NewReader(buf.Bytes())); err != nil {
			s.log.Warn("caching rendered chart", "error", err)
		}
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) parseOptions(r *http.Request) (Options, error) {
	q := r.URL.Query()

	set := q.Get("set")
	if set == "" {
		set = "dstat"
	}

	from, err := parseUnix(q.Get("from"))
	if err != nil {
		return Options{}, fmt.Errorf("from: %w", err)
	}
	to, err := parseUnix(q.Get("to"))
	if err != nil {
		return Options{}, fmt.Errorf("to: %w", err)
	}

	width := 600
	if v := q.Get("w"); v != "" {
		width, err = strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("w: %w", err)
		}
	}
	height := 200
	if v := q.Get("h"); v != "" {
		height, err = strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("h: %w", err)
		}
	}

	kind := KindPackets
	if q.Get("kind") == "bytes" {
		kind = KindOctets
	}

	return Options{Set: set, Start: from, End: to, Width: width, Height: height, Kind: kind}, nil
}

func parseUnix(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("required")
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

func cacheFilename(opts Options) string {
	return fmt.Sprintf("%s-%d-%d-%dx%d-%d.png",
		opts.Set, opts.Start.Unix(), opts.End.Unix(), opts.Width, opts.Height, opts.Kind)
}
