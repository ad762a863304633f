// Package chart renders PNG time-series charts from the statistics
// store: a thin, read-only consumer of stats.Cursor built on the
// stdlib image/image-png packages.
package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"time"

	"github.com/vmxdev/damper/internal/stats"
)

// Kind selects which counters a Render call plots: packet counts or
// octet counts.
type Kind int

const (
	KindPackets Kind = iota
	KindOctets
)

var (
	gridMinor = color.RGBA{240, 240, 240, 255}
	gridMajor = color.RGBA{230, 230, 230, 255}
	passColor = color.RGBA{0, 150, 0, 255}
	dropColor = color.RGBA{150, 0, 0, 255}
)

// Options configures a single Render call.
type Options struct {
	Set           string // stats set name, e.g. "dstat"
	Start, End    time.Time
	Width, Height int
	Kind          Kind
}

// Render draws a stacked pass/drop bar chart for opts.Set over
// [opts.Start, opts.End) by driving cur one column at a time, and
// encodes it as PNG to w.
//
// Each column aggregates the peak passed and dropped value observed
// within its time slice; drawBars then scales every column to the
// chart's own overall peak in a second pass.
func Render(cur *stats.Cursor, opts Options, w io.Writer) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("chart: invalid dimensions %dx%d", opts.Width, opts.Height)
	}
	if !opts.End.After(opts.Start) {
		return fmt.Errorf("chart: end must be after start")
	}

	passed, dropped, err := sampleColumns(cur, opts)
	if err != nil {
		return err
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	drawBackground(img)
	drawBars(img, passed, dropped)

	return png.Encode(w, img)
}

// sampleColumns walks the cursor once across [start,end), bucketing
// seconds into opts.Width columns and keeping the peak passed/dropped
// value seen in each column.
func sampleColumns(cur *stats.Cursor, opts Options) ([]uint32, []uint32, error) {
	total := opts.End.Sub(opts.Start)
	secondsPerCol := total / time.Duration(opts.Width)
	if secondsPerCol < time.Second {
		secondsPerCol = time.Second
	}

	if err := cur.Seek(opts.Set, opts.Start); err != nil {
		return nil, nil, fmt.Errorf("chart: %w", err)
	}

	passed := make([]uint32, opts.Width)
	dropped := make([]uint32, opts.Width)

	t := opts.Start
	col := 0
	colEnd := t.Add(secondsPerCol)

	for t.Before(opts.End) && col < opts.Width {
		b, err := cur.Bucket()
		if err != nil {
			return nil, nil, fmt.Errorf("chart: %w", err)
		}

		p, d := counters(opts.Kind, b)
		if p > passed[col] {
			passed[col] = p
		}
		if d > dropped[col] {
			dropped[col] = d
		}

		cur.Next()
		t = t.Add(time.Second)
		for !t.Before(colEnd) && col < opts.Width-1 {
			col++
			colEnd = colEnd.Add(secondsPerCol)
		}
	}

	return passed, dropped, nil
}

func counters(kind Kind, b stats.Bucket) (passed, dropped uint32) {
	if kind == KindOctets {
		return b.OctetsPass, b.OctetsDrop
	}
	return b.PacketsPass, b.PacketsDrop
}

// drawBackground paints a white canvas with a light grid, a major line
// every 5 cells and a minor line every cell.
func drawBackground(img *image.RGBA) {
	bounds := img.Bounds()
	white := color.RGBA{255, 255, 255, 255}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.SetRGBA(x, y, white)
		}
	}

	for x := 0; x*10 < bounds.Dx(); x++ {
		c := gridMinor
		if x%5 == 0 {
			c = gridMajor
		}
		drawVertLine(img, x*10, bounds.Min.Y, bounds.Max.Y, c)
	}
	for y := 0; y*10 < bounds.Dy(); y++ {
		c := gridMinor
		if y%5 == 0 {
			c = gridMajor
		}
		drawHorizLine(img, bounds.Min.X, bounds.Max.X, y*10, c)
	}
}

func drawVertLine(img *image.RGBA, x, y1, y2 int, c color.RGBA) {
	for y := y1; y < y2; y++ {
		img.SetRGBA(x, y, c)
	}
}

func drawHorizLine(img *image.RGBA, x1, x2, y int, c color.RGBA) {
	for x := x1; x < x2; x++ {
		img.SetRGBA(x, y, c)
	}
}

// drawBars stacks a green "passed" bar above a red "dropped" bar for
// each column, both scaled to the chart's own peak value.
func drawBars(img *image.RGBA, passed, dropped []uint32) {
	bounds := img.Bounds()
	height := bounds.Dy()

	var peak uint32
	for i := range passed {
		if passed[i] > peak {
			peak = passed[i]
		}
		if dropped[i] > peak {
			peak = dropped[i]
		}
	}
	if peak == 0 {
		return
	}

	for x, p := range passed {
		if x >= bounds.Dx() {
			break
		}
		d := dropped[x]
		passH := int(float64(p) / float64(peak) * float64(height) / 2)
		dropH := int(float64(d) / float64(peak) * float64(height) / 2)

		mid := height / 2
		for y := mid - passH; y < mid; y++ {
			img.SetRGBA(x, y, passColor)
		}
		for y := mid; y < mid+dropH; y++ {
			img.SetRGBA(x, y, dropColor)
		}
	}
}
