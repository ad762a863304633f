// Package stats implements the persistent per-second statistics store:
// the bit-exact on-disk record formats, the writer side (Recorder), and
// the random-access reader side (Cursor).
package stats

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"
)

// BucketSize is the on-disk size, in bytes, of one Bucket record.
const BucketSize = 16

// Bucket is one second's worth of pass/drop counters: four packed
// little-endian uint32s, 16 bytes total.
type Bucket struct {
	PacketsPass uint32
	OctetsPass  uint32
	PacketsDrop uint32
	OctetsDrop  uint32
}

// MarshalBinary encodes b into its 16-byte on-disk representation.
func (b Bucket) MarshalBinary() ([]byte, error) {
	buf := make([]byte, BucketSize)
	binary.LittleEndian.PutUint32(buf[0:4], b.PacketsPass)
	binary.LittleEndian.PutUint32(buf[4:8], b.OctetsPass)
	binary.LittleEndian.PutUint32(buf[8:12], b.PacketsDrop)
	binary.LittleEndian.PutUint32(buf[12:16], b.OctetsDrop)
	return buf, nil
}

// UnmarshalBinary decodes a Bucket from its 16-byte on-disk
// representation.
func (b *Bucket) UnmarshalBinary(data []byte) error {
	if len(data) < BucketSize {
		return fmt.Errorf("stats: short bucket record: %d bytes", len(data))
	}
	b.PacketsPass = binary.LittleEndian.Uint32(data[0:4])
	b.OctetsPass = binary.LittleEndian.Uint32(data[4:8])
	b.PacketsDrop = binary.LittleEndian.Uint32(data[8:12])
	b.OctetsDrop = binary.LittleEndian.Uint32(data[12:16])
	return nil
}

// EncodeDay packs t's UTC calendar date into the DDMMYY integer form
// used in day-file names (day*10000 + month*100 + (year-2000)).
func EncodeDay(t time.Time) int {
	t = t.UTC()
	y, m, d := t.Date()
	return d*10000 + int(m)*100 + (y - 2000)
}

// DayEpoch returns the UTC epoch of 00:00:00 on the day encoded by
// ddmmyy, the inverse of EncodeDay.
func DayEpoch(ddmmyy int) time.Time {
	day := ddmmyy / 10000
	month := (ddmmyy / 100) % 100
	year := 2000 + ddmmyy%100
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DayStatPath returns the path of the main per-second pass/drop day file
// for the given day.
func DayStatPath(dir string, ddmmyy int) string {
	return filepath.Join(dir, fmt.Sprintf("dstat.%06d.dat", ddmmyy))
}

// ModuleStatPath returns the path of a module's per-second weight-average
// day file.
func ModuleStatPath(dir, module string, ddmmyy int) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%06d.dat", module, ddmmyy))
}
