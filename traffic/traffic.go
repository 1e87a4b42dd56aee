/*
Copyright © 2020 the InMAP authors.
This file is part of RoadHeat.

RoadHeat is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

RoadHeat is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with RoadHeat.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package traffic reads vehicle simulation snapshots and link volume
// tables.
package traffic

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/geom"
)

// Increment is the time resolution of simulation snapshots.
const Increment = 30 * time.Second

const incrementsPerHour = int(time.Hour / Increment)

// Frame is the state of one vehicle at one snapshot time.
type Frame struct {
	Vehicle int

	// Time is the number of 30-second increments since midnight of the
	// first simulated day.
	Time int

	Link      int
	Direction int
	Lane      int

	// Offset is the distance along the link in meters.
	Offset float64
	Speed  float64
	Accel  float64

	VehicleType int
	Driver      int
	Passengers  int

	// X and Y are the recorded projected position.
	X, Y float64
}

// Point returns the recorded position.
func (f Frame) Point() geom.Point { return geom.Point{X: f.X, Y: f.Y} }

// Elapsed returns the frame time as a duration since midnight.
func (f Frame) Elapsed() time.Duration { return time.Duration(f.Time) * Increment }

// Timestamp returns the frame time formatted by FormatTimestamp.
func (f Frame) Timestamp() string { return FormatTimestamp(f.Time) }

// ParseTimestamp converts a "[DD@]HH:MM[:SS]" timestamp to the number of
// 30-second increments since midnight. Any seconds component counts as a
// half minute.
func ParseTimestamp(ts string) (int, error) {
	var out int
	if i := strings.IndexByte(ts, '@'); i >= 0 {
		days, err := strconv.Atoi(ts[:i])
		if err != nil {
			return 0, fmt.Errorf("traffic: timestamp %q: days: %v", ts, err)
		}
		out += days * 24 * incrementsPerHour
		ts = ts[i+1:]
	}
	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("traffic: invalid timestamp %q", ts)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("traffic: timestamp %q: hours: %v", ts, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("traffic: timestamp %q: minutes: %v", ts, err)
	}
	out += h*incrementsPerHour + m*2
	if len(parts) == 3 {
		out++
	}
	return out, nil
}

// FormatTimestamp formats a count of 30-second increments as "H:MM" or
// "H:MM:30". Days are folded into the hours.
func FormatTimestamp(t int) string {
	s := fmt.Sprintf("%d:%02d", t/incrementsPerHour, (t%incrementsPerHour)/2)
	if t%2 == 1 {
		s += ":30"
	}
	return s
}

// ErrMalformedRow is wrapped by all row validation errors.
var ErrMalformedRow = errors.New("malformed row")

// RowError is a validation failure on one input row.
type RowError struct {
	Line int // 1-based, counting the header
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("traffic: line %d: %v: %v", e.Line, ErrMalformedRow, e.Err)
}

// Unwrap returns ErrMalformedRow so that errors.Is can match it.
func (e *RowError) Unwrap() error { return ErrMalformedRow }

// SnapshotHeader is the header row of snapshot files.
var SnapshotHeader = []string{"VEHICLE", "TIME", "LINK", "DIR", "LANE", "OFFSET", "SPEED", "ACCEL",
	"VEH_TYPE", "DRIVER", "PASSENGERS", "X_COORD", "Y_COORD"}

// ParseFrame parses one snapshot record.
func ParseFrame(rec []string) (Frame, error) {
	var f Frame
	if len(rec) < len(SnapshotHeader) {
		return f, fmt.Errorf("%d columns; at least %d are required", len(rec), len(SnapshotHeader))
	}
	p := fieldParser{rec: rec}
	f.Vehicle = p.intField(0)
	if p.err == nil {
		f.Time, p.err = ParseTimestamp(strings.TrimSpace(rec[1]))
	}
	f.Link = p.intField(2)
	f.Direction = p.intField(3)
	f.Lane = p.intField(4)
	f.Offset = p.floatField(5)
	f.Speed = p.floatField(6)
	f.Accel = p.floatField(7)
	f.VehicleType = p.intField(8)
	f.Driver = p.intField(9)
	f.Passengers = p.intField(10)
	f.X = p.floatField(11)
	f.Y = p.floatField(12)
	return f, p.err
}

// Record returns f formatted as a snapshot record.
func (f Frame) Record() []string {
	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		strconv.Itoa(f.Vehicle), f.Timestamp(), strconv.Itoa(f.Link), strconv.Itoa(f.Direction),
		strconv.Itoa(f.Lane), ff(f.Offset), ff(f.Speed), ff(f.Accel), strconv.Itoa(f.VehicleType),
		strconv.Itoa(f.Driver), strconv.Itoa(f.Passengers), ff(f.X), ff(f.Y),
	}
}

// fieldParser parses record fields, keeping the first error.
type fieldParser struct {
	rec []string
	err error
}

func (p *fieldParser) intField(i int) int {
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(p.rec[i]))
	if err != nil {
		p.err = fmt.Errorf("column %d: %v", i, err)
	}
	return v
}

func (p *fieldParser) floatField(i int) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(p.rec[i]), 64)
	if err != nil {
		p.err = fmt.Errorf("column %d: %v", i, err)
	} else if math.IsNaN(v) || math.IsInf(v, 0) {
		p.err = fmt.Errorf("column %d: non-finite value %q", i, p.rec[i])
	}
	return v
}

// Trace is the time-ordered frames of one vehicle.
type Trace struct {
	Vehicle int
	Frames  []Frame
}

// Merge merges the frames of o into t by time and leaves o empty. Both
// traces must be time-ordered. On equal times frames of t come first.
func (t *Trace) Merge(o *Trace) {
	merged := make([]Frame, 0, len(t.Frames)+len(o.Frames))
	i, j := 0, 0
	for i < len(t.Frames) && j < len(o.Frames) {
		if o.Frames[j].Time < t.Frames[i].Time {
			merged = append(merged, o.Frames[j])
			j++
		} else {
			merged = append(merged, t.Frames[i])
			i++
		}
	}
	merged = append(merged, t.Frames[i:]...)
	merged = append(merged, o.Frames[j:]...)
	t.Frames = merged
	o.Frames = nil
}

// Snapshot is a collection of frames in time order, grouped into
// per-vehicle traces.
type Snapshot struct {
	Frames []Frame
	traces map[int]*Trace
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{traces: make(map[int]*Trace)}
}

// Append adds a frame. Frames must be appended in time order.
func (s *Snapshot) Append(f Frame) {
	s.Frames = append(s.Frames, f)
	t, ok := s.traces[f.Vehicle]
	if !ok {
		t = &Trace{Vehicle: f.Vehicle}
		s.traces[f.Vehicle] = t
	}
	t.Frames = append(t.Frames, f)
}

// Trace returns the trace of a vehicle.
func (s *Snapshot) Trace(vehicle int) (*Trace, bool) {
	t, ok := s.traces[vehicle]
	return t, ok
}

// Traces returns all traces in ascending vehicle order.
func (s *Snapshot) Traces() []*Trace {
	o := make([]*Trace, 0, len(s.traces))
	for _, t := range s.traces {
		o = append(o, t)
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Vehicle < o[j].Vehicle })
	return o
}

// ReadSnapshot reads a snapshot CSV file whose first row is a header. If
// ordered is false the frames are sorted by time, keeping file order for
// equal times; otherwise the file must already be in time order.
func ReadSnapshot(r io.Reader, ordered bool) (*Snapshot, error) {
	var frames []Frame
	err := readRecords(r, func(rec []string) error {
		f, err := ParseFrame(rec)
		if err != nil {
			return err
		}
		frames = append(frames, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !ordered {
		sort.SliceStable(frames, func(i, j int) bool { return frames[i].Time < frames[j].Time })
	}
	s := NewSnapshot()
	for _, f := range frames {
		s.Append(f)
	}
	return s, nil
}

// WriteCSV writes the frames with a header row.
func (s *Snapshot) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SnapshotHeader); err != nil {
		return err
	}
	for _, f := range s.Frames {
		if err := cw.Write(f.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// readRecords calls f for every record after the header.
func readRecords(r io.Reader, f func(rec []string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("traffic: reading header: %v", err)
	}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return &RowError{Line: line, Err: err}
		}
		if err := f(rec); err != nil {
			return &RowError{Line: line, Err: err}
		}
	}
}
