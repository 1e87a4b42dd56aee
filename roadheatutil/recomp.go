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

package roadheatutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/roadheat/heatfield"
	"github.com/spatialmodel/roadheat/roadnet"
	"github.com/spatialmodel/roadheat/traffic"
)

// ChordMethod is the way a recomputed coordinate was chosen.
type ChordMethod int

// Chord methods.
const (
	UseEndpoint ChordMethod = iota
	UseRecorded
	UseMidpoint
	SolveForPoint
)

func (m ChordMethod) String() string {
	switch m {
	case UseEndpoint:
		return "USE ENDPOINT"
	case UseRecorded:
		return "USE ORIGINAL"
	case UseMidpoint:
		return "USE MIDPOINT"
	case SolveForPoint:
		return "SOLVE FOR POINT"
	default:
		return "ChordMethod(" + strconv.Itoa(int(m)) + ")"
	}
}

// ChordMethods holds the methods used for both coordinates of a position.
type ChordMethods struct {
	X, Y ChordMethod
}

// Chord returns the endpoints of the first segment of l, western endpoint
// first. This is the chord whose cells receive the link's emissions.
func Chord(l *roadnet.Link) (a, b geom.Point) {
	a, b = l.Vertices[0], l.Vertices[1]
	if !(a.X < b.X) {
		a, b = b, a
	}
	return a, b
}

// ChordPoint moves a position with easting x onto chord ab, where
// a.X <= b.X. The easting is clamped to the chord. The northing is the
// chord's northing for a horizontal chord, the chord's midpoint for a
// vertical one, and the point on the chord otherwise.
func ChordPoint(x float64, a, b geom.Point) (geom.Point, ChordMethods) {
	var p geom.Point
	var m ChordMethods
	switch {
	case x < a.X:
		p.X, m.X = a.X, UseEndpoint
	case x > b.X:
		p.X, m.X = b.X, UseEndpoint
	default:
		p.X, m.X = x, UseRecorded
	}
	switch {
	case a.Y == b.Y:
		p.Y, m.Y = a.Y, UseEndpoint
	case a.X == b.X:
		p.Y, m.Y = (a.Y+b.Y)/2, UseMidpoint
	default:
		slope := (b.Y - a.Y) / (b.X - a.X)
		p.Y, m.Y = a.Y+slope*(p.X-a.X), SolveForPoint
	}
	return p, m
}

// Recomputation counts the position errors found by Recompute.
type Recomputation struct {
	Total int

	// ErrX and ErrY count frames whose easting or northing lies outside
	// the grid or farther than the threshold from the link's chord.
	// OutsideX and OutsideY count the subset outside the grid.
	ErrX, OutsideX int
	ErrY, OutsideY int

	// Erroneous is the number of frames with an error in either coordinate.
	Erroneous int

	// Missing is the number of frames whose link is not in the network.
	// They are kept unchanged.
	Missing int

	// Methods counts the recomputed frames by method.
	Methods map[ChordMethods]int
}

// MethodCounts returns the keys of r.Methods ordered by x method then
// y method.
func (r *Recomputation) MethodCounts() []ChordMethods {
	o := make([]ChordMethods, 0, len(r.Methods))
	for m := range r.Methods {
		o = append(o, m)
	}
	sort.Slice(o, func(i, j int) bool {
		if o[i].X != o[j].X {
			return o[i].X < o[j].X
		}
		return o[i].Y < o[j].Y
	})
	return o
}

// RecompRecord describes the recomputation of one frame.
type RecompRecord struct {
	Old      traffic.Frame
	A, B     geom.Point
	Methods  ChordMethods
	Position geom.Point
}

// RecompReportHeader lists the columns of RecompRecord.Record.
var RecompReportHeader = []string{"VEHICLE", "TIME", "LINK", "A_X", "A_Y", "B_X", "B_Y",
	"OLD_X_COORD", "OLD_Y_COORD", "X_METHOD", "Y_METHOD", "NEW_X_COORD", "NEW_Y_COORD", "DIFF_X", "DIFF_Y"}

// Record returns r as a report row.
func (r RecompRecord) Record() []string {
	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		strconv.Itoa(r.Old.Vehicle), r.Old.Timestamp(), strconv.Itoa(r.Old.Link),
		ff(r.A.X), ff(r.A.Y), ff(r.B.X), ff(r.B.Y),
		ff(r.Old.X), ff(r.Old.Y), r.Methods.X.String(), r.Methods.Y.String(),
		ff(r.Position.X), ff(r.Position.Y), ff(r.Position.X - r.Old.X), ff(r.Position.Y - r.Old.Y),
	}
}

// Recompute checks the position of every frame of s against the chord of
// its link and returns a copy of s with each position moved onto the
// chord. A coordinate is in error if it lies outside def's box or more
// than maxCells cells beyond the chord's extent. If report is not nil it
// is called for every recomputed frame, and its first error stops the
// recomputation.
func Recompute(net *roadnet.Network, def *heatfield.GridDef, maxCells float64, s *traffic.Snapshot,
	report func(RecompRecord) error) (*traffic.Snapshot, *Recomputation, error) {
	dx := maxCells * (def.XMax - def.XMin) / float64(def.Cols)
	dy := maxCells * (def.YMax - def.YMin) / float64(def.Rows)

	r := &Recomputation{Methods: make(map[ChordMethods]int)}
	out := traffic.NewSnapshot()
	for _, f := range s.Frames {
		r.Total++
		l, ok := net.Link(f.Link)
		if !ok {
			r.Missing++
			out.Append(f)
			continue
		}
		a, b := Chord(l)
		var bad bool
		switch {
		case f.X < def.XMin || f.X > def.XMax:
			r.OutsideX++
			r.ErrX++
			bad = true
		case f.X < a.X-dx || f.X > b.X+dx:
			r.ErrX++
			bad = true
		}
		yLo, yHi := a.Y, b.Y
		if yLo > yHi {
			yLo, yHi = yHi, yLo
		}
		switch {
		case f.Y < def.YMin || f.Y > def.YMax:
			r.OutsideY++
			r.ErrY++
			bad = true
		case f.Y < yLo-dy || f.Y > yHi+dy:
			r.ErrY++
			bad = true
		}
		if bad {
			r.Erroneous++
		}

		p, m := ChordPoint(f.X, a, b)
		r.Methods[m]++
		if report != nil {
			if err := report(RecompRecord{Old: f, A: a, B: b, Methods: m, Position: p}); err != nil {
				return nil, nil, err
			}
		}
		f.X, f.Y = p.X, p.Y
		out.Append(f)
	}
	return out, r, nil
}

// recompReporter returns a report function that writes CSV rows to w,
// starting with the header.
func recompReporter(w *csv.Writer) (func(RecompRecord) error, error) {
	if err := w.Write(RecompReportHeader); err != nil {
		return nil, err
	}
	return func(r RecompRecord) error { return w.Write(r.Record()) }, nil
}

// writeRecomputation prints the summary of r.
func writeRecomputation(w io.Writer, r *Recomputation) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "Error rates prior to reinterpretation:")
	fmt.Fprintf(&buf, "%05d erroneous x-coordinates out of %05d total entries = %3.3f%%\n", r.ErrX, r.Total, percent(r.ErrX, r.Total))
	fmt.Fprintf(&buf, "%05d of these were outside the map, rate of occurrence = %3.3f%%\n", r.OutsideX, percent(r.OutsideX, r.Total))
	fmt.Fprintf(&buf, "%05d erroneous y-coordinates out of %05d total entries = %3.3f%%\n", r.ErrY, r.Total, percent(r.ErrY, r.Total))
	fmt.Fprintf(&buf, "%05d of these were outside the map, rate of occurrence = %3.3f%%\n", r.OutsideY, percent(r.OutsideY, r.Total))
	fmt.Fprintf(&buf, "%05d erroneous entries in total, rate of occurrence = %3.3f%%\n", r.Erroneous, percent(r.Erroneous, r.Total))
	if r.Missing > 0 {
		fmt.Fprintf(&buf, "%05d entries were on links missing from the network and were not corrected\n", r.Missing)
	}
	for _, m := range r.MethodCounts() {
		fmt.Fprintf(&buf, "%05d entries were corrected as follows: method for x-coord was \"%s\", method for y-coord was \"%s\"\n",
			r.Methods[m], m.X, m.Y)
	}
	_, err := buf.WriteTo(w)
	return err
}
