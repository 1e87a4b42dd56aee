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

package heatfield

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/kr/pretty"
	"github.com/spatialmodel/roadheat/roadnet"
	"github.com/spatialmodel/roadheat/utm"
	"gonum.org/v1/gonum/floats"
)

const testTolerance = 1e-9

func different(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance
}

// The Chicago Loop study area.
const (
	testRows = 550
	testCols = 400
	testXMin = 446319.62563207
	testXMax = 448913.35313896
	testYMin = 4634587.13680183
	testYMax = 4638130.74608598
)

type quantities map[int]float64

func (q quantities) Quantity(link int) (float64, bool) {
	v, ok := q[link]
	return v, ok
}

func loopGrid(t *testing.T) *GridDef {
	g, err := NewGridDef(testRows, testCols, testXMin, testXMax, testYMin, testYMax)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestNewGridDef(t *testing.T) {
	for _, args := range [][6]float64{
		{1, 10, 0, 1, 0, 1},
		{10, 0, 0, 1, 0, 1},
		{10, 10, 1, 1, 0, 1},
		{10, 10, 0, 1, 2, 1},
		{10, 10, 0, math.NaN(), 0, 1},
	} {
		if _, err := NewGridDef(int(args[0]), int(args[1]), args[2], args[3], args[4], args[5]); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}

func TestGridCorners(t *testing.T) {
	g := loopGrid(t)
	if c := g.Cell(geom.Point{X: testXMin, Y: testYMax}); c != (Cell{Col: 0, Row: 0}) {
		t.Errorf("northwest corner: have %+v, want {0 0}", c)
	}
	col, row := g.Fractional(geom.Point{X: testXMax, Y: testYMin})
	if math.Round(col) != testCols-1 || math.Round(row) != testRows-1 {
		t.Errorf("southeast corner: have (%g, %g), want (%d, %d)", col, row, testCols-1, testRows-1)
	}
	if !g.Within(Cell{Col: 0, Row: 0}) || g.Within(Cell{Col: testCols, Row: 0}) || g.Within(Cell{Col: 0, Row: -1}) {
		t.Error("Within is wrong at the grid edges")
	}
	p := g.Point(Cell{Col: 17, Row: 203})
	if c := g.Cell(geom.Point{X: p.X + 0.01, Y: p.Y - 0.01}); c != (Cell{Col: 17, Row: 203}) {
		t.Errorf("Point/Cell round trip: have %+v", c)
	}
}

func TestKernel(t *testing.T) {
	k := NewKernel(8)
	if len(k.Offsets) != 197 {
		t.Errorf("kernel size: have %d, want 197", len(k.Offsets))
	}
	if k.Offsets[0] != (KernelOffset{DI: -8, DJ: 0, Radius: 8}) {
		t.Errorf("first offset: have %+v", k.Offsets[0])
	}
	for _, o := range k.Offsets {
		if o.Radius > 8 || different(o.Radius, math.Hypot(float64(o.DI), float64(o.DJ)), testTolerance) {
			t.Errorf("bad offset %+v", o)
		}
	}
	k1 := NewKernel(1)
	want := []KernelOffset{{-1, 0, 1}, {0, -1, 1}, {0, 0, 0}, {0, 1, 1}, {1, 0, 1}}
	if diff := pretty.Diff(k1.Offsets, want); len(diff) != 0 {
		t.Error(diff)
	}
}

func TestSourceCells(t *testing.T) {
	// One cell per projected meter, with row 0 at y = 10.
	g, err := NewGridDef(11, 11, 0, 10, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name       string
		start, end geom.Point
		want       []Cell
	}{
		{
			name:  "vertical",
			start: geom.Point{X: 2.5, Y: 3.5}, end: geom.Point{X: 2.7, Y: 6.5},
			want: []Cell{{2, 3}, {2, 4}, {2, 5}, {2, 6}},
		},
		{
			name:  "horizontal",
			start: geom.Point{X: 6.5, Y: 4.5}, end: geom.Point{X: 3.5, Y: 4.2},
			want: []Cell{{3, 5}, {4, 5}, {5, 5}, {6, 5}},
		},
		{
			// Steep chords leave gaps between the source cells.
			name:  "steep",
			start: geom.Point{X: 0.5, Y: 9.5}, end: geom.Point{X: 3.5, Y: 0.5},
			want: []Cell{{0, -1}, {1, 2}, {2, 5}, {3, 8}},
		},
		{
			name:  "point",
			start: geom.Point{X: 4.2, Y: 4.2}, end: geom.Point{X: 4.2, Y: 4.2},
			want: []Cell{{4, 5}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			have := g.SourceCells(test.start, test.end)
			if diff := pretty.Diff(have, test.want); len(diff) != 0 {
				t.Errorf("%v\nhave %v", diff, have)
			}
			// Order of the endpoints does not matter.
			rev := g.SourceCells(test.end, test.start)
			if diff := pretty.Diff(rev, test.want); len(diff) != 0 {
				t.Errorf("reversed: %v", diff)
			}
		})
	}
}

// singleLink returns a network with one short link whose first segment
// lies within one cell, and a 21×21 grid of 10 m cells whose central cell
// (10, 10) contains it.
func singleLink(t *testing.T) (*roadnet.Network, *GridDef) {
	start := roadnet.GeoPoint{Lat: 41.8800, Lon: -87.6300}
	end := roadnet.GeoPoint{Lat: 41.880002, Lon: -87.629998}
	net, err := roadnet.New([]roadnet.Feature{{ID: 1, Coords: []roadnet.GeoPoint{start, end}}}, -87)
	if err != nil {
		t.Fatal(err)
	}
	p := utm.Project(start.Lat, start.Lon, -87)
	xmin := p.X - 105
	ymax := p.Y + 105
	g, err := NewGridDef(21, 21, xmin, xmin+200, ymax-200, ymax)
	if err != nil {
		t.Fatal(err)
	}
	return net, g
}

func TestAccumulateSingleLink(t *testing.T) {
	const q = 3.5
	net, def := singleLink(t)
	g := Accumulate(def, net, quantities{1: q}, NewKernel(2))

	checks := []struct {
		cell Cell
		want float64
	}{
		{Cell{10, 10}, q},
		{Cell{9, 9}, q / math.Sqrt2},
		{Cell{11, 9}, q / math.Sqrt2},
		{Cell{9, 11}, q / math.Sqrt2},
		{Cell{11, 11}, q / math.Sqrt2},
		{Cell{10, 11}, q},
		{Cell{12, 10}, q / 2},
		{Cell{12, 12}, 0},
	}
	for _, c := range checks {
		if v := g.At(c.cell); different(v, c.want, testTolerance) {
			t.Errorf("cell %+v: have %g, want %g", c.cell, v, c.want)
		}
	}
	if g.Max != q {
		t.Errorf("max: have %g, want %g", g.Max, q)
	}
	if want := q * (7 + 2*math.Sqrt2); different(g.Total(), want, testTolerance) {
		t.Errorf("total: have %g, want %g", g.Total(), want)
	}
	fp, ok := g.Footprint(1)
	if !ok || len(fp) != 13 {
		t.Errorf("footprint: have %d cells (ok=%v), want 13", len(fp), ok)
	}
}

func TestAccumulateSuperposition(t *testing.T) {
	net, def := singleLink(t)
	k := NewKernel(2)
	one := Accumulate(def, net, quantities{1: 2}, k)
	two := Accumulate(def, net, quantities{1: 4}, k)
	d, err := Diff(one, two)
	if err != nil {
		t.Fatal(err)
	}
	// two is one scaled by 2, so the difference is one's norm.
	var sq float64
	for _, v := range one.Values.RawMatrix().Data {
		sq += v * v
	}
	if different(d, math.Sqrt(sq), 1e-9) {
		t.Errorf("diff: have %g, want %g", d, math.Sqrt(sq))
	}
	if d, _ := Diff(one, one); d != 0 {
		t.Errorf("self diff: have %g", d)
	}
}

func TestAccumulateMissingEmissions(t *testing.T) {
	net, def := singleLink(t)
	g := Accumulate(def, net, quantities{2: 10}, NewKernel(2))
	if g.Total() != 0 || g.Max != 0 {
		t.Errorf("grid should be empty; total %g, max %g", g.Total(), g.Max)
	}
	if _, ok := g.Footprint(1); ok {
		t.Error("link without emissions should have no footprint")
	}
}

func TestAccumulateOutside(t *testing.T) {
	// A link about 30 km west of the study area.
	net, err := roadnet.New([]roadnet.Feature{{ID: 5, Coords: []roadnet.GeoPoint{
		{Lat: 41.88, Lon: -88.0}, {Lat: 41.89, Lon: -88.01},
	}}}, -87)
	if err != nil {
		t.Fatal(err)
	}
	g := Accumulate(loopGrid(t), net, quantities{5: 100}, NewKernel(8))
	fp, ok := g.Footprint(5)
	if !ok || len(fp) != 0 {
		t.Errorf("footprint: have %v (ok=%v), want empty", fp, ok)
	}
	if g.Total() != 0 || g.Max != 0 {
		t.Errorf("grid should be unchanged; total %g, max %g", g.Total(), g.Max)
	}
}

const testNetworkGeoJSON = `{"type": "FeatureCollection", "features": [
{"type": "Feature", "properties": {"LINKID": 1, "FROM": 1, "TO": 2, "DIRECT": 0, "FCC": "A31"},
 "geometry": {"type": "LineString", "coordinates": [[-87.6300, 41.8800], [-87.6300, 41.8850]]}},
{"type": "Feature", "properties": {"LINKID": 2, "FROM": 2, "TO": 3, "DIRECT": 0, "FCC": "A31"},
 "geometry": {"type": "LineString", "coordinates": [[-87.6300, 41.8850], [-87.6250, 41.8850], [-87.6240, 41.8900]]}},
{"type": "Feature", "properties": {"LINKID": 3, "FROM": 3, "TO": 1, "DIRECT": 1, "FCC": "A41"},
 "geometry": {"type": "LineString", "coordinates": [[-87.6240, 41.8900], [-87.6300, 41.8800]]}},
{"type": "Feature", "properties": {"LINKID": 4, "FROM": 3, "TO": 4, "DIRECT": 0, "FCC": "A41"},
 "geometry": {"type": "LineString", "coordinates": [[-87.6350, 41.8700], [-87.6500, 41.8600]]}}
]}`

func TestAccumulateLoop(t *testing.T) {
	net, err := roadnet.ReadGeoJSON(strings.NewReader(testNetworkGeoJSON), -87)
	if err != nil {
		t.Fatal(err)
	}
	em := quantities{1: 0.5, 2: 1.25, 3: 0.75, 4: 2}
	g := Accumulate(loopGrid(t), net, em, NewKernel(8))
	data := g.Values.RawMatrix().Data
	for i, v := range data {
		if v < 0 {
			t.Fatalf("cell %d is negative: %g", i, v)
		}
	}
	if max := floats.Max(data); g.Max != max {
		t.Errorf("max: have %g, want %g", g.Max, max)
	}
	if g.Max <= 0 {
		t.Error("grid should not be empty")
	}
	for id := 1; id <= 3; id++ {
		fp, ok := g.Footprint(id)
		if !ok || len(fp) == 0 {
			t.Errorf("link %d should have a footprint", id)
		}
		seen := make(map[Cell]bool)
		for _, c := range fp {
			if !g.Within(c) {
				t.Errorf("link %d: footprint cell %+v outside grid", id, c)
			}
			if seen[c] {
				t.Errorf("link %d: duplicate footprint cell %+v", id, c)
			}
			seen[c] = true
		}
	}
	whole := &geom.Bounds{Min: geom.Point{X: testXMin, Y: testYMin}, Max: geom.Point{X: testXMax, Y: testYMax}}
	if different(g.RegionTotal(whole), g.Total(), 1e-6) {
		t.Errorf("region total over the whole box: have %g, want %g", g.RegionTotal(whole), g.Total())
	}
	huge := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 1e7, Y: 1e7}}
	if different(g.RegionTotal(huge), g.Total(), 1e-6) {
		t.Errorf("region total beyond the box: have %g, want %g", g.RegionTotal(huge), g.Total())
	}
}

func TestRegionTotal(t *testing.T) {
	const q = 1.
	net, def := singleLink(t)
	g := Accumulate(def, net, quantities{1: q}, NewKernel(2))
	// The rectangle covering only cell (10, 10).
	nw := def.Point(Cell{Col: 10, Row: 10})
	se := def.Point(Cell{Col: 11, Row: 11})
	b := &geom.Bounds{
		Min: geom.Point{X: nw.X + 0.1, Y: se.Y + 0.1},
		Max: geom.Point{X: se.X - 0.1, Y: nw.Y - 0.1},
	}
	if v := g.RegionTotal(b); different(v, q, testTolerance) {
		t.Errorf("have %g, want %g", v, q)
	}
}

func TestDiffDimensions(t *testing.T) {
	a, _ := NewGridDef(3, 3, 0, 1, 0, 1)
	b, _ := NewGridDef(3, 4, 0, 1, 0, 1)
	if _, err := Diff(NewGrid(a), NewGrid(b)); err == nil {
		t.Error("expected an error")
	}
}

func TestWriteCSV(t *testing.T) {
	def, _ := NewGridDef(2, 3, 0, 2, 0, 1)
	g := NewGrid(def)
	g.Values.Set(0, 1, 1.5)
	g.Values.Set(1, 2, 0.25)
	var buf bytes.Buffer
	if err := g.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	want := "0,1.5,0\n0,0,0.25\n"
	if buf.String() != want {
		t.Errorf("have %q, want %q", buf.String(), want)
	}
}
