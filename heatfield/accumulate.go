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
	"math"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/roadheat/roadnet"
)

// KernelOffset is a cell offset within the kernel and its distance from
// the kernel center, in cells.
type KernelOffset struct {
	DI, DJ int // row and column offsets
	Radius float64
}

// Kernel is the set of offsets within a cutoff radius of the origin.
type Kernel struct {
	Cutoff  int
	Offsets []KernelOffset
}

// NewKernel returns every integer offset whose distance from the origin
// is at most cutoff, ordered by row offset then column offset.
func NewKernel(cutoff int) *Kernel {
	k := &Kernel{Cutoff: cutoff}
	for i := -cutoff; i <= cutoff; i++ {
		for j := -cutoff; j <= cutoff; j++ {
			r := math.Sqrt(float64(i*i + j*j))
			if r <= float64(cutoff) {
				k.Offsets = append(k.Offsets, KernelOffset{DI: i, DJ: j, Radius: r})
			}
		}
	}
	return k
}

// Emissions gives the emission quantity of a link.
type Emissions interface {
	Quantity(link int) (q float64, ok bool)
}

// Contribution is the amount added to a cell at distance radius, in
// cells, from a source cell emitting quantity q.
func Contribution(q, radius float64) float64 {
	if radius == 0 {
		return q
	}
	return q / radius
}

// Accumulate allocates the emissions of every link that appears in both
// net and em onto a new grid. Each link's first segment is rasterized to
// source cells, and each source cell is spread over the kernel.
// Contributions that fall outside the grid are dropped.
func Accumulate(def *GridDef, net *roadnet.Network, em Emissions, k *Kernel) *Grid {
	g := NewGrid(def)
	for _, l := range net.Links() {
		q, ok := em.Quantity(l.ID)
		if !ok {
			continue
		}
		g.addLink(l.ID, l.Vertices[0], l.Vertices[1], q, k)
	}
	return g
}

func (g *Grid) addLink(id int, start, end geom.Point, q float64, k *Kernel) {
	seen := make(map[Cell]struct{})
	footprint := make([]Cell, 0)
	for _, src := range g.SourceCells(start, end) {
		if src.Col < -k.Cutoff || src.Col >= g.Cols+k.Cutoff ||
			src.Row < -k.Cutoff || src.Row >= g.Rows+k.Cutoff {
			continue // the kernel cannot reach the grid
		}
		for _, o := range k.Offsets {
			c := Cell{Col: src.Col + o.DJ, Row: src.Row + o.DI}
			if !g.Within(c) {
				continue
			}
			v := g.Values.At(c.Row, c.Col) + Contribution(q, o.Radius)
			g.Values.Set(c.Row, c.Col, v)
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				footprint = append(footprint, c)
			}
			if v > g.Max {
				g.Max = v
			}
		}
	}
	g.footprints[id] = footprint
}

// SourceCells rasterizes the chord from start to end (projected
// coordinates) into one cell per unit step along the columns it spans,
// or along the rows for a chord within a single column. Steep chords
// therefore leave gaps between consecutive source cells.
func (g *GridDef) SourceCells(start, end geom.Point) []Cell {
	ax, ay := g.Fractional(start)
	bx, by := g.Fractional(end)
	if !(ax < bx) {
		ax, ay, bx, by = bx, by, ax, ay
	}
	for _, v := range []float64{ax, ay, bx, by} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}
	xMin, xMax := int(math.Floor(ax)), int(math.Floor(bx))
	yMin, yMax := int(math.Floor(ay)), int(math.Floor(by))
	if yMin > yMax {
		yMin, yMax = yMax, yMin
	}
	var cells []Cell
	switch {
	case xMin == xMax:
		for y := yMin; y <= yMax; y++ {
			cells = append(cells, Cell{Col: xMin, Row: y})
		}
	case yMin == yMax:
		for x := xMin; x <= xMax; x++ {
			cells = append(cells, Cell{Col: x, Row: yMin})
		}
	default:
		m := (by - ay) / (bx - ax)
		yInt := ay - m*ax
		for x := xMin; x <= xMax; x++ {
			cells = append(cells, Cell{Col: x, Row: int(math.Floor(m*float64(x) + yInt))})
		}
	}
	return cells
}
