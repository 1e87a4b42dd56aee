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

// Package heatfield allocates per-link emissions onto a regular grid,
// spreading each link's emissions over neighboring cells with
// inverse-distance decay.
package heatfield

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/mat"
)

// GridDef specifies the grid that emissions are allocated to. Row 0 is
// the northern edge of the box and column 0 the western edge.
type GridDef struct {
	Rows, Cols int
	XMin, XMax float64
	YMin, YMax float64

	sx, sy float64 // scale factors
}

// NewGridDef creates a grid with rows×cols cells covering the projected
// box [xmin, xmax]×[ymin, ymax].
func NewGridDef(rows, cols int, xmin, xmax, ymin, ymax float64) (*GridDef, error) {
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("heatfield: grid must have at least 2 rows and columns; have %d×%d", rows, cols)
	}
	if !(xmax > xmin) || !(ymax > ymin) {
		return nil, fmt.Errorf("heatfield: empty grid box [%g, %g]×[%g, %g]", xmin, xmax, ymin, ymax)
	}
	return &GridDef{
		Rows: rows, Cols: cols,
		XMin: xmin, XMax: xmax,
		YMin: ymin, YMax: ymax,
		sx: float64(cols-1) / (xmax - xmin),
		sy: float64(rows-1) / (ymin - ymax),
	}, nil
}

// Cell is the column and row index of a grid cell.
type Cell struct {
	Col, Row int
}

// Fractional returns the fractional column and row of projected point p.
func (g *GridDef) Fractional(p geom.Point) (col, row float64) {
	return g.sx * (p.X - g.XMin), g.sy * (p.Y - g.YMax)
}

// Cell returns the cell containing projected point p. The cell may lie
// outside the grid.
func (g *GridDef) Cell(p geom.Point) Cell {
	col, row := g.Fractional(p)
	return Cell{Col: int(math.Floor(col)), Row: int(math.Floor(row))}
}

// Within returns whether c is a cell of the grid.
func (g *GridDef) Within(c Cell) bool {
	return c.Col >= 0 && c.Col < g.Cols && c.Row >= 0 && c.Row < g.Rows
}

// Point returns the projected location of the corner of cell c that maps
// to (c.Col, c.Row).
func (g *GridDef) Point(c Cell) geom.Point {
	return geom.Point{
		X: g.XMin + float64(c.Col)/g.sx,
		Y: g.YMax + float64(c.Row)/g.sy,
	}
}

// Grid holds accumulated emissions. A Grid is read-only once returned by
// Accumulate and may be shared between goroutines.
type Grid struct {
	*GridDef

	// Values holds cell values, indexed (row, col).
	Values *mat.Dense

	// Max is the largest cell value.
	Max float64

	footprints map[int][]Cell
}

// NewGrid returns an empty grid.
func NewGrid(def *GridDef) *Grid {
	return &Grid{
		GridDef:    def,
		Values:     mat.NewDense(def.Rows, def.Cols, nil),
		footprints: make(map[int][]Cell),
	}
}

// At returns the value of cell c, or 0 if c is outside the grid.
func (g *Grid) At(c Cell) float64 {
	if !g.Within(c) {
		return 0
	}
	return g.Values.At(c.Row, c.Col)
}

// Footprint returns the cells that link id contributed to, in the order
// they were first written. ok is false if the link was not accumulated.
func (g *Grid) Footprint(id int) (cells []Cell, ok bool) {
	cells, ok = g.footprints[id]
	return
}

// Total returns the sum of all cell values.
func (g *Grid) Total() float64 {
	return mat.Sum(g.Values)
}

// RegionTotal returns the sum of the cells covered by the projected
// rectangle b. Cells outside the grid are ignored.
func (g *Grid) RegionTotal(b *geom.Bounds) float64 {
	sw := g.Cell(geom.Point{X: b.Min.X, Y: b.Min.Y})
	ne := g.Cell(geom.Point{X: b.Max.X, Y: b.Max.Y})
	c0, c1 := maxInt(sw.Col, 0), minInt(ne.Col, g.Cols-1)
	r0, r1 := maxInt(ne.Row, 0), minInt(sw.Row, g.Rows-1)
	var sum float64
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			sum += g.Values.At(r, c)
		}
	}
	return sum
}

// Diff returns the Frobenius norm of b - a. The grids must have the same
// dimensions.
func Diff(a, b *Grid) (float64, error) {
	ar, ac := a.Values.Dims()
	br, bc := b.Values.Dims()
	if ar != br || ac != bc {
		return math.NaN(), fmt.Errorf("heatfield: grid dimensions %d×%d and %d×%d differ", ar, ac, br, bc)
	}
	var d mat.Dense
	d.Sub(b.Values, a.Values)
	return mat.Norm(&d, 2), nil
}

// WriteCSV writes the cell values as one CSV record per row, northernmost
// row first.
func (g *Grid) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	rec := make([]string, g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			rec[c] = strconv.FormatFloat(g.Values.At(r, c), 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
