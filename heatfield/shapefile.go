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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// Polygon returns the outline of cell c in projected coordinates.
func (g *GridDef) Polygon(c Cell) geom.Polygon {
	nw := g.Point(c)
	se := g.Point(Cell{Col: c.Col + 1, Row: c.Row + 1})
	return geom.Polygon{{
		{X: nw.X, Y: se.Y},
		{X: se.X, Y: se.Y},
		{X: se.X, Y: nw.Y},
		{X: nw.X, Y: nw.Y},
		{X: nw.X, Y: se.Y},
	}}
}

// WriteShapefile writes the nonzero cells of g as polygons to a shapefile
// with fields ROW, COL and VALUE. Any extension on fileName is replaced
// with .shp. If prj is not empty it is written to the matching .prj file.
func (g *Grid) WriteShapefile(fileName, prj string) error {
	fileBase := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	shape, err := shp.NewEncoderFromFields(fileBase+".shp", goshp.POLYGON,
		goshp.NumberField("ROW", 10),
		goshp.NumberField("COL", 10),
		goshp.FloatField("VALUE", 20, 8),
	)
	if err != nil {
		return fmt.Errorf("heatfield: creating output shapefile: %v", err)
	}
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			v := g.Values.At(r, c)
			if v == 0 {
				continue
			}
			if err := shape.EncodeFields(g.Polygon(Cell{Col: c, Row: r}), r, c, v); err != nil {
				shape.Close()
				return fmt.Errorf("heatfield: writing output shapefile: %v", err)
			}
		}
	}
	shape.Close()

	if prj == "" {
		return nil
	}
	f, err := os.Create(fileBase + ".prj")
	if err != nil {
		return fmt.Errorf("heatfield: creating output prj file: %v", err)
	}
	if _, err := fmt.Fprint(f, prj); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
