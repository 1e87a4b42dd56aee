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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/spatialmodel/roadheat/emissions"
	"github.com/spatialmodel/roadheat/heatfield"
	"github.com/spatialmodel/roadheat/roadnet"
	"github.com/spatialmodel/roadheat/snap"
	"github.com/spatialmodel/roadheat/traffic"
	"github.com/spatialmodel/roadheat/utm"
)

// Field accumulates the emissions em of net onto the grid described by gc.
func Field(net *roadnet.Network, em heatfield.Emissions, gc *GridConfig) (*heatfield.Grid, error) {
	def, err := gc.Def()
	if err != nil {
		return nil, err
	}
	return heatfield.Accumulate(def, net, em, heatfield.NewKernel(gc.CutoffRadius)), nil
}

// WriteField writes g to outputFile, as a shapefile with a projection
// file if outputFile ends in .shp and as CSV otherwise.
func WriteField(g *heatfield.Grid, outputFile string, centralMeridian float64, south bool) error {
	if isShapefile(outputFile) {
		return g.WriteShapefile(outputFile, utm.WKT(centralMeridian, south))
	}
	return writeFile(outputFile, g.WriteCSV)
}

// southern returns whether the first vertex of net is south of the equator.
func southern(net *roadnet.Network) bool {
	links := net.Links()
	return len(links) > 0 && links[0].Geo[0].Lat < 0
}

// FieldDiff returns the norm of the difference between the fields of
// emission snapshots a and b over the same network and grid.
func FieldDiff(net *roadnet.Network, a, b emissions.Snapshot, gc *GridConfig) (float64, error) {
	ga, err := Field(net, a, gc)
	if err != nil {
		return math.NaN(), err
	}
	gb, err := Field(net, b, gc)
	if err != nil {
		return math.NaN(), err
	}
	return heatfield.Diff(ga, gb)
}

// SnapHeader lists the columns written by WriteSnapped.
var SnapHeader = []string{"vehicle", "time", "link", "dir", "lane", "offset", "speed", "accel",
	"veh_type", "driver", "passengers", "x_coord", "y_coord", "true_x", "true_y", "dist"}

// WriteSnapped snaps the frames of each trace of s to the network points in
// idx and writes one row per matched frame. Frames with no network point
// within maxDistance are skipped. It returns the number of frames matched.
func WriteSnapped(w io.Writer, idx *snap.Index, s *traffic.Snapshot, maxDistance float64) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(SnapHeader); err != nil {
		return 0, err
	}
	var matched int
	for _, tr := range s.Traces() {
		for _, f := range tr.Frames {
			r, ok := idx.Snap(f.Point(), maxDistance)
			if !ok {
				continue
			}
			matched++
			if err := cw.Write([]string{
				strconv.Itoa(f.Vehicle),
				f.Timestamp(),
				strconv.Itoa(r.Link),
				"0",
				strconv.Itoa(f.Lane),
				strconv.FormatFloat(r.Offset, 'g', -1, 64),
				"0", "0", "0",
				strconv.Itoa(f.Driver),
				"0",
				strconv.FormatFloat(r.Point.X, 'f', 2, 64),
				strconv.FormatFloat(r.Point.Y, 'f', 2, 64),
				strconv.FormatFloat(f.X, 'g', -1, 64),
				strconv.FormatFloat(f.Y, 'g', -1, 64),
				strconv.FormatFloat(r.Distance, 'g', -1, 64),
			}); err != nil {
				return matched, err
			}
		}
	}
	cw.Flush()
	return matched, cw.Error()
}

// PositionError is the distance between the recorded position of a frame
// and the position computed from its link and offset.
type PositionError struct {
	Vehicle int
	Time    int
	Error   float64 // meters, rounded to the millimeter
}

// PositionErrors computes the position error of each frame. Frames whose
// link is not in net or whose offset is not on the link are skipped.
func PositionErrors(net *roadnet.Network, frames []traffic.Frame) []PositionError {
	var o []PositionError
	for _, f := range frames {
		l, ok := net.Link(f.Link)
		if !ok {
			continue
		}
		p, err := l.OffsetToPoint(f.Offset, f.Direction)
		if err != nil {
			continue
		}
		d := math.Hypot(p.X-f.X, p.Y-f.Y)
		o = append(o, PositionError{
			Vehicle: f.Vehicle,
			Time:    f.Time,
			Error:   math.Round(d*1000) / 1000,
		})
	}
	return o
}

// WritePositionErrors writes errs as CSV with columns vehicle, time and
// position_err_m.
func WritePositionErrors(w io.Writer, errs []PositionError) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"vehicle", "time", "position_err_m"}); err != nil {
		return err
	}
	for _, e := range errs {
		if err := cw.Write([]string{
			strconv.Itoa(e.Vehicle),
			traffic.FormatTimestamp(e.Time),
			strconv.FormatFloat(e.Error, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// errorSummary returns the mean and maximum of errs.
func errorSummary(errs []PositionError) (mean, max float64) {
	if len(errs) == 0 {
		return 0, 0
	}
	v := make([]float64, len(errs))
	for i, e := range errs {
		v[i] = e.Error
	}
	return stats.StatsMean(v), stats.StatsMax(v)
}

// Correlation summarizes how well vehicle positions agree with the
// footprints of the links they are recorded on.
type Correlation struct {
	Total int

	// Outside is the number of frames north or south of the grid.
	Outside int

	// Erroneous is the number of frames outside the grid or farther than
	// the threshold from their link's footprint. It includes Outside.
	Erroneous int
}

// Correlate compares each frame's position with the footprint of its link
// in g. A frame is erroneous if it lies north or south of the grid, if
// its link has no footprint, or if the nearest footprint cell is more than
// maxCells cells away.
func Correlate(g *heatfield.Grid, frames []traffic.Frame, maxCells float64) Correlation {
	var c Correlation
	for _, f := range frames {
		c.Total++
		if f.Y < g.YMin || f.Y > g.YMax {
			c.Outside++
			c.Erroneous++
			continue
		}
		fp, _ := g.Footprint(f.Link)
		_, d, ok := snap.NearestContributionCell(g.Cell(f.Point()), fp)
		if !ok || d > maxCells {
			c.Erroneous++
		}
	}
	return c
}

// percent returns n as a percentage of total, or 0 if total is 0.
func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}

// writeFile creates fileName and calls write with it.
func writeFile(fileName string, write func(io.Writer) error) error {
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("roadheat: creating output file: %v", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("roadheat: writing %s: %v", fileName, err)
	}
	return f.Close()
}
