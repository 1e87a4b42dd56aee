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

// Package snap matches arbitrary projected points to locations on a road
// network.
package snap

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/spatialmodel/roadheat/heatfield"
	"github.com/spatialmodel/roadheat/roadnet"
)

// Sample is a point on the network.
type Sample struct {
	geom.Point

	Link int

	// Offset is the distance along the link from its start in the
	// canonical direction, in meters.
	Offset float64

	index int
}

// Index is a static spatial index of points sampled along a road network.
// An Index is read-only after Build and safe for concurrent use.
type Index struct {
	samples []*Sample
	tree    *rtree.Rtree
}

// Build samples every link of net at intervals of spacing (projected
// meters) along each segment, starting at the segment's first vertex,
// plus the last vertex of each link.
func Build(net *roadnet.Network, spacing float64) (*Index, error) {
	if !(spacing > 0) || math.IsInf(spacing, 0) {
		return nil, fmt.Errorf("snap: invalid sample spacing %g", spacing)
	}
	idx := &Index{tree: rtree.NewTree(25, 50)}
	for _, l := range net.Links() {
		for k := 0; k < len(l.Vertices)-1; k++ {
			a, b := l.Vertices[k], l.Vertices[k+1]
			planar := math.Hypot(b.X-a.X, b.Y-a.Y)
			for i := 0; float64(i)*spacing < planar; i++ {
				s := float64(i) * spacing / planar
				idx.add(&Sample{
					Point: geom.Point{
						X: (1-s)*a.X + s*b.X,
						Y: (1-s)*a.Y + s*b.Y,
					},
					Link:   l.ID,
					Offset: l.CumForward[k] + s*l.SegmentLengths[k],
				})
			}
		}
		idx.add(&Sample{
			Point:  l.Vertices[len(l.Vertices)-1],
			Link:   l.ID,
			Offset: l.TotalLength,
		})
	}
	return idx, nil
}

func (idx *Index) add(s *Sample) {
	s.index = len(idx.samples)
	idx.samples = append(idx.samples, s)
	idx.tree.Insert(s)
}

// Len returns the number of samples.
func (idx *Index) Len() int { return len(idx.samples) }

// Samples returns the samples in the order they were generated.
func (idx *Index) Samples() []*Sample { return idx.samples }

// Result is a successful snap.
type Result struct {
	Link   int
	Offset float64

	// Point is the matched sample location.
	Point geom.Point

	// Distance is the distance from the query point to Point.
	Distance float64
}

// Snap returns the sample nearest to p. ok is false if no sample lies
// within maxDistance of p. Of equally near samples, the one generated
// first is returned.
func (idx *Index) Snap(p geom.Point, maxDistance float64) (r Result, ok bool) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || !(maxDistance >= 0) {
		return r, false
	}
	var best *Sample
	bestDist := math.Inf(1)
	for _, g := range idx.tree.SearchIntersect(rtree.ToRect(p, maxDistance)) {
		s := g.(*Sample)
		d := math.Hypot(s.X-p.X, s.Y-p.Y)
		if d > maxDistance {
			continue
		}
		if d < bestDist || (d == bestDist && s.index < best.index) {
			best, bestDist = s, d
		}
	}
	if best == nil {
		return r, false
	}
	return Result{
		Link:     best.Link,
		Offset:   best.Offset,
		Point:    best.Point,
		Distance: bestDist,
	}, true
}

// Match is the outcome of snapping one point.
type Match struct {
	Result
	OK bool
}

// SnapAll snaps each of points and returns the matches in the same order.
func (idx *Index) SnapAll(points []geom.Point, maxDistance float64) []Match {
	o := make([]Match, len(points))
	for i, p := range points {
		o[i].Result, o[i].OK = idx.Snap(p, maxDistance)
	}
	return o
}

// WriteSamples writes the samples as CSV with columns x, y, link_id and
// offset, preceded by a header.
func (idx *Index) WriteSamples(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", "link_id", "offset"}); err != nil {
		return err
	}
	for _, s := range idx.samples {
		if err := cw.Write([]string{
			strconv.FormatFloat(s.X, 'f', 2, 64),
			strconv.FormatFloat(s.Y, 'f', 2, 64),
			strconv.Itoa(s.Link),
			strconv.FormatFloat(s.Offset, 'g', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// NearestContributionCell returns the cell of footprint nearest to cell,
// measured in cells, and the distance to it. The distance is exactly 0
// when cell is itself in footprint. Of equally near cells, the first in
// footprint is returned. ok is false if footprint is empty.
func NearestContributionCell(cell heatfield.Cell, footprint []heatfield.Cell) (nearest heatfield.Cell, dist float64, ok bool) {
	if len(footprint) == 0 {
		return nearest, math.Inf(1), false
	}
	dist = math.Inf(1)
	for _, c := range footprint {
		if c == cell {
			return c, 0, true
		}
		d := math.Hypot(float64(c.Col-cell.Col), float64(c.Row-cell.Row))
		if d < dist {
			nearest, dist = c, d
		}
	}
	return nearest, dist, true
}
