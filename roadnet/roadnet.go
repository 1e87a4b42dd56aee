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

// Package roadnet holds a road network whose links are parameterized by
// arc length, so that a distance along a link can be resolved to a
// projected location.
package roadnet

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/roadheat/utm"
)

// GeoPoint is a geographic location in degrees on the WGS84 ellipsoid.
type GeoPoint struct {
	Lat, Lon float64
}

// Feature is a single record from a road network source.
type Feature struct {
	ID        int
	From, To  int
	Direction int
	Class     string
	Coords    []GeoPoint
}

// MalformedFeatureError is returned when a feature cannot be turned into a
// link. Network construction stops at the first malformed feature.
type MalformedFeatureError struct {
	// Index is the position of the feature in the source.
	Index int
	// ID is the link id, or -1 if it could not be read.
	ID     int
	Reason string
}

func (e *MalformedFeatureError) Error() string {
	return fmt.Sprintf("roadnet: malformed feature %d (link %d): %s", e.Index, e.ID, e.Reason)
}

// OffsetError is returned when an offset does not lie on a link.
type OffsetError struct {
	Offset, Length float64
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("roadnet: offset %g out of range for link with length %g", e.Offset, e.Length)
}

// Link is one directed edge of the network. Links are created by New and
// must not be modified afterwards.
type Link struct {
	ID        int
	From, To  int
	Direction int
	Class     string

	// Geo holds the geographic vertices and Vertices the projected ones.
	Geo      []GeoPoint
	Vertices []geom.Point

	// SegmentLengths[i] is the great-circle length in meters between
	// vertices i and i+1.
	SegmentLengths []float64

	// CumForward[i] is the distance from vertex 0 to vertex i.
	// CumReverse[i] is the distance from the last vertex to vertex
	// len(Vertices)-1-i. Both start at 0 and end at TotalLength.
	CumForward, CumReverse []float64

	TotalLength float64
}

func newLink(f Feature, p *utm.Projector, centralMeridian float64) *Link {
	n := len(f.Coords)
	l := &Link{
		ID:             f.ID,
		From:           f.From,
		To:             f.To,
		Direction:      f.Direction,
		Class:          f.Class,
		Geo:            make([]GeoPoint, n),
		Vertices:       make([]geom.Point, n),
		SegmentLengths: make([]float64, n-1),
		CumForward:     make([]float64, n),
		CumReverse:     make([]float64, n),
	}
	copy(l.Geo, f.Coords)
	for i, c := range f.Coords {
		l.Vertices[i] = p.Project(c.Lat, c.Lon, centralMeridian)
	}
	for i := 0; i < n-1; i++ {
		l.SegmentLengths[i] = Haversine(f.Coords[i], f.Coords[i+1], p.A)
		l.CumForward[i+1] = l.CumForward[i] + l.SegmentLengths[i]
	}
	for i := 0; i < n-1; i++ {
		l.CumReverse[i+1] = l.CumReverse[i] + l.SegmentLengths[n-2-i]
	}
	l.TotalLength = l.CumForward[n-1]

	// Summing in the other order can differ from TotalLength in the last
	// place; pin the end so both directions agree.
	l.CumReverse[n-1] = l.TotalLength
	for i := n - 2; i > 0 && l.CumReverse[i] > l.TotalLength; i-- {
		l.CumReverse[i] = l.TotalLength
	}
	return l
}

// OffsetToPoint returns the projected location at distance offset along
// the link, measured from the start of the link when traveling in
// direction. If direction differs from the link's own direction the link
// is traversed from its last vertex.
func (l *Link) OffsetToPoint(offset float64, direction int) (geom.Point, error) {
	n := len(l.Vertices)
	vertex := func(i int) geom.Point { return l.Vertices[i] }
	cum := l.CumForward
	if direction != l.Direction {
		vertex = func(i int) geom.Point { return l.Vertices[n-1-i] }
		cum = l.CumReverse
	}
	if !(offset >= 0) {
		return geom.Point{}, &OffsetError{Offset: offset, Length: l.TotalLength}
	}
	if offset == 0 {
		return vertex(0), nil
	}
	k := sort.SearchFloat64s(cum, offset)
	if k == n {
		return geom.Point{}, &OffsetError{Offset: offset, Length: l.TotalLength}
	}
	if k == 0 {
		return vertex(0), nil
	}
	s := (offset - cum[k-1]) / (cum[k] - cum[k-1])
	a, b := vertex(k-1), vertex(k)
	return geom.Point{
		X: (1-s)*a.X + s*b.X,
		Y: (1-s)*a.Y + s*b.Y,
	}, nil
}

// Bounds returns the extent of the projected link geometry.
func (l *Link) Bounds() *geom.Bounds {
	return geom.LineString(l.Vertices).Bounds()
}

// Network is a set of links keyed by id.
type Network struct {
	// CentralMeridian is the meridian (degrees) the vertices were projected
	// about.
	CentralMeridian float64

	links map[int]*Link
	ids   []int
}

// New creates a network from features, projecting every vertex about
// centralMeridian on the WGS84 ellipsoid.
func New(features []Feature, centralMeridian float64) (*Network, error) {
	return NewWithProjector(features, utm.NewProjector(utm.WGS84, utm.K0), centralMeridian)
}

// NewWithProjector is like New but uses projector p. Segment lengths use a
// sphere whose radius is p's equatorial radius.
func NewWithProjector(features []Feature, p *utm.Projector, centralMeridian float64) (*Network, error) {
	net := &Network{
		CentralMeridian: centralMeridian,
		links:           make(map[int]*Link, len(features)),
		ids:             make([]int, 0, len(features)),
	}
	for i, f := range features {
		if f.ID < 0 {
			return nil, &MalformedFeatureError{Index: i, ID: f.ID, Reason: "negative link id"}
		}
		if len(f.Coords) < 2 {
			return nil, &MalformedFeatureError{Index: i, ID: f.ID,
				Reason: fmt.Sprintf("%d vertices; at least 2 are required", len(f.Coords))}
		}
		for _, c := range f.Coords {
			if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
				return nil, &MalformedFeatureError{Index: i, ID: f.ID, Reason: "non-finite coordinate"}
			}
		}
		if _, ok := net.links[f.ID]; ok {
			return nil, &MalformedFeatureError{Index: i, ID: f.ID, Reason: "duplicate link id"}
		}
		net.links[f.ID] = newLink(f, p, centralMeridian)
		net.ids = append(net.ids, f.ID)
	}
	sort.Ints(net.ids)
	return net, nil
}

// Len returns the number of links in the network.
func (net *Network) Len() int { return len(net.ids) }

// Link returns the link with the given id.
func (net *Network) Link(id int) (*Link, bool) {
	l, ok := net.links[id]
	return l, ok
}

// Links returns the links in ascending id order.
func (net *Network) Links() []*Link {
	o := make([]*Link, len(net.ids))
	for i, id := range net.ids {
		o[i] = net.links[id]
	}
	return o
}

// Bounds returns the extent of all projected link vertices.
func (net *Network) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, id := range net.ids {
		for _, v := range net.links[id].Vertices {
			b.Extend(geom.NewBoundsPoint(v))
		}
	}
	return b
}

// Haversine returns the great-circle distance between a and b on a
// sphere of the given radius.
func Haversine(a, b GeoPoint, radius float64) float64 {
	const d2r = math.Pi / 180
	phi1, phi2 := a.Lat*d2r, b.Lat*d2r
	dPhi := (b.Lat - a.Lat) * d2r
	dLam := (b.Lon - a.Lon) * d2r
	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLam/2)*math.Sin(dLam/2)
	return 2 * radius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
