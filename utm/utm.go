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

// Package utm converts geographic coordinates to Universal Transverse
// Mercator coordinates using the closed-form forward series
// (Snyder, Map Projections: A Working Manual, eqs. 8-9 and 8-10).
package utm

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

const (
	// K0 is the point scale factor at the central meridian.
	K0 = 0.9996

	// FalseEasting is added to every easting.
	FalseEasting = 500000.

	// FalseNorthing is added to northings in the southern hemisphere.
	FalseNorthing = 10000000.
)

// Ellipsoid describes a reference ellipsoid by its equatorial radius
// (semi-major axis) in meters and its inverse flattening.
type Ellipsoid struct {
	A    float64
	InvF float64
}

// WGS84 is the World Geodetic System 1984 ellipsoid (EPSG:4326).
var WGS84 = Ellipsoid{A: 6378137, InvF: 298.257223563}

// Projector holds the constants derived from an ellipsoid and a scale
// factor. A Projector is immutable and safe for concurrent use.
type Projector struct {
	Ellipsoid
	K0 float64

	e2, ep2        float64
	m1, m2, m3, m4 float64
}

// NewProjector derives the projection constants for ellipsoid e and
// central-meridian scale factor k0.
func NewProjector(e Ellipsoid, k0 float64) *Projector {
	f := 1 / e.InvF
	e2 := 2*f - f*f
	e4 := e2 * e2
	e6 := e4 * e2
	return &Projector{
		Ellipsoid: e,
		K0:        k0,
		e2:        e2,
		ep2:       e2 / (1 - e2),
		m1:        1 - e2/4 - 3*e4/64 - 5*e6/256,
		m2:        3*e2/8 + 3*e4/32 + 45*e6/1024,
		m3:        15*e4/256 + 45*e6/1024,
		m4:        35 * e6 / 3072,
	}
}

var defaultProjector = NewProjector(WGS84, K0)

// Project converts a latitude/longitude pair (degrees) to UTM coordinates
// in meters on the WGS84 ellipsoid relative to centralMeridian (degrees).
func Project(lat, lon, centralMeridian float64) geom.Point {
	return defaultProjector.Project(lat, lon, centralMeridian)
}

// ProjectAll is the element-wise form of Project.
func ProjectAll(lats, lons []float64, centralMeridian float64) ([]geom.Point, error) {
	return defaultProjector.ProjectAll(lats, lons, centralMeridian)
}

// Project converts a latitude/longitude pair (degrees) to planar
// coordinates in meters relative to centralMeridian (degrees). Results are
// only meaningful within a few degrees of the central meridian.
func (p *Projector) Project(lat, lon, centralMeridian float64) geom.Point {
	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180
	lam0 := centralMeridian * math.Pi / 180

	sinPhi, cosPhi := math.Sincos(phi)
	tanPhi := math.Tan(phi)

	n := p.A / math.Sqrt(1-p.e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := p.ep2 * cosPhi * cosPhi
	a := (lam - lam0) * cosPhi
	m := p.A * (p.m1*phi - p.m2*math.Sin(2*phi) + p.m3*math.Sin(4*phi) - p.m4*math.Sin(6*phi))

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x := p.K0 * n * (a +
		(1-t+c)*a3/6 +
		(5-18*t+t*t+72*c-58*p.ep2)*a5/120)

	y := p.K0 * (m + n*tanPhi*(a2/2+
		(5-t+9*c+4*c*c)*a4/24+
		(61-58*t+t*t+600*c-330*p.ep2)*a6/720))

	if lat < 0 {
		y += FalseNorthing
	}
	x += FalseEasting
	return geom.Point{X: x, Y: y}
}

// ProjectAll applies Project to each (lats[i], lons[i]) pair.
func (p *Projector) ProjectAll(lats, lons []float64, centralMeridian float64) ([]geom.Point, error) {
	if len(lats) != len(lons) {
		return nil, fmt.Errorf("utm: %d latitudes but %d longitudes", len(lats), len(lons))
	}
	o := make([]geom.Point, len(lats))
	for i := range lats {
		o[i] = p.Project(lats[i], lons[i], centralMeridian)
	}
	return o, nil
}

// Transformer returns a proj.Transformer that projects (longitude,
// latitude) pairs, so that ctessum geometries in GeoJSON axis order can be
// projected with their Transform method.
func (p *Projector) Transformer(centralMeridian float64) proj.Transformer {
	return func(lon, lat float64) (float64, float64, error) {
		pt := p.Project(lat, lon, centralMeridian)
		return pt.X, pt.Y, nil
	}
}

// CentralMeridian returns the central meridian (degrees) of the standard
// six-degree UTM zone containing lon.
func CentralMeridian(lon float64) float64 {
	return math.Floor(lon/-6)*-6 - 3
}

// WKT returns the ESRI well-known-text description of the WGS84
// transverse Mercator projection used by Project, as written to the .prj
// file of a shapefile.
func WKT(centralMeridian float64, south bool) string {
	var northing float64
	if south {
		northing = FalseNorthing
	}
	return fmt.Sprintf(`PROJCS["WGS_1984_Transverse_Mercator",`+
		`GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",%g,%g]],`+
		`PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]],`+
		`PROJECTION["Transverse_Mercator"],`+
		`PARAMETER["False_Easting",%g],PARAMETER["False_Northing",%g],`+
		`PARAMETER["Central_Meridian",%g],PARAMETER["Scale_Factor",%g],`+
		`PARAMETER["Latitude_Of_Origin",0],UNIT["Meter",1]]`,
		WGS84.A, WGS84.InvF, FalseEasting, northing, centralMeridian, K0)
}

// Zone returns the UTM zone number (1-60) containing lon.
func Zone(lon float64) int {
	return int((CentralMeridian(lon)+183)/6 + 0.5)
}
