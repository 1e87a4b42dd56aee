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

package roadnet

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/spf13/cast"
)

// ReadShapefile reads a road network from a polyline shapefile in
// geographic coordinates. Each record must have the same attributes as
// the GeoJSON source and a single-part geometry.
func ReadShapefile(fileName string, centralMeridian float64) (*Network, error) {
	d, err := shp.NewDecoder(fileName)
	if err != nil {
		return nil, fmt.Errorf("roadnet: opening shapefile: %v", err)
	}
	defer d.Close()

	var features []Feature
	for i := 0; ; i++ {
		g, fields, more := d.DecodeRowFields(PropLinkID, PropFrom, PropTo, PropDirection, PropClass)
		if err := d.Error(); err != nil {
			return nil, fmt.Errorf("roadnet: reading shapefile record %d: %v", i, err)
		}
		if !more {
			break
		}
		f, err := featureFromShape(i, g, fields)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return New(features, centralMeridian)
}

func featureFromShape(i int, g geom.Geom, fields map[string]string) (Feature, error) {
	f := Feature{ID: -1}
	intField := func(name string) (int, error) {
		n, err := cast.ToIntE(trimAttribute(fields[name]))
		if err != nil {
			return 0, &MalformedFeatureError{Index: i, ID: f.ID,
				Reason: fmt.Sprintf("attribute %s: %v", name, err)}
		}
		return n, nil
	}
	var err error
	if f.ID, err = intField(PropLinkID); err != nil {
		return f, err
	}
	if f.From, err = intField(PropFrom); err != nil {
		return f, err
	}
	if f.To, err = intField(PropTo); err != nil {
		return f, err
	}
	if f.Direction, err = intField(PropDirection); err != nil {
		return f, err
	}
	f.Class = trimAttribute(fields[PropClass])

	var ls geom.LineString
	switch t := g.(type) {
	case geom.MultiLineString:
		if len(t) != 1 {
			return f, &MalformedFeatureError{Index: i, ID: f.ID,
				Reason: fmt.Sprintf("%d geometry parts; 1 is required", len(t))}
		}
		ls = t[0]
	case geom.LineString:
		ls = t
	default:
		return f, &MalformedFeatureError{Index: i, ID: f.ID,
			Reason: fmt.Sprintf("geometry type %T; a polyline is required", g)}
	}
	f.Coords = make([]GeoPoint, len(ls))
	for j, p := range ls {
		f.Coords[j] = GeoPoint{Lat: p.Y, Lon: p.X}
	}
	return f, nil
}

// trimAttribute removes the padding from a shapefile attribute.
func trimAttribute(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}
