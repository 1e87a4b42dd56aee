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
	"encoding/json"
	"fmt"
	"io"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/spf13/cast"
)

// Property names in the road network GeoJSON file.
const (
	PropLinkID    = "LINKID"
	PropFrom      = "FROM"
	PropTo        = "TO"
	PropDirection = "DIRECT"
	PropClass     = "FCC"
)

type geoJSONFeature struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   *geojson.Geometry      `json:"geometry"`
}

type geoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

// ReadGeoJSON reads a road network from a GeoJSON FeatureCollection of
// LineString features and projects it about centralMeridian.
func ReadGeoJSON(r io.Reader, centralMeridian float64) (*Network, error) {
	features, err := DecodeFeatures(r)
	if err != nil {
		return nil, err
	}
	return New(features, centralMeridian)
}

// DecodeFeatures reads the features of a road network GeoJSON
// FeatureCollection without projecting them.
func DecodeFeatures(r io.Reader) ([]Feature, error) {
	var fc geoJSONFeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("roadnet: decoding GeoJSON: %v", err)
	}
	features := make([]Feature, len(fc.Features))
	for i, gf := range fc.Features {
		f, err := featureFromGeoJSON(i, gf)
		if err != nil {
			return nil, err
		}
		features[i] = f
	}
	return features, nil
}

func featureFromGeoJSON(i int, gf geoJSONFeature) (Feature, error) {
	f := Feature{ID: -1}
	intProp := func(name string) (int, error) {
		v, ok := gf.Properties[name]
		if !ok || v == nil {
			return 0, &MalformedFeatureError{Index: i, ID: f.ID, Reason: "missing property " + name}
		}
		n, err := cast.ToIntE(v)
		if err != nil {
			return 0, &MalformedFeatureError{Index: i, ID: f.ID,
				Reason: fmt.Sprintf("property %s: %v", name, err)}
		}
		return n, nil
	}
	var err error
	if f.ID, err = intProp(PropLinkID); err != nil {
		return f, err
	}
	if f.From, err = intProp(PropFrom); err != nil {
		return f, err
	}
	if f.To, err = intProp(PropTo); err != nil {
		return f, err
	}
	if f.Direction, err = intProp(PropDirection); err != nil {
		return f, err
	}
	class, ok := gf.Properties[PropClass]
	if !ok || class == nil {
		return f, &MalformedFeatureError{Index: i, ID: f.ID, Reason: "missing property " + PropClass}
	}
	f.Class = cast.ToString(class)

	if gf.Geometry == nil {
		return f, &MalformedFeatureError{Index: i, ID: f.ID, Reason: "missing geometry"}
	}
	g, err := geojson.FromGeoJSON(gf.Geometry)
	if err != nil {
		return f, &MalformedFeatureError{Index: i, ID: f.ID, Reason: fmt.Sprintf("geometry: %v", err)}
	}
	ls, ok := g.(geom.LineString)
	if !ok {
		return f, &MalformedFeatureError{Index: i, ID: f.ID,
			Reason: fmt.Sprintf("geometry type %s; LineString is required", gf.Geometry.Type)}
	}
	f.Coords = make([]GeoPoint, len(ls))
	for j, p := range ls {
		f.Coords[j] = GeoPoint{Lat: p.Y, Lon: p.X}
	}
	return f, nil
}
