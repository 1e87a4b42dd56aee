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

package emissions

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ctessum/unit"
	"github.com/kr/pretty"
)

func different(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance*math.Max(math.Abs(a), math.Abs(b))
}

const testSnapshot = `,LINKID,DIR,RATE,QUANTITY
0,12,0,360,0.5
1,3,1,72,1.25
2,40,0,0,0
`

func TestReadCSV(t *testing.T) {
	s, err := ReadCSV(strings.NewReader(testSnapshot))
	if err != nil {
		t.Fatal(err)
	}
	want := Snapshot{
		12: {Link: 12, Rate: 360, Quantity: 0.5},
		3:  {Link: 3, Rate: 72, Quantity: 1.25},
		40: {Link: 40, Rate: 0, Quantity: 0},
	}
	if diff := pretty.Diff(s, want); len(diff) != 0 {
		t.Error(diff)
	}
	if diff := pretty.Diff(s.Links(), []int{3, 12, 40}); len(diff) != 0 {
		t.Error(diff)
	}
	if s.Total() != 1.75 {
		t.Errorf("total: have %g, want 1.75", s.Total())
	}
	q, ok := s.Quantity(3)
	if !ok || q != 1.25 {
		t.Errorf("quantity: have %g, %v", q, ok)
	}
	if _, ok := s.Quantity(99); ok {
		t.Error("link 99 should be missing")
	}
}

func TestReadCSVEmpty(t *testing.T) {
	s, err := ReadCSV(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 0 {
		t.Errorf("have %d records", len(s))
	}
}

func TestReadCSVMalformed(t *testing.T) {
	header := ",LINKID,DIR,RATE,QUANTITY\n"
	for name, row := range map[string]string{
		"short":       "0,12,0,360\n",
		"link":        "0,x,0,360,0.5\n",
		"rate":        "0,12,0,fast,0.5\n",
		"quantity":    "0,12,0,360,\n",
		"negative":    "0,12,0,360,-1\n",
		"negative_id": "0,-12,0,360,1\n",
		"not_finite":  "0,12,0,NaN,1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(header + "0,1,0,1,1\n" + row))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, ErrMalformedRow) {
				t.Errorf("error %v should wrap ErrMalformedRow", err)
			}
			var re *RowError
			if !errors.As(err, &re) || re.Line != 3 {
				t.Errorf("error %#v should be a RowError on line 3", err)
			}
		})
	}
}

func TestUnits(t *testing.T) {
	r := Record{Link: 1, Rate: 360, Quantity: 2}
	p := r.Power()
	if err := p.Check(unit.Watt); err != nil {
		t.Error(err)
	}
	if different(p.Value(), 100, 1e-12) {
		t.Errorf("power: have %g, want 100", p.Value())
	}
	e := r.Energy()
	if err := e.Check(unit.Joule); err != nil {
		t.Error(err)
	}
	if different(e.Value(), 2.11012e9, 1e-12) {
		t.Errorf("energy: have %g, want 2.11012e9", e.Value())
	}
	dT, err := r.TemperatureElevation(unit.New(1000, unit.Meter2))
	if err != nil {
		t.Fatal(err)
	}
	if err := dT.Check(unit.Kelvin); err != nil {
		t.Error(err)
	}
	want := 2.11012e9 / 3600 / 1000 * 0.008
	if different(dT.Value(), want, 1e-12) {
		t.Errorf("temperature elevation: have %g, want %g", dT.Value(), want)
	}
	if _, err := r.TemperatureElevation(unit.New(1000, unit.Meter)); err == nil {
		t.Error("expected an error for an area in m")
	}
}
