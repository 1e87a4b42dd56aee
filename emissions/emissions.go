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

// Package emissions reads per-link vehicle heat emission records.
package emissions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/unit"
)

// Conversion factors.
const (
	joulesPerKilojoule = 1000.
	secondsPerHour     = 3600.
	btuPerMMBtu        = 1e6
	joulesPerBTU       = 1055.06

	// kelvinPerWattPerMeter2 is the expected increase in ambient air
	// temperature per unit of heat flux from vehicle exhaust.
	kelvinPerWattPerMeter2 = 0.8 / 100
)

// Record is the heat emitted on one road link over a snapshot period.
type Record struct {
	Link int

	// Rate is the emission rate in kJ per vehicle per operating hour.
	Rate float64

	// Quantity is the total emitted over the period, in MMBtu.
	Quantity float64
}

// Power returns the emission rate in W per vehicle.
func (r Record) Power() *unit.Unit {
	return unit.New(r.Rate*joulesPerKilojoule/secondsPerHour, unit.Watt)
}

// Energy returns the emission quantity in J.
func (r Record) Energy() *unit.Unit {
	return unit.New(r.Quantity*btuPerMMBtu*joulesPerBTU, unit.Joule)
}

// TemperatureElevation returns the expected ambient temperature increase
// in K over a link with the given surface area, given in m².
// The quantity is treated as emitted over one hour.
func (r Record) TemperatureElevation(area *unit.Unit) (*unit.Unit, error) {
	if err := area.Check(unit.Meter2); err != nil {
		return nil, fmt.Errorf("emissions: link area: %v", err)
	}
	flux := unit.Div(r.Energy(), unit.New(secondsPerHour, unit.Second), area) // W m-2
	return unit.New(flux.Value()*kelvinPerWattPerMeter2, unit.Kelvin), nil
}

// Snapshot holds the emission records of one snapshot, keyed by link id.
type Snapshot map[int]Record

// Quantity returns the emission quantity of a link.
func (s Snapshot) Quantity(link int) (float64, bool) {
	r, ok := s[link]
	return r.Quantity, ok
}

// Links returns the link ids in ascending order.
func (s Snapshot) Links() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Total returns the sum of all emission quantities.
func (s Snapshot) Total() float64 {
	var sum float64
	for _, r := range s {
		sum += r.Quantity
	}
	return sum
}

// ErrMalformedRow is wrapped by all row validation errors.
var ErrMalformedRow = errors.New("malformed row")

// RowError is a validation failure on one input row.
type RowError struct {
	Line int // 1-based, counting the header
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("emissions: line %d: %v: %v", e.Line, ErrMalformedRow, e.Err)
}

// Unwrap returns ErrMalformedRow so that errors.Is can match it.
func (e *RowError) Unwrap() error { return ErrMalformedRow }

// Column positions in emission snapshot files.
const (
	colLink     = 1
	colRate     = 3
	colQuantity = 4
	numColumns  = 5
)

// ReadCSV reads an emission snapshot. The first row is a header. Later
// records for the same link replace earlier ones.
func ReadCSV(r io.Reader) (Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("emissions: reading header: %v", err)
	}
	s := make(Snapshot)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		record, err := parseRecord(rec)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		s[record.Link] = record
	}
	return s, nil
}

func parseRecord(rec []string) (Record, error) {
	if len(rec) < numColumns {
		return Record{}, fmt.Errorf("%d columns; at least %d are required", len(rec), numColumns)
	}
	var r Record
	var err error
	if r.Link, err = strconv.Atoi(strings.TrimSpace(rec[colLink])); err != nil {
		return r, fmt.Errorf("link id: %v", err)
	}
	if r.Link < 0 {
		return r, fmt.Errorf("negative link id %d", r.Link)
	}
	if r.Rate, err = parseFloat(rec[colRate]); err != nil {
		return r, fmt.Errorf("rate: %v", err)
	}
	if r.Quantity, err = parseFloat(rec[colQuantity]); err != nil {
		return r, fmt.Errorf("quantity: %v", err)
	}
	if r.Quantity < 0 {
		return r, fmt.Errorf("negative quantity %g", r.Quantity)
	}
	return r, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
