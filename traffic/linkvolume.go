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

package traffic

import (
	"fmt"
	"io"
	"strings"
)

// LinkVolume is the traffic on one link over an hour.
type LinkVolume struct {
	Link     int
	County   int
	Zone     int
	RoadType int

	// Length is in miles.
	Length float64
	Volume int

	// AvgSpeed is in miles per hour.
	AvgSpeed float64

	// Desc indexes the road description in the Descriptions returned
	// with the volume.
	Desc     int
	AvgGrade float64
}

// Descriptions assigns consecutive indices to distinct strings.
type Descriptions struct {
	index map[string]int
	names []string
}

// NewDescriptions returns an empty table.
func NewDescriptions() *Descriptions {
	return &Descriptions{index: make(map[string]int)}
}

// Intern returns the index of s, adding it if it is new.
func (d *Descriptions) Intern(s string) int {
	if i, ok := d.index[s]; ok {
		return i
	}
	i := len(d.names)
	d.index[s] = i
	d.names = append(d.names, s)
	return i
}

// Name returns the string with index i.
func (d *Descriptions) Name(i int) (string, bool) {
	if i < 0 || i >= len(d.names) {
		return "", false
	}
	return d.names[i], true
}

// Len returns the number of distinct strings.
func (d *Descriptions) Len() int { return len(d.names) }

const numLinkVolumeColumns = 9

// ReadLinkVolumes reads a link volume table whose first row is a header.
// Descriptions are interned into a table that is returned with the
// volumes. Later rows for the same link replace earlier ones.
func ReadLinkVolumes(r io.Reader) (map[int]LinkVolume, *Descriptions, error) {
	volumes := make(map[int]LinkVolume)
	desc := NewDescriptions()
	err := readRecords(r, func(rec []string) error {
		if len(rec) < numLinkVolumeColumns {
			return fmt.Errorf("%d columns; at least %d are required", len(rec), numLinkVolumeColumns)
		}
		p := fieldParser{rec: rec}
		v := LinkVolume{
			Link:     p.intField(0),
			County:   p.intField(1),
			Zone:     p.intField(2),
			RoadType: p.intField(3),
			Length:   p.floatField(4),
			Volume:   p.intField(5),
			AvgSpeed: p.floatField(6),
			AvgGrade: p.floatField(8),
		}
		if p.err != nil {
			return p.err
		}
		v.Desc = desc.Intern(strings.TrimSpace(rec[7]))
		volumes[v.Link] = v
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return volumes, desc, nil
}
