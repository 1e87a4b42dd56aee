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

// Package roadheat allocates road traffic heat emissions onto regular
// grids and relates recorded vehicle positions to the road network.
// The functionality lives in the subpackages: utm projects coordinates,
// roadnet holds the road network, heatfield accumulates emission fields,
// snap matches positions to the network, emissions and traffic read
// input tables, and sample subsamples large inputs.
package roadheat

// Version gives the version number.
const Version = "0.3.0"
