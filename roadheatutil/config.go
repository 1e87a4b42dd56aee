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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/go-playground/validator/v10"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/roadheat/emissions"
	"github.com/spatialmodel/roadheat/heatfield"
	"github.com/spatialmodel/roadheat/roadnet"
	"github.com/spatialmodel/roadheat/traffic"
	"github.com/spf13/cast"
)

// GridConfig holds the geometry of the emissions grid.
type GridConfig struct {
	Rows         int     `toml:"Rows" validate:"gte=2"`
	Cols         int     `toml:"Cols" validate:"gte=2"`
	XMin         float64 `toml:"XMin"`
	XMax         float64 `toml:"XMax" validate:"gtfield=XMin"`
	YMin         float64 `toml:"YMin"`
	YMax         float64 `toml:"YMax" validate:"gtfield=YMin"`
	CutoffRadius int     `toml:"CutoffRadius" validate:"gte=0"`
}

// Def returns the grid definition described by c.
func (c *GridConfig) Def() (*heatfield.GridDef, error) {
	return heatfield.NewGridDef(c.Rows, c.Cols, c.XMin, c.XMax, c.YMin, c.YMax)
}

// SnapConfig holds the settings of the network snapper.
type SnapConfig struct {
	// Spacing is the distance between interpolated network points [m].
	Spacing float64 `toml:"Spacing" validate:"gt=0"`

	// MaxDistance is the largest distance a position may be moved
	// to reach the network [m].
	MaxDistance float64 `toml:"MaxDistance" validate:"gte=0"`
}

// RegionConfig is a projected rectangle, such as a building footprint.
type RegionConfig struct {
	XMin float64 `toml:"XMin"`
	XMax float64 `toml:"XMax" validate:"gtfield=XMin"`
	YMin float64 `toml:"YMin"`
	YMax float64 `toml:"YMax" validate:"gtfield=YMin"`
}

// Bounds returns the rectangle as bounds.
func (c *RegionConfig) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: c.XMin, Y: c.YMin},
		Max: geom.Point{X: c.XMax, Y: c.YMax},
	}
}

// SampleConfig holds the settings of the row sampler.
type SampleConfig struct {
	Inputs   []string `toml:"Inputs" validate:"required,min=1,dive,required"`
	Fraction float64  `toml:"Fraction" validate:"gte=0,lte=1"`
	Seed     int64    `toml:"Seed"`
	Workers  int      `toml:"Workers" validate:"gte=0"`
}

// Settings is the complete configuration of a run.
type Settings struct {
	LogLevel         string  `toml:"LogLevel"`
	Network          string  `toml:"Network"`
	CentralMeridian  float64 `toml:"CentralMeridian"`
	Emissions        string  `toml:"Emissions"`
	CompareEmissions string  `toml:"CompareEmissions"`
	Snapshot         string  `toml:"Snapshot"`
	OutputFile       string  `toml:"OutputFile"`

	Grid   GridConfig   `toml:"Grid"`
	Region RegionConfig `toml:"Region"`
	Snap   SnapConfig   `toml:"Snap"`
	Sample SampleConfig `toml:"Sample"`
}

var validate = validator.New()

// LoadSettings unmarshals a viper configuration. Environment variables in
// file names are expanded. The result is not validated.
func LoadSettings(cfg *viper.Viper) (*Settings, error) {
	seed, err := cast.ToInt64E(cfg.Get("Sample.Seed"))
	if err != nil {
		return nil, fmt.Errorf("roadheat: Sample.Seed: %v", err)
	}
	return &Settings{
		LogLevel:         cfg.GetString("LogLevel"),
		Network:          os.ExpandEnv(cfg.GetString("Network")),
		CentralMeridian:  cfg.GetFloat64("CentralMeridian"),
		Emissions:        os.ExpandEnv(cfg.GetString("Emissions")),
		CompareEmissions: os.ExpandEnv(cfg.GetString("CompareEmissions")),
		Snapshot:         os.ExpandEnv(cfg.GetString("Snapshot")),
		OutputFile:       os.ExpandEnv(cfg.GetString("OutputFile")),
		Grid: GridConfig{
			Rows:         cfg.GetInt("Grid.Rows"),
			Cols:         cfg.GetInt("Grid.Cols"),
			XMin:         cfg.GetFloat64("Grid.XMin"),
			XMax:         cfg.GetFloat64("Grid.XMax"),
			YMin:         cfg.GetFloat64("Grid.YMin"),
			YMax:         cfg.GetFloat64("Grid.YMax"),
			CutoffRadius: cfg.GetInt("Grid.CutoffRadius"),
		},
		Region: RegionConfig{
			XMin: cfg.GetFloat64("Region.XMin"),
			XMax: cfg.GetFloat64("Region.XMax"),
			YMin: cfg.GetFloat64("Region.YMin"),
			YMax: cfg.GetFloat64("Region.YMax"),
		},
		Snap: SnapConfig{
			Spacing:     cfg.GetFloat64("Snap.Spacing"),
			MaxDistance: cfg.GetFloat64("Snap.MaxDistance"),
		},
		Sample: SampleConfig{
			Inputs:   expandStringSlice(cfg.GetStringSlice("Sample.Inputs")),
			Fraction: cfg.GetFloat64("Sample.Fraction"),
			Seed:     seed,
			Workers:  cfg.GetInt("Sample.Workers"),
		},
	}, nil
}

// GridConfigFrom returns the validated grid configuration.
func GridConfigFrom(cfg *viper.Viper) (*GridConfig, error) {
	s, err := LoadSettings(cfg)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(&s.Grid); err != nil {
		return nil, fmt.Errorf("roadheat: invalid grid configuration: %v", err)
	}
	return &s.Grid, nil
}

// SnapConfigFrom returns the validated snapper configuration.
func SnapConfigFrom(cfg *viper.Viper) (*SnapConfig, error) {
	s, err := LoadSettings(cfg)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(&s.Snap); err != nil {
		return nil, fmt.Errorf("roadheat: invalid snap configuration: %v", err)
	}
	return &s.Snap, nil
}

// RegionConfigFrom returns the validated region configuration.
func RegionConfigFrom(cfg *viper.Viper) (*RegionConfig, error) {
	s, err := LoadSettings(cfg)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(&s.Region); err != nil {
		return nil, fmt.Errorf("roadheat: invalid region configuration: %v", err)
	}
	return &s.Region, nil
}

// SampleConfigFrom returns the validated sampler configuration.
func SampleConfigFrom(cfg *viper.Viper) (*SampleConfig, error) {
	s, err := LoadSettings(cfg)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(&s.Sample); err != nil {
		return nil, fmt.Errorf("roadheat: invalid sample configuration: %v", err)
	}
	return &s.Sample, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkInputFile makes sure that an input file is specified.
func checkInputFile(varName, f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf("roadheat: you need to specify the %s configuration variable", varName)
	}
	return f, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`roadheat: you need to specify an output file configuration variable (for example: OutputFile="output.csv")`)
	}
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("roadheat: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// isShapefile returns whether fileName names a shapefile.
func isShapefile(fileName string) bool {
	return strings.EqualFold(filepath.Ext(fileName), ".shp")
}

// LoadNetwork reads a road network from a shapefile or, for any other
// extension, a GeoJSON file.
func LoadNetwork(fileName string, centralMeridian float64) (*roadnet.Network, error) {
	if isShapefile(fileName) {
		return roadnet.ReadShapefile(fileName, centralMeridian)
	}
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("roadheat: opening road network: %v", err)
	}
	defer f.Close()
	return roadnet.ReadGeoJSON(f, centralMeridian)
}

// LoadEmissions reads an emission snapshot file.
func LoadEmissions(fileName string) (emissions.Snapshot, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("roadheat: opening emissions: %v", err)
	}
	defer f.Close()
	em, err := emissions.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("roadheat: reading %s: %v", fileName, err)
	}
	return em, nil
}

// LoadSnapshot reads a vehicle snapshot file.
func LoadSnapshot(fileName string) (*traffic.Snapshot, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("roadheat: opening vehicle snapshot: %v", err)
	}
	defer f.Close()
	s, err := traffic.ReadSnapshot(f, false)
	if err != nil {
		return nil, fmt.Errorf("roadheat: reading %s: %v", fileName, err)
	}
	return s, nil
}
