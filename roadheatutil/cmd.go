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

// Package roadheatutil holds the command-line interface of RoadHeat.
package roadheatutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/roadheat"
	"github.com/spatialmodel/roadheat/emissions"
	"github.com/spatialmodel/roadheat/roadnet"
	"github.com/spatialmodel/roadheat/sample"
	"github.com/spatialmodel/roadheat/snap"
	"github.com/spatialmodel/roadheat/traffic"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information and the command tree that uses it.
type Cfg struct {
	*viper.Viper

	// Log receives progress messages.
	Log logrus.FieldLogger

	Root                               *cobra.Command
	versionCmd, configCmd              *cobra.Command
	gridCmd, diffCmd, correlateCmd     *cobra.Command
	regionTotalCmd                     *cobra.Command
	interpolateCmd, snapCmd, poserrCmd *cobra.Command
	recompCmd, sampleCmd               *cobra.Command
}

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig creates a new configuration with its command tree.
func InitializeConfig() *Cfg {
	cfg := &Cfg{
		Viper: viper.New(),
		Log:   logrus.New(),
	}

	cfg.Root = &cobra.Command{
		Use:   "roadheat",
		Short: "Road traffic heat emission fields.",
		Long: `RoadHeat allocates road traffic heat emissions onto a regular grid and
matches recorded vehicle positions to the road network.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'ROADHEAT_var' where 'var' is the
name of the variable to be set, with any '.' replaced by '_'.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error { return cfg.setConfig() },
	}

	cfg.versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "version prints the version number of this version of RoadHeat.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "RoadHeat v%s\n", roadheat.Version)
		},
		DisableAutoGenTag: true,
	}

	cfg.configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the configuration",
		Long: `config prints the configuration that results from combining the
configuration file, command-line arguments, and environment variables, in TOML format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings(cfg.Viper)
			if err != nil {
				return err
			}
			return WriteSettings(cmd.OutOrStdout(), s)
		},
		DisableAutoGenTag: true,
	}

	cfg.gridCmd = &cobra.Command{
		Use:   "grid",
		Short: "Allocate emissions onto the grid",
		Long: `grid allocates the emissions of each road link onto a regular grid,
spreading them over neighboring cells with inverse-distance decay, and saves the
grid as CSV or, if OutputFile ends in .shp, as a shapefile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runGrid()
		},
		DisableAutoGenTag: true,
	}

	cfg.diffCmd = &cobra.Command{
		Use:   "diff",
		Short: "Compare the fields of two emission snapshots",
		Long: `diff allocates the Emissions and CompareEmissions snapshots onto the
grid and prints the Frobenius norm of the difference between the two fields.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runDiff(cmd.OutOrStdout())
		},
		DisableAutoGenTag: true,
	}

	cfg.correlateCmd = &cobra.Command{
		Use:   "correlate",
		Short: "Compare vehicle positions with link footprints",
		Long: `correlate checks whether the recorded position of each frame of a vehicle
snapshot falls near the grid cells that its link's emissions were allocated to,
and prints the share of frames that do not.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runCorrelate(cmd.OutOrStdout())
		},
		DisableAutoGenTag: true,
	}

	cfg.regionTotalCmd = &cobra.Command{
		Use:   "regiontotal",
		Short: "Sum the emission field over a rectangle",
		Long: `regiontotal allocates the emissions onto the grid and prints the sum of
the cells that overlap the projected rectangle given by the Region options,
for example the bounding box of a building.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runRegionTotal(cmd.OutOrStdout())
		},
		DisableAutoGenTag: true,
	}

	cfg.interpolateCmd = &cobra.Command{
		Use:   "interpolate",
		Short: "Write interpolated road network points",
		Long: `interpolate places points every Snap.Spacing meters along every link
of the road network and writes them as CSV with their link and offset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runInterpolate()
		},
		DisableAutoGenTag: true,
	}

	cfg.snapCmd = &cobra.Command{
		Use:   "snap",
		Short: "Snap vehicle positions to the road network",
		Long: `snap moves the recorded position of every frame of a vehicle snapshot to
the nearest interpolated road network point within Snap.MaxDistance meters and
writes the matched frames as CSV. Frames with no nearby point are dropped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runSnap()
		},
		DisableAutoGenTag: true,
	}

	cfg.poserrCmd = &cobra.Command{
		Use:   "poserr",
		Short: "Compute vehicle position errors",
		Long: `poserr computes, for every frame of a vehicle snapshot, the distance
between the recorded position and the position given by its link and offset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runPosErr()
		},
		DisableAutoGenTag: true,
	}

	cfg.recompCmd = &cobra.Command{
		Use:   "recomp",
		Short: "Move vehicle positions onto their links",
		Long: `recomp checks the recorded position of every frame of a vehicle snapshot
against the first segment of its link, counts the coordinates that lie outside
the grid or more than Recomp.MaxCellDistance cells beyond the segment, and writes
the snapshot with every position moved onto the segment to OutputFile. If
Recomp.ReportFile is set, a row describing each correction is written to it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runRecomp(cmd.OutOrStdout())
		},
		DisableAutoGenTag: true,
	}

	cfg.sampleCmd = &cobra.Command{
		Use:   "sample",
		Short: "Sample rows from vehicle snapshot files",
		Long: `sample keeps a random fraction of the data rows of each of the
Sample.Inputs files and writes them to OutputFile. Files are processed
concurrently; the rows kept depend only on Sample.Seed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runSample()
		},
		DisableAutoGenTag: true,
	}

	networkSets := []*pflag.FlagSet{cfg.gridCmd.Flags(), cfg.diffCmd.Flags(), cfg.correlateCmd.Flags(),
		cfg.regionTotalCmd.Flags(), cfg.interpolateCmd.Flags(), cfg.snapCmd.Flags(), cfg.poserrCmd.Flags(),
		cfg.recompCmd.Flags()}
	emissionsSets := []*pflag.FlagSet{cfg.gridCmd.Flags(), cfg.diffCmd.Flags(), cfg.correlateCmd.Flags(),
		cfg.regionTotalCmd.Flags()}
	gridSets := []*pflag.FlagSet{cfg.gridCmd.Flags(), cfg.diffCmd.Flags(), cfg.correlateCmd.Flags(),
		cfg.regionTotalCmd.Flags(), cfg.recompCmd.Flags()}
	snapSets := []*pflag.FlagSet{cfg.interpolateCmd.Flags(), cfg.snapCmd.Flags()}
	outputSets := []*pflag.FlagSet{cfg.gridCmd.Flags(), cfg.interpolateCmd.Flags(),
		cfg.snapCmd.Flags(), cfg.poserrCmd.Flags(), cfg.recompCmd.Flags(), cfg.sampleCmd.Flags()}
	snapshotSets := []*pflag.FlagSet{cfg.correlateCmd.Flags(), cfg.snapCmd.Flags(), cfg.poserrCmd.Flags(),
		cfg.recompCmd.Flags()}
	regionSets := []*pflag.FlagSet{cfg.regionTotalCmd.Flags()}

	options := []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel sets the level of progress messages: panic, fatal,
              error, warning, info, or debug.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "Network",
			usage: `
              Network is the path to the road network, either a GeoJSON
              FeatureCollection or a polyline shapefile (.shp) in geographic
              coordinates. Links carry the attributes LINKID, FROM, TO, DIRECT and FCC.`,
			shorthand:  "n",
			defaultVal: "",
			flagsets:   networkSets,
		},
		{
			name: "CentralMeridian",
			usage: `
              CentralMeridian is the central meridian [degrees] of the
              transverse Mercator projection used for the road network.`,
			defaultVal: -87.0,
			flagsets:   networkSets,
		},
		{
			name: "Emissions",
			usage: `
              Emissions is the path to an emission snapshot CSV file with link
              ids in column 1, rates in column 3 and quantities [MMBtu] in column 4.`,
			shorthand:  "e",
			defaultVal: "",
			flagsets:   emissionsSets,
		},
		{
			name: "CompareEmissions",
			usage: `
              CompareEmissions is the path to the emission snapshot that
              diff compares Emissions with.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.diffCmd.Flags()},
		},
		{
			name: "Snapshot",
			usage: `
              Snapshot is the path to a vehicle snapshot CSV file.`,
			defaultVal: "",
			flagsets:   snapshotSets,
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the output file.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   outputSets,
		},
		{
			name: "Grid.Rows",
			usage: `
              Grid.Rows is the number of grid rows.`,
			defaultVal: 550,
			flagsets:   gridSets,
		},
		{
			name: "Grid.Cols",
			usage: `
              Grid.Cols is the number of grid columns.`,
			defaultVal: 400,
			flagsets:   gridSets,
		},
		{
			name: "Grid.XMin",
			usage: `
              Grid.XMin is the western edge of the grid [m].`,
			defaultVal: 446319.62563207,
			flagsets:   gridSets,
		},
		{
			name: "Grid.XMax",
			usage: `
              Grid.XMax is the eastern edge of the grid [m].`,
			defaultVal: 448913.35313896,
			flagsets:   gridSets,
		},
		{
			name: "Grid.YMin",
			usage: `
              Grid.YMin is the southern edge of the grid [m].`,
			defaultVal: 4634587.13680183,
			flagsets:   gridSets,
		},
		{
			name: "Grid.YMax",
			usage: `
              Grid.YMax is the northern edge of the grid [m].`,
			defaultVal: 4638130.74608598,
			flagsets:   gridSets,
		},
		{
			name: "Grid.CutoffRadius",
			usage: `
              Grid.CutoffRadius is the distance, in grid cells, beyond which
              a link's emissions are not spread.`,
			defaultVal: 8,
			flagsets:   gridSets,
		},
		{
			name: "Correlate.MaxCellDistance",
			usage: `
              Correlate.MaxCellDistance is the largest distance, in grid cells,
              between a vehicle position and its link's footprint that is
              not counted as an error.`,
			defaultVal: 50.0,
			flagsets:   []*pflag.FlagSet{cfg.correlateCmd.Flags()},
		},
		{
			name: "Region.XMin",
			usage: `
              Region.XMin is the western edge [m] of the rectangle that
              regiontotal sums the field over.`,
			defaultVal: 0.0,
			flagsets:   regionSets,
		},
		{
			name: "Region.XMax",
			usage: `
              Region.XMax is the eastern edge [m] of the regiontotal rectangle.`,
			defaultVal: 0.0,
			flagsets:   regionSets,
		},
		{
			name: "Region.YMin",
			usage: `
              Region.YMin is the southern edge [m] of the regiontotal rectangle.`,
			defaultVal: 0.0,
			flagsets:   regionSets,
		},
		{
			name: "Region.YMax",
			usage: `
              Region.YMax is the northern edge [m] of the regiontotal rectangle.`,
			defaultVal: 0.0,
			flagsets:   regionSets,
		},
		{
			name: "Recomp.MaxCellDistance",
			usage: `
              Recomp.MaxCellDistance is the largest distance, in grid cells,
              that a recorded coordinate may lie beyond the extent of its
              link's first segment without being counted as an error.`,
			defaultVal: 30.0,
			flagsets:   []*pflag.FlagSet{cfg.recompCmd.Flags()},
		},
		{
			name: "Recomp.ReportFile",
			usage: `
              Recomp.ReportFile is the path to an optional CSV file describing
              the correction of every frame.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.recompCmd.Flags()},
		},
		{
			name: "Snap.Spacing",
			usage: `
              Snap.Spacing is the distance [m] between interpolated road
              network points.`,
			defaultVal: 2.5,
			flagsets:   snapSets,
		},
		{
			name: "Snap.MaxDistance",
			usage: `
              Snap.MaxDistance is the largest distance [m] a vehicle position
              can be moved to reach the road network.`,
			defaultVal: 20.0,
			flagsets:   []*pflag.FlagSet{cfg.snapCmd.Flags()},
		},
		{
			name: "Sample.Inputs",
			usage: `
              Sample.Inputs lists the vehicle snapshot files to sample from.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{cfg.sampleCmd.Flags()},
		},
		{
			name: "Sample.Fraction",
			usage: `
              Sample.Fraction is the probability that any row is kept.`,
			defaultVal: 0.05,
			flagsets:   []*pflag.FlagSet{cfg.sampleCmd.Flags()},
		},
		{
			name: "Sample.Seed",
			usage: `
              Sample.Seed is the random number seed.`,
			defaultVal: int64(1592417421),
			flagsets:   []*pflag.FlagSet{cfg.sampleCmd.Flags()},
		},
		{
			name: "Sample.Workers",
			usage: `
              Sample.Workers is the number of files sampled at once. The
              default (0) uses one worker per processor.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{cfg.sampleCmd.Flags()},
		},
	}

	// Set the prefix for configuration environment variables.
	cfg.SetEnvPrefix("ROADHEAT")
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case int64:
				set.Int64P(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	// Link the commands together.
	cfg.Root.AddCommand(cfg.versionCmd, cfg.configCmd, cfg.gridCmd, cfg.diffCmd,
		cfg.correlateCmd, cfg.regionTotalCmd, cfg.interpolateCmd, cfg.snapCmd, cfg.poserrCmd,
		cfg.recompCmd, cfg.sampleCmd)
	return cfg
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func (cfg *Cfg) setConfig() error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(cfgpath)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("roadheat: problem reading configuration file: %v", err)
		}
	}
	if l, ok := cfg.Log.(*logrus.Logger); ok {
		lvl, err := logrus.ParseLevel(cfg.GetString("LogLevel"))
		if err != nil {
			return fmt.Errorf("roadheat: LogLevel: %v", err)
		}
		l.SetLevel(lvl)
	}
	return nil
}

// WriteSettings writes s in TOML format.
func WriteSettings(w io.Writer, s *Settings) error {
	return toml.NewEncoder(w).Encode(s)
}

func (cfg *Cfg) network() (*roadnet.Network, float64, error) {
	s, err := LoadSettings(cfg.Viper)
	if err != nil {
		return nil, 0, err
	}
	f, err := checkInputFile("Network", s.Network)
	if err != nil {
		return nil, 0, err
	}
	net, err := LoadNetwork(f, s.CentralMeridian)
	if err != nil {
		return nil, 0, err
	}
	cfg.Log.WithFields(logrus.Fields{
		"file":  f,
		"links": net.Len(),
	}).Info("loaded road network")
	return net, s.CentralMeridian, nil
}

func (cfg *Cfg) emissions(varName string) (emissions.Snapshot, error) {
	f, err := checkInputFile(varName, cfg.GetString(varName))
	if err != nil {
		return nil, err
	}
	em, err := LoadEmissions(os.ExpandEnv(f))
	if err != nil {
		return nil, err
	}
	cfg.Log.WithFields(logrus.Fields{
		"file":  f,
		"links": len(em),
		"total": em.Total(),
	}).Info("loaded emissions")
	return em, nil
}

func (cfg *Cfg) snapshot() (*traffic.Snapshot, error) {
	f, err := checkInputFile("Snapshot", os.ExpandEnv(cfg.GetString("Snapshot")))
	if err != nil {
		return nil, err
	}
	s, err := LoadSnapshot(f)
	if err != nil {
		return nil, err
	}
	cfg.Log.WithFields(logrus.Fields{
		"file":   f,
		"frames": len(s.Frames),
	}).Info("loaded vehicle snapshot")
	return s, nil
}

func (cfg *Cfg) outputFile() (string, error) {
	return checkOutputFile(os.ExpandEnv(cfg.GetString("OutputFile")))
}

func (cfg *Cfg) runGrid() error {
	gc, err := GridConfigFrom(cfg.Viper)
	if err != nil {
		return err
	}
	out, err := cfg.outputFile()
	if err != nil {
		return err
	}
	net, cm, err := cfg.network()
	if err != nil {
		return err
	}
	em, err := cfg.emissions("Emissions")
	if err != nil {
		return err
	}
	g, err := Field(net, em, gc)
	if err != nil {
		return err
	}
	cfg.Log.WithFields(logrus.Fields{
		"max":   g.Max,
		"total": g.Total(),
	}).Info("allocated emissions")
	if err := WriteField(g, out, cm, southern(net)); err != nil {
		return err
	}
	cfg.Log.WithField("file", out).Info("wrote grid")
	return nil
}

func (cfg *Cfg) runDiff(w io.Writer) error {
	gc, err := GridConfigFrom(cfg.Viper)
	if err != nil {
		return err
	}
	net, _, err := cfg.network()
	if err != nil {
		return err
	}
	a, err := cfg.emissions("Emissions")
	if err != nil {
		return err
	}
	b, err := cfg.emissions("CompareEmissions")
	if err != nil {
		return err
	}
	d, err := FieldDiff(net, a, b, gc)
	if err != nil {
		return err
	}
	cfg.Log.WithField("difference", d).Info("compared emission fields")
	_, err = fmt.Fprintln(w, d)
	return err
}

func (cfg *Cfg) runCorrelate(w io.Writer) error {
	gc, err := GridConfigFrom(cfg.Viper)
	if err != nil {
		return err
	}
	net, _, err := cfg.network()
	if err != nil {
		return err
	}
	em, err := cfg.emissions("Emissions")
	if err != nil {
		return err
	}
	s, err := cfg.snapshot()
	if err != nil {
		return err
	}
	g, err := Field(net, em, gc)
	if err != nil {
		return err
	}
	c := Correlate(g, s.Frames, cfg.GetFloat64("Correlate.MaxCellDistance"))
	cfg.Log.WithFields(logrus.Fields{
		"frames":    c.Total,
		"outside":   c.Outside,
		"erroneous": c.Erroneous,
	}).Info("correlated positions with footprints")
	fmt.Fprintf(w, "%05d erroneous entries out of %05d = %2.3f%%\n", c.Erroneous, c.Total, percent(c.Erroneous, c.Total))
	_, err = fmt.Fprintf(w, "%05d entries with vehicle outside of y-bounds out of %05d = %2.3f%%\n",
		c.Outside, c.Total, percent(c.Outside, c.Total))
	return err
}

func (cfg *Cfg) runRegionTotal(w io.Writer) error {
	gc, err := GridConfigFrom(cfg.Viper)
	if err != nil {
		return err
	}
	rc, err := RegionConfigFrom(cfg.Viper)
	if err != nil {
		return err
	}
	net, _, err := cfg.network()
	if err != nil {
		return err
	}
	em, err := cfg.emissions("Emissions")
	if err != nil {
		return err
	}
	g, err := Field(net, em, gc)
	if err != nil {
		return err
	}
	total := g.RegionTotal(rc.Bounds())
	cfg.Log.WithFields(logrus.Fields{
		"region": rc.Bounds(),
		"total":  total,
	}).Info("summed emission field over region")
	_, err = fmt.Fprintln(w, total)
	return err
}

func (cfg *Cfg) runInterpolate() error {
	sc, err := SnapConfigFrom(cfg.Viper)
	if err != nil {
		return err
	}
	out, err := cfg.outputFile()
	if err != nil {
		return err
	}
	net, _, err := cfg.network()
	if err != nil {
		return err
	}
	idx, err := snap.Build(net, sc.Spacing)
	if err != nil {
		return err
	}
	if err := writeFile(out, idx.WriteSamples); err != nil {
		return err
	}
	cfg.Log.WithFields(logrus.Fields{
		"file":   out,
		"points": idx.Len(),
	}).Info("wrote network points")
	return nil
}

func (cfg *Cfg) runSnap() error {
	sc, err := SnapConfigFrom(cfg.Viper)
	if err != nil {
		return err
	}
	out, err := cfg.outputFile()
	if err != nil {
		return err
	}
	net, _, err := cfg.network()
	if err != nil {
		return err
	}
	s, err := cfg.snapshot()
	if err != nil {
		return err
	}
	idx, err := snap.Build(net, sc.Spacing)
	if err != nil {
		return err
	}
	var matched int
	err = writeFile(out, func(w io.Writer) error {
		var err error
		matched, err = WriteSnapped(w, idx, s, sc.MaxDistance)
		return err
	})
	if err != nil {
		return err
	}
	cfg.Log.WithFields(logrus.Fields{
		"file":    out,
		"frames":  len(s.Frames),
		"matched": matched,
	}).Info("snapped vehicle positions")
	return nil
}

func (cfg *Cfg) runPosErr() error {
	out, err := cfg.outputFile()
	if err != nil {
		return err
	}
	net, _, err := cfg.network()
	if err != nil {
		return err
	}
	s, err := cfg.snapshot()
	if err != nil {
		return err
	}
	errs := PositionErrors(net, s.Frames)
	if err := writeFile(out, func(w io.Writer) error { return WritePositionErrors(w, errs) }); err != nil {
		return err
	}
	mean, max := errorSummary(errs)
	cfg.Log.WithFields(logrus.Fields{
		"file":    out,
		"frames":  len(s.Frames),
		"located": len(errs),
		"mean":    mean,
		"max":     max,
	}).Info("computed position errors")
	return nil
}

func (cfg *Cfg) runRecomp(w io.Writer) error {
	gc, err := GridConfigFrom(cfg.Viper)
	if err != nil {
		return err
	}
	def, err := gc.Def()
	if err != nil {
		return err
	}
	maxCells := cfg.GetFloat64("Recomp.MaxCellDistance")
	if !(maxCells >= 0) {
		return fmt.Errorf("roadheat: Recomp.MaxCellDistance must not be negative; have %g", maxCells)
	}
	out, err := cfg.outputFile()
	if err != nil {
		return err
	}
	var report func(RecompRecord) error
	var rw *csv.Writer
	if rf := os.ExpandEnv(cfg.GetString("Recomp.ReportFile")); rf != "" {
		if rf, err = checkOutputFile(rf); err != nil {
			return err
		}
		f, err := os.Create(rf)
		if err != nil {
			return fmt.Errorf("roadheat: creating report file: %v", err)
		}
		defer f.Close()
		rw = csv.NewWriter(f)
		if report, err = recompReporter(rw); err != nil {
			return err
		}
	}
	net, _, err := cfg.network()
	if err != nil {
		return err
	}
	s, err := cfg.snapshot()
	if err != nil {
		return err
	}
	corrected, r, err := Recompute(net, def, maxCells, s, report)
	if err != nil {
		return fmt.Errorf("roadheat: writing report: %v", err)
	}
	if rw != nil {
		rw.Flush()
		if err := rw.Error(); err != nil {
			return fmt.Errorf("roadheat: writing report: %v", err)
		}
	}
	if err := writeFile(out, corrected.WriteCSV); err != nil {
		return err
	}
	cfg.Log.WithFields(logrus.Fields{
		"file":      out,
		"frames":    r.Total,
		"erroneous": r.Erroneous,
		"missing":   r.Missing,
	}).Info("recomputed vehicle positions")
	return writeRecomputation(w, r)
}

func (cfg *Cfg) runSample() error {
	sc, err := SampleConfigFrom(cfg.Viper)
	if err != nil {
		return err
	}
	out, err := cfg.outputFile()
	if err != nil {
		return err
	}
	s := &sample.Sampler{
		Fraction: sc.Fraction,
		Seed:     sc.Seed,
		Workers:  sc.Workers,
		Progress: func(p sample.Partition, kept int) {
			cfg.Log.WithFields(logrus.Fields{
				"file": p.Name,
				"kept": kept,
			}).Info("sampled file")
		},
	}
	rows, err := s.Rows(sample.FilePartitions(sc.Inputs))
	if err != nil {
		return err
	}
	err = writeFile(out, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(traffic.SnapshotHeader); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		return cw.Error()
	})
	if err != nil {
		return err
	}
	cfg.Log.WithFields(logrus.Fields{
		"file": out,
		"rows": len(rows),
	}).Info("wrote sample")
	return nil
}
