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
	"bytes"
	"encoding/csv"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/roadheat"
	"github.com/spatialmodel/roadheat/traffic"
	"github.com/spatialmodel/roadheat/utm"
)

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "roadheatutil")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

// execute runs the command given by args and returns what it printed.
func execute(t *testing.T, cfg *Cfg, args ...string) string {
	var buf bytes.Buffer
	cfg.Root.SetOutput(&buf)
	cfg.Root.SetArgs(args)
	if err := cfg.Root.Execute(); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func readCSV(t *testing.T, fileName string) [][]string {
	f, err := os.Open(fileName)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func TestVersion(t *testing.T) {
	cfg := InitializeConfig()
	have := execute(t, cfg, "version")
	if want := "RoadHeat v" + roadheat.Version + "\n"; have != want {
		t.Errorf("have %q, want %q", have, want)
	}
}

func TestConfig(t *testing.T) {
	cfg := InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	out := execute(t, cfg, "config")

	var s Settings
	if _, err := toml.Decode(out, &s); err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	if s.Network != "testdata/network.geojson" {
		t.Errorf("Network: %q", s.Network)
	}
	if s.Grid.CutoffRadius != 4 || s.Grid.Rows != 550 || s.Grid.Cols != 400 {
		t.Errorf("Grid: %+v", s.Grid)
	}
	if s.Snap.Spacing != 5 || s.Snap.MaxDistance != 20 {
		t.Errorf("Snap: %+v", s.Snap)
	}
	if s.Sample.Seed != 1592417421 || s.Sample.Fraction != 0.05 {
		t.Errorf("Sample: %+v", s.Sample)
	}
	if s.CentralMeridian != -87 || s.LogLevel != "info" {
		t.Errorf("have CentralMeridian=%g, LogLevel=%q", s.CentralMeridian, s.LogLevel)
	}
}

func TestConfigMissingFile(t *testing.T) {
	cfg := InitializeConfig()
	cfg.Set("config", "testdata/does_not_exist.toml")
	cfg.Root.SetOutput(ioutil.Discard)
	cfg.Root.SetArgs([]string{"config"})
	if err := cfg.Root.Execute(); err == nil {
		t.Error("expected an error")
	}
}

func TestGridCSV(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "heat.csv")

	cfg := InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	cfg.Set("OutputFile", out)
	execute(t, cfg, "grid")

	recs := readCSV(t, out)
	if len(recs) != 550 {
		t.Fatalf("have %d rows, want 550", len(recs))
	}
	var total float64
	for i, rec := range recs {
		if len(rec) != 400 {
			t.Fatalf("row %d has %d columns, want 400", i, len(rec))
		}
		for _, v := range rec {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				t.Fatal(err)
			}
			if f < 0 {
				t.Fatalf("negative value %g in row %d", f, i)
			}
			total += f
		}
	}
	if !(total > 0) {
		t.Error("grid is empty")
	}
}

func TestGridShapefile(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	cfg := InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	cfg.Set("OutputFile", filepath.Join(dir, "heat.shp"))
	execute(t, cfg, "grid")

	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		if _, err := os.Stat(filepath.Join(dir, "heat"+ext)); err != nil {
			t.Error(err)
		}
	}
	prj, err := ioutil.ReadFile(filepath.Join(dir, "heat.prj"))
	if err != nil {
		t.Fatal(err)
	}
	if string(prj) != utm.WKT(-87, false) {
		t.Errorf("prj: %s", prj)
	}
}

func TestGridInvalid(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	for name, set := range map[string]func(cfg *Cfg){
		"rows":    func(cfg *Cfg) { cfg.Set("Grid.Rows", 1) },
		"box":     func(cfg *Cfg) { cfg.Set("Grid.XMax", 0.0) },
		"network": func(cfg *Cfg) { cfg.Set("Network", "") },
		"output":  func(cfg *Cfg) { cfg.Set("OutputFile", filepath.Join(dir, "missing", "heat.csv")) },
	} {
		cfg := InitializeConfig()
		cfg.Set("config", "testdata/config.toml")
		cfg.Set("OutputFile", filepath.Join(dir, "heat.csv"))
		set(cfg)
		cfg.Root.SetOutput(ioutil.Discard)
		cfg.Root.SetArgs([]string{"grid"})
		if err := cfg.Root.Execute(); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestDiff(t *testing.T) {
	cfg := InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	cfg.Set("CompareEmissions", "testdata/emissions.csv")
	if out := execute(t, cfg, "diff"); out != "0\n" {
		t.Errorf("a snapshot compared with itself: have %q", out)
	}

	cfg = InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	cfg.Set("CompareEmissions", "testdata/emissions_compare.csv")
	out := execute(t, cfg, "diff")
	d, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		t.Fatal(err)
	}
	if !(d > 0) {
		t.Errorf("difference: have %g", d)
	}
}

func TestCorrelateCommand(t *testing.T) {
	cfg := InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	out := execute(t, cfg, "correlate")
	if !strings.Contains(out, "00001 entries with vehicle outside of y-bounds out of 00003") {
		t.Errorf("output: %s", out)
	}
}

func TestInterpolate(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "points.csv")

	cfg := InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	cfg.Set("OutputFile", out)
	execute(t, cfg, "interpolate")

	recs := readCSV(t, out)
	if strings.Join(recs[0], ",") != "x,y,link_id,offset" {
		t.Errorf("header: %v", recs[0])
	}
	links := make(map[string]int)
	for _, rec := range recs[1:] {
		links[rec[2]]++
	}
	if len(links) != 4 {
		t.Errorf("points on %d links, want 4", len(links))
	}
	// Link 1 is about 555 m long.
	if n := links["1"]; n < 110 || n > 114 {
		t.Errorf("link 1 has %d points", n)
	}
}

func TestSnap(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "snapped.csv")

	cfg := InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	cfg.Set("OutputFile", out)
	execute(t, cfg, "snap")

	recs := readCSV(t, out)
	if strings.Join(recs[0], ",") != strings.Join(SnapHeader, ",") {
		t.Errorf("header: %v", recs[0])
	}
	if len(recs) != 3 {
		t.Fatalf("have %d matched frames, want 2", len(recs)-1)
	}
	for i, wantTime := range []string{"8:00", "8:00:30"} {
		rec := recs[i+1]
		if rec[0] != "1" || rec[1] != wantTime || rec[2] != "1" {
			t.Errorf("row %d: %v", i+1, rec)
		}
		dist, err := strconv.ParseFloat(rec[15], 64)
		if err != nil {
			t.Fatal(err)
		}
		if dist > 5 {
			t.Errorf("row %d: distance %g", i+1, dist)
		}
	}
}

func TestPosErr(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "errors.csv")

	cfg := InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	cfg.Set("OutputFile", out)
	execute(t, cfg, "poserr")

	recs := readCSV(t, out)
	if strings.Join(recs[0], ",") != "vehicle,time,position_err_m" {
		t.Errorf("header: %v", recs[0])
	}
	if len(recs) != 3 {
		t.Fatalf("have %d rows, want 2", len(recs)-1)
	}
	for i, want := range []float64{2.998, 0.005} {
		v, err := strconv.ParseFloat(recs[i+1][2], 64)
		if err != nil {
			t.Fatal(err)
		}
		if different(v, want, 0.0015) {
			t.Errorf("row %d: have %g, want %g", i+1, v, want)
		}
	}
}

func TestSample(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	header := strings.Join(traffic.SnapshotHeader, ",") + "\n"
	var inputs []string
	for i, body := range []string{"1,08:00\n2,08:00\n", "3,08:01\n"} {
		f := filepath.Join(dir, "Snapshot_"+strconv.Itoa(i)+".csv")
		if err := ioutil.WriteFile(f, []byte(header+body), 0644); err != nil {
			t.Fatal(err)
		}
		inputs = append(inputs, f)
	}
	out := filepath.Join(dir, "sample.csv")

	cfg := InitializeConfig()
	cfg.Set("Sample.Inputs", inputs)
	cfg.Set("Sample.Fraction", 1.0)
	cfg.Set("OutputFile", out)
	execute(t, cfg, "sample")

	recs := readCSV(t, out)
	if strings.Join(recs[0], ",") != strings.Join(traffic.SnapshotHeader, ",") {
		t.Errorf("header: %v", recs[0])
	}
	var vehicles []string
	for _, rec := range recs[1:] {
		vehicles = append(vehicles, rec[0])
	}
	if len(vehicles) != 3 {
		t.Errorf("have rows for vehicles %v", vehicles)
	}

	cfg = InitializeConfig()
	cfg.Set("OutputFile", out)
	cfg.Root.SetOutput(ioutil.Discard)
	cfg.Root.SetArgs([]string{"sample"})
	if err := cfg.Root.Execute(); err == nil {
		t.Error("sampling with no inputs should fail")
	}
}

func TestRegionTotal(t *testing.T) {
	cfg := InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	cfg.Set("Region.XMin", 446000.0)
	cfg.Set("Region.XMax", 449000.0)
	cfg.Set("Region.YMin", 4634000.0)
	cfg.Set("Region.YMax", 4639000.0)
	out := execute(t, cfg, "regiontotal")
	have, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		t.Fatal(err)
	}

	net, err := LoadNetwork("testdata/network.geojson", -87)
	if err != nil {
		t.Fatal(err)
	}
	em, err := LoadEmissions("testdata/emissions.csv")
	if err != nil {
		t.Fatal(err)
	}
	gc, err := GridConfigFrom(cfg.Viper)
	if err != nil {
		t.Fatal(err)
	}
	g, err := Field(net, em, gc)
	if err != nil {
		t.Fatal(err)
	}
	// The region covers the whole grid.
	if want := g.Total(); !(want > 0) || different(have, want, 1e-9*want) {
		t.Errorf("have %g, want %g", have, want)
	}

	cfg = InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	cfg.Root.SetOutput(ioutil.Discard)
	cfg.Root.SetArgs([]string{"regiontotal"})
	if err := cfg.Root.Execute(); err == nil {
		t.Error("an empty region should be rejected")
	}
}

func TestRecompCommand(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "Snapshot_0.csv")
	report := filepath.Join(dir, "report_Snapshot_0.csv")

	cfg := InitializeConfig()
	cfg.Set("config", "testdata/config.toml")
	cfg.Set("OutputFile", out)
	cfg.Set("Recomp.ReportFile", report)
	summary := execute(t, cfg, "recomp")
	for _, line := range []string{
		"00000 erroneous entries in total, rate of occurrence = 0.000%",
		"00001 entries were on links missing from the network and were not corrected",
	} {
		if !strings.Contains(summary, line) {
			t.Errorf("summary is missing %q:\n%s", line, summary)
		}
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	s, err := traffic.ReadSnapshot(f, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Frames) != 3 {
		t.Fatalf("have %d frames, want 3", len(s.Frames))
	}
	if v := s.Frames[1]; v.Vehicle != 2 || v.X != 446000 || v.Y != 4600000 {
		t.Errorf("frame on a missing link should be unchanged: %+v", v)
	}
	for _, i := range []int{0, 2} {
		f := s.Frames[i]
		if f.Vehicle != 1 || different(f.X, 447729, 5) {
			t.Errorf("frame %d: %+v", i, f)
		}
	}

	recs := readCSV(t, report)
	if strings.Join(recs[0], ",") != strings.Join(RecompReportHeader, ",") {
		t.Errorf("report header: %v", recs[0])
	}
	if len(recs) != 3 {
		t.Errorf("report has %d rows, want 2", len(recs)-1)
	}
}

func TestRecompInvalid(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	for name, set := range map[string]func(cfg *Cfg){
		"threshold": func(cfg *Cfg) { cfg.Set("Recomp.MaxCellDistance", -1.0) },
		"report":    func(cfg *Cfg) { cfg.Set("Recomp.ReportFile", filepath.Join(dir, "missing", "report.csv")) },
		"snapshot":  func(cfg *Cfg) { cfg.Set("Snapshot", "") },
	} {
		cfg := InitializeConfig()
		cfg.Set("config", "testdata/config.toml")
		cfg.Set("OutputFile", filepath.Join(dir, "Snapshot_0.csv"))
		set(cfg)
		cfg.Root.SetOutput(ioutil.Discard)
		cfg.Root.SetArgs([]string{"recomp"})
		if err := cfg.Root.Execute(); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestLogLevelPerConfig(t *testing.T) {
	debug := InitializeConfig()
	debug.Set("LogLevel", "debug")
	execute(t, debug, "version")

	other := InitializeConfig()
	execute(t, other, "version")

	if l := debug.Log.(*logrus.Logger); l.Level != logrus.DebugLevel {
		t.Errorf("have level %v, want debug", l.Level)
	}
	if l := other.Log.(*logrus.Logger); l.Level != logrus.InfoLevel {
		t.Errorf("level of a second configuration: have %v, want info", l.Level)
	}
	if logrus.StandardLogger().Level == logrus.DebugLevel {
		t.Error("the standard logger level was changed")
	}
}
