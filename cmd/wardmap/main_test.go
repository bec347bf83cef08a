package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/c360studio/wardmap/shapefile/shapefiletest"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "wardmap version "+Version) {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestConfigCommandAppliesFlags(t *testing.T) {
	out, err := execute(t, "config", "--output", "flag.png", "--target-crs", "EPSG:32630")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	for _, want := range []string{"output: flag.png", "target_crs: EPSG:32630", "colormap: viridis"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in config output:\n%s", want, out)
		}
	}
}

func TestConfigCommandRejectsInvalid(t *testing.T) {
	if _, err := execute(t, "config", "--target-crs", "EPSG:9999"); err == nil {
		t.Error("expected error for unknown target CRS")
	}
}

func TestConfigInitCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var stdout bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "init"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init error = %v", err)
	}

	path := filepath.Join(home, ".config", "wardmap", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("user config not written: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "Created ") {
		t.Errorf("unexpected output %q", stdout.String())
	}
}

func TestRootCommandWritesMap(t *testing.T) {
	dir := t.TempDir()
	counties := shapefiletest.WritePolygons(t, dir, "Counties",
		[]shp.Field{shp.StringField("CountyName", 20)},
		[]shapefiletest.Row{{Rings: []orb.Ring{shapefiletest.Square(-6.6, 54.6, 0.4)}, Values: []any{"ANTRIM"}}},
		shapefiletest.WGS84PRJ)
	wards := shapefiletest.WritePolygons(t, dir, "NI_Wards",
		[]shp.Field{shp.StringField("Ward", 40), shp.NumberField("Population", 10)},
		[]shapefiletest.Row{
			{Rings: []orb.Ring{shapefiletest.Square(-6.5, 54.7, 0.05)}, Values: []any{"Ballee", 3000}},
			{Rings: []orb.Ring{shapefiletest.Square(-6.3, 54.8, 0.05)}, Values: []any{"Abbey", 4000}},
		},
		shapefiletest.WGS84PRJ)

	configPath := filepath.Join(dir, "small.yaml")
	if err := os.WriteFile(configPath, []byte("render:\n  dpi: 40\n"), 0644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "map.png")

	out, err := execute(t,
		"--config", configPath,
		"--counties", counties,
		"--wards", wards,
		"--output", output,
		"--log-level", "error",
	)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	if !strings.Contains(out, "ANTRIM    7000") {
		t.Errorf("expected county total in output:\n%s", out)
	}
	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("map not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("map is empty")
	}
}
