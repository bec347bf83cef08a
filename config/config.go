// Package config provides configuration loading and management for wardmap.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/wardmap/crs"
	"github.com/c360studio/wardmap/render"
	"github.com/c360studio/wardmap/spatial"
)

// Config represents the complete wardmap configuration
type Config struct {
	Inputs     InputsConfig  `yaml:"inputs"`
	DefaultCRS string        `yaml:"default_crs,omitempty"`
	TargetCRS  string        `yaml:"target_crs"`
	Join       JoinConfig    `yaml:"join"`
	Render     RenderConfig  `yaml:"render"`
	Export     ExportConfig  `yaml:"export"`
	Metrics    MetricsConfig `yaml:"metrics"`
	NATS       NATSConfig    `yaml:"nats"`
	Watch      WatchConfig   `yaml:"watch"`
}

// InputsConfig names the two input layers
type InputsConfig struct {
	Counties LayerConfig `yaml:"counties"`
	Wards    LayerConfig `yaml:"wards"`
}

// LayerConfig configures one input shapefile
type LayerConfig struct {
	// Path is the .shp file; doublestar globs are allowed
	Path string `yaml:"path"`
	// CRS overrides the .prj file when set (e.g. "EPSG:29902")
	CRS string `yaml:"crs,omitempty"`
	// NameField is the attribute naming each feature
	NameField string `yaml:"name_field"`
	// ValueField is the numeric attribute to aggregate (wards only)
	ValueField string `yaml:"value_field,omitempty"`
}

// JoinConfig configures the spatial join
type JoinConfig struct {
	How     string `yaml:"how"`
	LSuffix string `yaml:"lsuffix"`
	RSuffix string `yaml:"rsuffix"`
}

// RenderConfig configures the map figure
type RenderConfig struct {
	// Output is the PNG file to write
	Output string `yaml:"output"`
	// PointsOutput, when set, also writes a boundaries plus representative points overview
	PointsOutput string `yaml:"points_output,omitempty"`

	Width  float64 `yaml:"width_inches"`
	Height float64 `yaml:"height_inches"`
	DPI    int     `yaml:"dpi"`

	VMin     float64 `yaml:"vmin"`
	VMax     float64 `yaml:"vmax"`
	Colormap string  `yaml:"colormap"`

	ColorbarLabel string  `yaml:"colorbar_label"`
	ColorbarSize  float64 `yaml:"colorbar_size"`
	ColorbarPad   float64 `yaml:"colorbar_pad_inches"`
	TickStep      float64 `yaml:"colorbar_tick_step"`

	BoundaryColor string `yaml:"boundary_color"`

	GridLons   []float64 `yaml:"grid_lons"`
	GridLats   []float64 `yaml:"grid_lats"`
	GridLabels []string  `yaml:"grid_labels"`

	LegendLabel    string  `yaml:"legend_label"`
	LegendFontSize float64 `yaml:"legend_font_size"`
	LegendLocation string  `yaml:"legend_location"`

	// BBoxInches is "tight" to crop white margins, or "full"
	BBoxInches string  `yaml:"bbox_inches"`
	PadInches  float64 `yaml:"pad_inches"`
}

// ExportConfig configures optional table exports
type ExportConfig struct {
	// Joined is a .geojson or .csv path for the joined table
	Joined string `yaml:"joined,omitempty"`
	// Aggregates is a .json or .csv path for both aggregates
	Aggregates string `yaml:"aggregates,omitempty"`
}

// MetricsConfig configures Prometheus output
type MetricsConfig struct {
	// Textfile is a node-exporter textfile path (empty = disabled)
	Textfile string `yaml:"textfile,omitempty"`
}

// NATSConfig configures report publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = do not publish)
	URL string `yaml:"url,omitempty"`
	// Subject is the subject reports are published on
	Subject string `yaml:"subject"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	// Debounce is how long input files must be quiet before a re-run
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	ro := render.DefaultOptions()
	return &Config{
		Inputs: InputsConfig{
			Counties: LayerConfig{
				Path:      "data_files/Counties.shp",
				NameField: "CountyName",
			},
			Wards: LayerConfig{
				Path:       "data_files/NI_Wards.shp",
				NameField:  "Ward",
				ValueField: "Population",
			},
		},
		TargetCRS: "EPSG:32629",
		Join: JoinConfig{
			How:     string(spatial.Inner),
			LSuffix: "left",
			RSuffix: "right",
		},
		Render: RenderConfig{
			Output:         "sample_map.png",
			Width:          ro.WidthInches,
			Height:         ro.HeightInches,
			DPI:            ro.DPI,
			VMin:           ro.VMin,
			VMax:           ro.VMax,
			Colormap:       ro.Colormap,
			ColorbarLabel:  ro.ColorbarLabel,
			ColorbarSize:   ro.ColorbarSize,
			ColorbarPad:    ro.ColorbarPadInches,
			TickStep:       ro.ColorbarTickStep,
			BoundaryColor:  ro.BoundaryColor,
			GridLons:       ro.GridLons,
			GridLats:       ro.GridLats,
			GridLabels:     []string{"left", "top"},
			LegendLabel:    ro.LegendLabel,
			LegendFontSize: ro.LegendFontSize,
			LegendLocation: ro.LegendLocation,
			BBoxInches:     "tight",
			PadInches:      ro.TightPadInches,
		},
		NATS: NATSConfig{
			Subject: "wardmap.report",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Inputs.Counties.Path == "" {
		return fmt.Errorf("inputs.counties.path is required")
	}
	if c.Inputs.Wards.Path == "" {
		return fmt.Errorf("inputs.wards.path is required")
	}
	if c.Inputs.Counties.NameField == "" {
		return fmt.Errorf("inputs.counties.name_field is required")
	}
	if c.Inputs.Wards.NameField == "" || c.Inputs.Wards.ValueField == "" {
		return fmt.Errorf("inputs.wards.name_field and inputs.wards.value_field are required")
	}
	for key, v := range map[string]string{
		"target_crs":          c.TargetCRS,
		"default_crs":         c.DefaultCRS,
		"inputs.counties.crs": c.Inputs.Counties.CRS,
		"inputs.wards.crs":    c.Inputs.Wards.CRS,
	} {
		if v == "" && key != "target_crs" {
			continue
		}
		if _, err := crs.Parse(v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	switch spatial.How(c.Join.How) {
	case spatial.Inner, spatial.Left:
	default:
		return fmt.Errorf("join.how must be %q or %q", spatial.Inner, spatial.Left)
	}
	if c.Render.Output == "" {
		return fmt.Errorf("render.output is required")
	}
	if c.Render.BBoxInches != "tight" && c.Render.BBoxInches != "full" {
		return fmt.Errorf("render.bbox_inches must be \"tight\" or \"full\"")
	}
	if _, err := c.Render.sides(); err != nil {
		return err
	}
	if err := c.Render.Options().Validate(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// JoinOptions returns the spatial join settings.
func (c *Config) JoinOptions() spatial.JoinOptions {
	return spatial.JoinOptions{
		How:     spatial.How(c.Join.How),
		LSuffix: c.Join.LSuffix,
		RSuffix: c.Join.RSuffix,
	}
}

// Options converts the render section to renderer options.
func (r RenderConfig) Options() render.Options {
	opts := render.DefaultOptions()
	opts.WidthInches = r.Width
	opts.HeightInches = r.Height
	opts.DPI = r.DPI
	opts.VMin = r.VMin
	opts.VMax = r.VMax
	opts.Colormap = r.Colormap
	opts.ColorbarLabel = r.ColorbarLabel
	opts.ColorbarSize = r.ColorbarSize
	opts.ColorbarPadInches = r.ColorbarPad
	opts.ColorbarTickStep = r.TickStep
	opts.BoundaryColor = r.BoundaryColor
	opts.GridLons = r.GridLons
	opts.GridLats = r.GridLats
	opts.GridLabels, _ = r.sides()
	opts.LegendLabel = r.LegendLabel
	opts.LegendFontSize = r.LegendFontSize
	opts.LegendLocation = r.LegendLocation
	opts.Tight = r.BBoxInches == "tight"
	opts.TightPadInches = r.PadInches
	return opts
}

func (r RenderConfig) sides() (render.Sides, error) {
	var s render.Sides
	for _, name := range r.GridLabels {
		switch strings.ToLower(name) {
		case "left":
			s.Left = true
		case "right":
			s.Right = true
		case "top":
			s.Top = true
		case "bottom":
			s.Bottom = true
		default:
			return s, fmt.Errorf("render.grid_labels: unknown side %q", name)
		}
	}
	return s, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

// decodeFile unmarshals the YAML at path over into.
func decodeFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Inputs
	mergeLayer(&c.Inputs.Counties, other.Inputs.Counties)
	mergeLayer(&c.Inputs.Wards, other.Inputs.Wards)
	setString(&c.DefaultCRS, other.DefaultCRS)
	setString(&c.TargetCRS, other.TargetCRS)

	// Join
	setString(&c.Join.How, other.Join.How)
	setString(&c.Join.LSuffix, other.Join.LSuffix)
	setString(&c.Join.RSuffix, other.Join.RSuffix)

	// Render
	r, o := &c.Render, other.Render
	setString(&r.Output, o.Output)
	setString(&r.PointsOutput, o.PointsOutput)
	setFloat(&r.Width, o.Width)
	setFloat(&r.Height, o.Height)
	if o.DPI != 0 {
		r.DPI = o.DPI
	}
	setFloat(&r.VMin, o.VMin)
	setFloat(&r.VMax, o.VMax)
	setString(&r.Colormap, o.Colormap)
	setString(&r.ColorbarLabel, o.ColorbarLabel)
	setFloat(&r.ColorbarSize, o.ColorbarSize)
	setFloat(&r.ColorbarPad, o.ColorbarPad)
	setFloat(&r.TickStep, o.TickStep)
	setString(&r.BoundaryColor, o.BoundaryColor)
	if len(o.GridLons) > 0 {
		r.GridLons = o.GridLons
	}
	if len(o.GridLats) > 0 {
		r.GridLats = o.GridLats
	}
	if len(o.GridLabels) > 0 {
		r.GridLabels = o.GridLabels
	}
	setString(&r.LegendLabel, o.LegendLabel)
	setFloat(&r.LegendFontSize, o.LegendFontSize)
	setString(&r.LegendLocation, o.LegendLocation)
	setString(&r.BBoxInches, o.BBoxInches)
	setFloat(&r.PadInches, o.PadInches)

	// Export, metrics, NATS, watch
	setString(&c.Export.Joined, other.Export.Joined)
	setString(&c.Export.Aggregates, other.Export.Aggregates)
	setString(&c.Metrics.Textfile, other.Metrics.Textfile)
	setString(&c.NATS.URL, other.NATS.URL)
	setString(&c.NATS.Subject, other.NATS.Subject)
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
}

func mergeLayer(dst *LayerConfig, src LayerConfig) {
	setString(&dst.Path, src.Path)
	setString(&dst.CRS, src.CRS)
	setString(&dst.NameField, src.NameField)
	setString(&dst.ValueField, src.ValueField)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}
