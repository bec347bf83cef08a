package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/wardmap/config"
	"github.com/c360studio/wardmap/crs"
	"github.com/c360studio/wardmap/feature"
	"github.com/c360studio/wardmap/metrics"
	"github.com/c360studio/wardmap/publish"
	"github.com/c360studio/wardmap/shapefile"
	"github.com/c360studio/wardmap/shapefile/shapefiletest"
)

type ward struct {
	name string
	x, y float64
	pop  int
}

var niWards = []ward{
	{"Ballee", -6.5, 54.7, 3000},
	{"Abbey", -6.3, 54.8, 4000},
	{"Ardglass", -5.9, 54.3, 2000},
	{"Offshore", -8.5, 53.0, 1000},
}

// fixture writes Counties.shp and NI_Wards.shp in WGS84 and returns a
// config pointing at them with every optional output enabled.
func fixture(t *testing.T, wards []ward) *config.Config {
	t.Helper()
	dir := t.TempDir()

	shapefiletest.WritePolygons(t, dir, "Counties",
		[]shp.Field{shp.StringField("CountyName", 20)},
		[]shapefiletest.Row{
			{Rings: []orb.Ring{shapefiletest.Square(-6.6, 54.6, 0.4)}, Values: []any{"ANTRIM"}},
			{Rings: []orb.Ring{shapefiletest.Square(-6.0, 54.2, 0.4)}, Values: []any{"DOWN"}},
		}, shapefiletest.WGS84PRJ)

	rows := make([]shapefiletest.Row, len(wards))
	for i, w := range wards {
		rows[i] = shapefiletest.Row{
			Rings:  []orb.Ring{shapefiletest.Square(w.x, w.y, 0.05)},
			Values: []any{w.name, w.pop},
		}
	}
	shapefiletest.WritePolygons(t, dir, "NI_Wards",
		[]shp.Field{shp.StringField("Ward", 40), shp.NumberField("Population", 10)},
		rows, shapefiletest.WGS84PRJ)

	cfg := config.DefaultConfig()
	cfg.Inputs.Counties.Path = filepath.Join(dir, "Counties.shp")
	cfg.Inputs.Wards.Path = filepath.Join(dir, "NI_Wards.shp")
	cfg.Render.Output = filepath.Join(dir, "out", "sample_map.png")
	cfg.Render.PointsOutput = filepath.Join(dir, "out", "points.png")
	cfg.Render.DPI = 40
	cfg.Export.Joined = filepath.Join(dir, "out", "joined.geojson")
	cfg.Export.Aggregates = filepath.Join(dir, "out", "aggregates.csv")
	cfg.Metrics.Textfile = filepath.Join(dir, "out", "wardmap.prom")
	return cfg
}

type fakePublisher struct {
	reports []*publish.Report
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, r *publish.Report) error {
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun(t *testing.T) {
	cfg := fixture(t, niWards)
	var stdout bytes.Buffer
	pub := &fakePublisher{}
	rec := metrics.NewRecorder()

	p, err := New(cfg,
		WithLogger(quietLogger()),
		WithStdout(&stdout),
		WithMetrics(rec),
		WithPublisher(pub),
	)
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Counties.Len())
	assert.Equal(t, 4, res.Wards.Len())
	assert.Equal(t, 3, res.Joined.Len())
	assert.Equal(t, 1, res.Dropped)

	antrim, ok := res.ByCounty.Lookup("ANTRIM")
	require.True(t, ok)
	assert.Equal(t, 7000.0, antrim)
	down, ok := res.ByCounty.Lookup("DOWN")
	require.True(t, ok)
	assert.Equal(t, 2000.0, down)
	ballee, ok := res.ByWard.Lookup("ANTRIM", "Ballee")
	require.True(t, ok)
	assert.Equal(t, 3000.0, ballee)

	out := stdout.String()
	assert.Equal(t, 2, strings.Count(out, "Name: Population, dtype: int64"), out)
	assert.Contains(t, out, "CountyName  Ward")

	for _, path := range []string{cfg.Render.Output, cfg.Render.PointsOutput, cfg.Export.Joined, cfg.Export.Aggregates} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}
	assert.Equal(t, []string{cfg.Export.Joined, cfg.Export.Aggregates}, res.Exports)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "wardmap_join_records 3")
	assert.Contains(t, string(prom), `wardmap_population{county="ANTRIM"} 7000`)

	require.Len(t, pub.reports, 1)
	report := pub.reports[0]
	assert.Equal(t, res.RunID, report.RunID)
	assert.Equal(t, 3, report.Joined)
	assert.Equal(t, []publish.CountyRow{{County: "ANTRIM", Value: 7000}, {County: "DOWN", Value: 2000}}, report.ByCounty)
	assert.Len(t, report.ByWard, 3)
}

func TestRunWardSumsMatchCounties(t *testing.T) {
	cfg := fixture(t, niWards)
	p, err := New(cfg, WithLogger(quietLogger()), WithStdout(io.Discard))
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	for _, row := range res.ByCounty.Rows {
		sum := 0.0
		for _, w := range res.ByWard.Prefix(row.Keys[0]) {
			sum += w.Value
		}
		assert.Equal(t, row.Value, sum, row.Keys[0])
	}
}

func TestRunNoMatches(t *testing.T) {
	cfg := fixture(t, []ward{{"Offshore", -8.5, 53.0, 1000}, {"Inland", -8.0, 53.5, 500}})
	cfg.Export = config.ExportConfig{}
	var stdout bytes.Buffer

	p, err := New(cfg, WithLogger(quietLogger()), WithStdout(&stdout))
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Joined.Len())
	assert.Equal(t, 2, res.Dropped)
	assert.Equal(t, 0, res.ByCounty.Len())
	assert.Equal(t, 0, res.ByWard.Len())
	assert.Equal(t, strings.Repeat("Series([], Name: Population, dtype: int64)\n", 2), stdout.String())

	info, err := os.Stat(cfg.Render.Output)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRunMissingField(t *testing.T) {
	cfg := fixture(t, niWards)
	cfg.Inputs.Wards.ValueField = "Pop2011"

	p, err := New(cfg, WithLogger(quietLogger()), WithStdout(io.Discard))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, shapefile.ErrMissingField)
	assert.True(t, strings.HasPrefix(err.Error(), "load: "), err.Error())
	_, statErr := os.Stat(cfg.Render.Output)
	assert.True(t, os.IsNotExist(statErr), "no map is written after a failed run")
}

func TestRunMissingInput(t *testing.T) {
	cfg := fixture(t, niWards)
	cfg.Inputs.Counties.Path = filepath.Join(t.TempDir(), "Nope.shp")

	rec := metrics.NewRecorder()
	p, err := New(cfg, WithLogger(quietLogger()), WithStdout(io.Discard), WithMetrics(rec))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `wardmap_runs_total{result="error"} 1`)
}

func TestRunCancelled(t *testing.T) {
	cfg := fixture(t, niWards)
	p, err := New(cfg, WithLogger(quietLogger()), WithStdout(io.Discard))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunPublishError(t *testing.T) {
	cfg := fixture(t, niWards)
	boom := errors.New("no responders")
	p, err := New(cfg,
		WithLogger(quietLogger()),
		WithStdout(io.Discard),
		WithMetrics(metrics.NewRecorder()),
		WithPublisher(&fakePublisher{err: boom}),
	)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.HasPrefix(err.Error(), "publish: "), err.Error())

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `wardmap_runs_total{result="error"} 1`)
	assert.NotContains(t, string(prom), `result="success"`)
}

func TestRunWithoutPRJFails(t *testing.T) {
	cfg := fixture(t, niWards)
	require.NoError(t, os.Remove(strings.TrimSuffix(cfg.Inputs.Counties.Path, ".shp")+".prj"))

	p, err := New(cfg, WithLogger(quietLogger()), WithStdout(io.Discard))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, shapefile.ErrUnknownCRS)
	assert.True(t, strings.HasPrefix(err.Error(), "load: "), err.Error())
}

func TestRunDefaultCRSRejectsGridMetres(t *testing.T) {
	dir := t.TempDir()
	// Irish Grid metres with no .prj, read as degrees through default_crs.
	shapefiletest.WritePolygons(t, dir, "Counties",
		[]shp.Field{shp.StringField("CountyName", 20)},
		[]shapefiletest.Row{{Rings: []orb.Ring{shapefiletest.Square(330000, 370000, 40000)}, Values: []any{"ANTRIM"}}},
		"")
	shapefiletest.WritePolygons(t, dir, "NI_Wards",
		[]shp.Field{shp.StringField("Ward", 40), shp.NumberField("Population", 10)},
		[]shapefiletest.Row{{Rings: []orb.Ring{shapefiletest.Square(340000, 380000, 1000)}, Values: []any{"Ballee", 3000}}},
		"")

	cfg := config.DefaultConfig()
	cfg.DefaultCRS = "EPSG:4326"
	cfg.Inputs.Counties.Path = filepath.Join(dir, "Counties.shp")
	cfg.Inputs.Wards.Path = filepath.Join(dir, "NI_Wards.shp")
	cfg.Render.Output = filepath.Join(dir, "sample_map.png")

	var stdout bytes.Buffer
	p, err := New(cfg, WithLogger(quietLogger()), WithStdout(&stdout))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, crs.ErrOutOfRange)
	assert.True(t, strings.HasPrefix(err.Error(), "reproject: "), err.Error())
	assert.Empty(t, stdout.String(), "nothing is aggregated after a failed reprojection")
}

func TestRunMalformedInput(t *testing.T) {
	cfg := fixture(t, niWards)
	info, err := os.Stat(cfg.Inputs.Wards.Path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(cfg.Inputs.Wards.Path, info.Size()-60))

	p, err := New(cfg, WithLogger(quietLogger()), WithStdout(io.Discard))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, shapefile.ErrMalformed)
	_, statErr := os.Stat(cfg.Render.Output)
	assert.True(t, os.IsNotExist(statErr), "no map is written after a failed load")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	cfg := config.DefaultConfig()
	cfg.Join.How = "outer"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestColumn(t *testing.T) {
	joined := &feature.Collection{Fields: []feature.Field{
		{Name: "CountyName"},
		{Name: "Area_left"},
		{Name: "Area_right"},
	}}

	assert.Equal(t, "CountyName", column(joined, "CountyName", "left"))
	assert.Equal(t, "Area_right", column(joined, "Area", "right"))
	assert.Equal(t, "Missing", column(joined, "Missing", "right"))
}

func TestDropped(t *testing.T) {
	joined := &feature.Collection{Features: []feature.Feature{
		{Properties: feature.Properties{"index_right": int64(0)}},
		{Properties: feature.Properties{"index_right": int64(2)}},
		{Properties: feature.Properties{"index_right": int64(2)}},
		{Properties: feature.Properties{"index_right": nil}},
	}}
	assert.Equal(t, 2, dropped(joined, 4, "right"))
}
