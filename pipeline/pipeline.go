// Package pipeline runs the load, reproject, join, aggregate and render
// stages in order and hands the results to the optional exporters,
// metrics and publisher.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/wardmap/aggregate"
	"github.com/c360studio/wardmap/config"
	"github.com/c360studio/wardmap/crs"
	"github.com/c360studio/wardmap/export"
	"github.com/c360studio/wardmap/feature"
	"github.com/c360studio/wardmap/metrics"
	"github.com/c360studio/wardmap/publish"
	"github.com/c360studio/wardmap/render"
	"github.com/c360studio/wardmap/shapefile"
	"github.com/c360studio/wardmap/spatial"
)

// Stage names used in logs and metrics.
const (
	StageLoad      = "load"
	StageReproject = "reproject"
	StagePoints    = "points"
	StageJoin      = "join"
	StageAggregate = "aggregate"
	StageRender    = "render"
	StageExport    = "export"
	StagePublish   = "publish"
)

// Result is what one run produced. Counties and Wards are the reprojected
// inputs. Dropped counts wards whose point fell inside no county.
type Result struct {
	RunID    string
	CRS      crs.CRS
	Counties *feature.Collection
	Wards    *feature.Collection
	Joined   *feature.Collection
	ByCounty *aggregate.Series
	ByWard   *aggregate.Series
	Dropped  int
	Output   string
	Exports  []string
	Duration time.Duration
}

// Pipeline holds a validated configuration and its collaborators.
type Pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	stdout    io.Writer
	metrics   *metrics.Recorder
	publisher publish.Publisher
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithStdout sets where the aggregates are printed. The default is os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(p *Pipeline) {
		if w != nil {
			p.stdout = w
		}
	}
}

// WithMetrics records each run in r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = r }
}

// WithPublisher publishes a report after each successful run.
func WithPublisher(pub publish.Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// New validates cfg and returns a Pipeline.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	p := &Pipeline{
		cfg:    cfg,
		logger: slog.Default(),
		stdout: os.Stdout,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the configuration the pipeline runs with.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// Run executes every stage once. The context is checked between stages.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := p.now()
	res := &Result{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", res.RunID)
	logger.Info("Run started")

	err := p.run(ctx, logger, res)
	if err == nil && p.publisher != nil {
		err = p.stage(ctx, logger, StagePublish, func() error {
			return p.publisher.Publish(ctx, report(res, start))
		})
	}
	res.Duration = p.now().Sub(start)
	p.metrics.RunFinished(err)

	if path := p.cfg.Metrics.Textfile; path != "" {
		if werr := p.metrics.WriteTextfile(path); werr != nil {
			logger.Warn("Failed to write metrics textfile", "path", path, "error", werr)
		} else {
			logger.Debug("Wrote metrics textfile", "path", path)
		}
	}
	if err != nil {
		logger.Error("Run failed", "error", err, "duration", res.Duration)
		return nil, err
	}

	logger.Info("Run finished",
		"joined", res.Joined.Len(),
		"dropped", res.Dropped,
		"output", res.Output,
		"duration", res.Duration)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, res *Result) error {
	cfg := p.cfg
	target, err := crs.Parse(cfg.TargetCRS)
	if err != nil {
		return fmt.Errorf("target crs: %w", err)
	}
	res.CRS = target

	var counties, wards *feature.Collection
	if err := p.stage(ctx, logger, StageLoad, func() error {
		if counties, err = p.load("counties", cfg.Inputs.Counties); err != nil {
			return err
		}
		if err := shapefile.RequireFields(counties, cfg.Inputs.Counties.NameField); err != nil {
			return err
		}
		if wards, err = p.load("wards", cfg.Inputs.Wards); err != nil {
			return err
		}
		return shapefile.RequireFields(wards, cfg.Inputs.Wards.NameField, cfg.Inputs.Wards.ValueField)
	}); err != nil {
		return err
	}
	p.metrics.FeaturesLoaded("counties", counties.Len())
	p.metrics.FeaturesLoaded("wards", wards.Len())
	logger.Info("Loaded inputs", "counties", counties.Len(), "wards", wards.Len())

	if err := p.stage(ctx, logger, StageReproject, func() error {
		if counties, err = counties.ToCRS(target); err != nil {
			return fmt.Errorf("counties: %w", err)
		}
		if wards, err = wards.ToCRS(target); err != nil {
			return fmt.Errorf("wards: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}
	res.Counties, res.Wards = counties, wards

	var points *feature.Collection
	if err := p.stage(ctx, logger, StagePoints, func() error {
		points = spatial.WithRepresentativePoints(wards)
		return nil
	}); err != nil {
		return err
	}

	joinOpts := cfg.JoinOptions()
	if err := p.stage(ctx, logger, StageJoin, func() error {
		res.Joined, err = spatial.Join(counties, points, joinOpts)
		return err
	}); err != nil {
		return err
	}
	res.Dropped = dropped(res.Joined, points.Len(), joinOpts.RSuffix)
	p.metrics.JoinResult(res.Joined.Len(), res.Dropped)
	if res.Dropped > 0 {
		logger.Debug("Wards outside every county", "count", res.Dropped)
	}

	if err := p.stage(ctx, logger, StageAggregate, func() error {
		county := column(res.Joined, cfg.Inputs.Counties.NameField, joinOpts.LSuffix)
		ward := column(res.Joined, cfg.Inputs.Wards.NameField, joinOpts.RSuffix)
		value := column(res.Joined, cfg.Inputs.Wards.ValueField, joinOpts.RSuffix)

		if res.ByCounty, err = aggregate.GroupSum(res.Joined, []string{county}, value); err != nil {
			return err
		}
		if res.ByWard, err = aggregate.GroupSum(res.Joined, []string{county, ward}, value); err != nil {
			return err
		}
		if err := res.ByCounty.Format(p.stdout); err != nil {
			return err
		}
		return res.ByWard.Format(p.stdout)
	}); err != nil {
		return err
	}
	p.metrics.Population(res.ByCounty)

	opts := cfg.Render.Options()
	if err := p.stage(ctx, logger, StageRender, func() error {
		m := render.Map{
			Choropleth: wards,
			Column:     cfg.Inputs.Wards.ValueField,
			Boundaries: counties,
		}
		if err := render.WriteFile(cfg.Render.Output, m, opts); err != nil {
			return err
		}
		res.Output = cfg.Render.Output
		if cfg.Render.PointsOutput != "" {
			if err := render.WritePointsFile(cfg.Render.PointsOutput, counties, points, opts); err != nil {
				return fmt.Errorf("points map: %w", err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	logger.Info("Wrote map", "path", res.Output)

	return p.stage(ctx, logger, StageExport, func() error {
		if path := cfg.Export.Joined; path != "" {
			if err := export.WriteJoined(path, res.Joined); err != nil {
				return err
			}
			res.Exports = append(res.Exports, path)
		}
		if path := cfg.Export.Aggregates; path != "" {
			if err := export.WriteAggregates(path, res.ByCounty, res.ByWard); err != nil {
				return err
			}
			res.Exports = append(res.Exports, path)
		}
		return nil
	})
}

// stage runs fn, timing it and wrapping its error with the stage name.
func (p *Pipeline) stage(ctx context.Context, logger *slog.Logger, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	p.metrics.ObserveStage(name, elapsed)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	logger.Debug("Stage finished", "stage", name, "duration", elapsed)
	return nil
}

func (p *Pipeline) load(name string, layer config.LayerConfig) (*feature.Collection, error) {
	opts := shapefile.Options{Name: name}
	if layer.CRS != "" {
		c, err := crs.Parse(layer.CRS)
		if err != nil {
			return nil, fmt.Errorf("%s crs: %w", name, err)
		}
		opts.CRS = c
	}
	if p.cfg.DefaultCRS != "" {
		c, err := crs.Parse(p.cfg.DefaultCRS)
		if err != nil {
			return nil, fmt.Errorf("default crs: %w", err)
		}
		opts.DefaultCRS = c
	}
	c, err := shapefile.Open(layer.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}

// column returns name as it appears in the joined table, which carries a
// suffix when both sides had the column.
func column(joined *feature.Collection, name, suffix string) string {
	if _, ok := joined.Field(name); ok {
		return name
	}
	if suffixed := name + "_" + suffix; suffixed != name {
		if _, ok := joined.Field(suffixed); ok {
			return suffixed
		}
	}
	return name
}

// dropped counts right-hand rows that no joined row refers to.
func dropped(joined *feature.Collection, total int, rsuffix string) int {
	col := "index_" + rsuffix
	seen := make(map[int64]bool, total)
	for _, f := range joined.Features {
		if i, ok := f.Properties[col].(int64); ok {
			seen[i] = true
		}
	}
	return total - len(seen)
}

func report(res *Result, start time.Time) *publish.Report {
	r := &publish.Report{
		RunID:       res.RunID,
		GeneratedAt: start.UTC(),
		Counties:    res.Counties.Len(),
		Wards:       res.Wards.Len(),
		Joined:      res.Joined.Len(),
		Dropped:     res.Dropped,
		Output:      res.Output,
		Exports:     res.Exports,
	}
	if res.CRS != nil {
		r.CRS = res.CRS.Name()
	}
	r.Rows(res.ByCounty, res.ByWard)
	return r
}
