package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/aggregate"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/alert"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/catalog"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/metrics"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/blocktime"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/identity"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/ingest"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/tracing"
	"golang.org/x/sync/singleflight"
)

// RoundResolver turns a program name into its round set.
type RoundResolver interface {
	Programs() []string
	Resolve(ctx context.Context, program string) (*catalog.Resolution, error)
}

// Ingester fetches donations and applications for a round set.
type Ingester interface {
	Fetch(ctx context.Context, rounds []model.Round, dq *model.DataQuality) (*ingest.Batch, error)
}

// TokenNormalizer labels token codes and fills derivable USD amounts.
type TokenNormalizer interface {
	Normalize(ctx context.Context, donations []model.Donation, dq *model.DataQuality) []model.Donation
}

// IdentityResolver maps donor addresses to display identities.
type IdentityResolver interface {
	Resolve(ctx context.Context, donations []model.Donation, dq *model.DataQuality) ([]model.Donation, map[string]model.Identity)
}

// Stages are the components a run flows through, in order.
type Stages struct {
	Rounds     RoundResolver
	Ingest     Ingester
	Tokens     TokenNormalizer
	BlockTimes blocktime.Strategy
	Identities IdentityResolver
}

type Config struct {
	CacheTTL  time.Duration
	Aggregate aggregate.Options
	// QualityAlertRatio is the share of donations carrying data-quality
	// issues above which a DATA_QUALITY alert is sent. Zero disables it.
	QualityAlertRatio  float64
	UnhealthyThreshold int
	Alerter            alert.Alerter
	// RunTimeout bounds a shared computation, which outlives the caller
	// that started it.
	RunTimeout time.Duration
}

// DefaultRunTimeout applies when Config.RunTimeout is zero.
const DefaultRunTimeout = 5 * time.Minute

// Request selects the program and cache generation of a run.
type Request struct {
	Program    string
	Generation int64
}

func (r Request) Key() Key {
	return Key{Program: r.Program, Generation: r.Generation}
}

// Result is a finished run. Donations and Applications are the resolved,
// deduplicated inputs the report was built from.
type Result struct {
	RunID        uuid.UUID             `json:"run_id"`
	Program      string                `json:"program"`
	Generation   int64                 `json:"generation"`
	GeneratedAt  time.Time             `json:"generated_at"`
	Rounds       []model.Round         `json:"rounds"`
	Report       *aggregate.Report     `json:"report"`
	Quality      model.QualitySnapshot `json:"quality"`
	Donations    []model.Donation      `json:"donations"`
	Applications []model.Application   `json:"applications"`
	Identities   []model.Identity      `json:"identities,omitempty"`
	Scores       map[string]float64    `json:"scores,omitempty"`
}

// Approved returns the result's donations to approved projects.
func (r *Result) Approved() []model.Donation {
	return aggregate.FilterApproved(r.Donations, aggregate.ApprovedSet(r.Applications))
}

// Pipeline runs programs through the stages and memoizes results per
// (program, generation). The stages themselves hold no per-run state.
type Pipeline struct {
	cfg    Config
	stages Stages
	cache  ReportCache
	health *HealthRegistry
	group  singleflight.Group
	logger *slog.Logger
	nowFn  func() time.Time
}

// New builds a pipeline. cache may be nil to disable memoization.
func New(cfg Config, stages Stages, cache ReportCache, logger *slog.Logger) *Pipeline {
	if cfg.Alerter == nil {
		cfg.Alerter = &alert.NoopAlerter{}
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	return &Pipeline{
		cfg:    cfg,
		stages: stages,
		cache:  cache,
		health: NewHealthRegistry(cfg.UnhealthyThreshold),
		logger: logger.With("component", "pipeline"),
		nowFn:  time.Now,
	}
}

func (p *Pipeline) Programs() []string {
	return p.stages.Rounds.Programs()
}

func (p *Pipeline) Health() *HealthRegistry {
	return p.health
}

// Current returns the request for program in the current cache window.
func (p *Pipeline) Current(program string) Request {
	return Request{Program: program, Generation: Generation(p.nowFn(), p.cfg.CacheTTL)}
}

// Run returns the cached result for req or computes it. Concurrent runs for
// the same key share one computation, detached from any single caller's
// cancellation and bounded by RunTimeout. A caller whose ctx ends stops
// waiting; the computation continues for the others. Cache failures are
// logged and the run proceeds uncached.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	key := req.Key()
	if res, ok := p.cacheGet(ctx, key); ok {
		return res, nil
	}

	ch := p.group.DoChan(key.String(), func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.RunTimeout)
		defer cancel()

		if res, ok := p.cacheGet(runCtx, key); ok {
			return res, nil
		}
		res, err := p.Compute(runCtx, req)
		if err != nil {
			return nil, err
		}
		if p.cache != nil {
			if err := p.cache.Put(runCtx, key, res); err != nil {
				p.logger.Warn("report cache put failed", "program", req.Program, "error", err)
			}
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			p.logger.Debug("run shared with concurrent request", "program", req.Program)
		}
		return r.Val.(*Result), nil
	}
}

func (p *Pipeline) cacheGet(ctx context.Context, key Key) (*Result, bool) {
	if p.cache == nil {
		return nil, false
	}
	res, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("report cache get failed", "program", key.Program, "error", err)
		return nil, false
	}
	return res, ok && res != nil
}

// Compute runs every stage for req without consulting the cache.
func (p *Pipeline) Compute(ctx context.Context, req Request) (*Result, error) {
	started := p.nowFn()
	runID := uuid.New()
	logger := p.logger.With("program", req.Program, "run_id", runID.String())
	dq := model.NewDataQuality()

	ctx, span := tracing.StartStage(ctx, "run", req.Program)
	res, err := p.compute(ctx, req, dq)
	tracing.End(span, err)

	elapsed := p.nowFn().Sub(started)
	metrics.PipelineDuration.WithLabelValues(req.Program, "total").Observe(elapsed.Seconds())

	var cfgErr *model.ConfigurationError
	if errors.As(err, &cfgErr) {
		metrics.PipelineRunsTotal.WithLabelValues(req.Program, "invalid").Inc()
		return nil, err
	}
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues(req.Program, "error").Inc()
		logger.Error("pipeline run failed", "error", err, "duration_ms", elapsed.Milliseconds())
		p.onFailure(ctx, req.Program, err)
		return nil, err
	}

	res.RunID = runID
	res.Generation = req.Generation
	res.GeneratedAt = p.nowFn().UTC()
	metrics.PipelineRunsTotal.WithLabelValues(req.Program, "success").Inc()
	metrics.PipelineDonations.WithLabelValues(req.Program).Set(float64(len(res.Donations)))
	for issue, n := range res.Quality.Counts {
		metrics.DataQualityIssues.WithLabelValues(req.Program, string(issue)).Add(float64(n))
	}
	logger.Info("pipeline run completed",
		"count", len(res.Donations),
		"rounds", len(res.Rounds),
		"quality_issues", len(res.Quality.Issues()),
		"duration_ms", elapsed.Milliseconds(),
	)
	p.onSuccess(ctx, res, elapsed)
	return res, nil
}

func stage[T any](ctx context.Context, program, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := tracing.StartStage(ctx, name, program)
	started := time.Now()
	v, err := fn(ctx)
	metrics.PipelineDuration.WithLabelValues(program, name).Observe(time.Since(started).Seconds())
	tracing.End(span, err)
	return v, err
}

func (p *Pipeline) compute(ctx context.Context, req Request, dq *model.DataQuality) (*Result, error) {
	program := req.Program

	resolution, err := stage(ctx, program, "resolve", func(ctx context.Context) (*catalog.Resolution, error) {
		return p.stages.Rounds.Resolve(ctx, program)
	})
	if err != nil {
		return nil, err
	}

	ctx = blocktime.WithProgramStart(ctx, blocktime.ProgramStart(resolution.Entries))

	batch, err := stage(ctx, program, "ingest", func(ctx context.Context) (*ingest.Batch, error) {
		return p.stages.Ingest.Fetch(ctx, resolution.Rounds, dq)
	})
	if err != nil {
		return nil, err
	}

	donations, _ := stage(ctx, program, "token", func(ctx context.Context) ([]model.Donation, error) {
		return p.stages.Tokens.Normalize(ctx, batch.Donations, dq), nil
	})

	donations, err = stage(ctx, program, "blocktime", func(ctx context.Context) ([]model.Donation, error) {
		timed, err := p.stages.BlockTimes.Resolve(ctx, donations, dq)
		if err != nil {
			return nil, err
		}
		return blocktime.ApplyRoundStart(timed, blocktime.RoundStarts(resolution.Rounds), dq), nil
	})
	if err != nil {
		return nil, err
	}

	var identities map[string]model.Identity
	donations, _ = stage(ctx, program, "identity", func(ctx context.Context) ([]model.Donation, error) {
		resolved, ids := p.stages.Identities.Resolve(ctx, donations, dq)
		identities = ids
		return identity.Dedup(resolved, dq), nil
	})

	scores := identity.Scores(identities)
	report, _ := stage(ctx, program, "aggregate", func(context.Context) (*aggregate.Report, error) {
		return aggregate.Build(aggregate.Input{
			Program:      program,
			Rounds:       resolution.Rounds,
			Applications: batch.Applications,
			Donations:    donations,
			Scores:       scores,
		}, p.cfg.Aggregate, dq), nil
	})

	return &Result{
		Program:      program,
		Rounds:       resolution.Rounds,
		Report:       report,
		Quality:      dq.Snapshot(),
		Donations:    donations,
		Applications: batch.Applications,
		Identities:   sortedIdentities(identities),
		Scores:       scores,
	}, nil
}

func sortedIdentities(m map[string]model.Identity) []model.Identity {
	out := make([]model.Identity, 0, len(m))
	for _, id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (p *Pipeline) onFailure(ctx context.Context, program string, err error) {
	if !p.health.Get(program).RecordFailure(err) {
		return
	}
	a := alert.Alert{
		Type:    alert.AlertTypeRunFailed,
		Program: program,
		Title:   "Pipeline run failed",
		Message: err.Error(),
		Fields:  map[string]string{},
	}
	var fetchErr *model.FetchError
	if errors.As(err, &fetchErr) {
		a.Fields["source"] = fetchErr.Source
		a.Fields["kind"] = string(fetchErr.Kind)
		a.Fields["chain_id"] = fetchErr.ChainID.String()
		if fetchErr.RoundID != "" {
			a.Fields["round_id"] = fetchErr.RoundID
		}
	}
	p.sendAlert(ctx, a)
}

func (p *Pipeline) onSuccess(ctx context.Context, res *Result, elapsed time.Duration) {
	if p.health.Get(res.Program).RecordSuccess(elapsed) {
		p.sendAlert(ctx, alert.Alert{
			Type:    alert.AlertTypeRecovery,
			Program: res.Program,
			Title:   "Pipeline recovered",
			Message: fmt.Sprintf("run %s completed with %d donations", res.RunID, len(res.Donations)),
		})
	}

	ratio, ok := issueRatio(res)
	if !ok || p.cfg.QualityAlertRatio <= 0 || ratio <= p.cfg.QualityAlertRatio {
		return
	}
	fields := make(map[string]string, len(res.Quality.Counts))
	for issue, n := range res.Quality.Counts {
		fields[string(issue)] = strconv.FormatInt(n, 10)
	}
	p.sendAlert(ctx, alert.Alert{
		Type:    alert.AlertTypeDataQuality,
		Program: res.Program,
		Title:   "Data quality degraded",
		Message: fmt.Sprintf("%.1f%% of %d donations carry data-quality issues", ratio*100, len(res.Donations)),
		Fields:  fields,
	})
}

// issueRatio is the per-donation issue count of a result. Issues counted
// once per chain or registry are included, so the ratio can exceed 1.
func issueRatio(res *Result) (float64, bool) {
	if len(res.Donations) == 0 {
		return 0, false
	}
	var total int64
	for issue, n := range res.Quality.Counts {
		if issue == model.IssueDerivedAmount {
			continue
		}
		total += n
	}
	return float64(total) / float64(len(res.Donations)), true
}

func (p *Pipeline) sendAlert(ctx context.Context, a alert.Alert) {
	if err := p.cfg.Alerter.Send(ctx, a); err != nil {
		p.logger.Warn("alert send failed", "program", a.Program, "type", a.Type, "error", err)
	}
}
