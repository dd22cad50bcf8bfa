package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/aggregate"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

const (
	maxQueryK = 1000
	// lifetimeConcurrency bounds the programs run at once for /v1/lifetime.
	lifetimeConcurrency = 4
)

// Runner produces pipeline results for a program. *pipeline.Pipeline
// satisfies it.
type Runner interface {
	Programs() []string
	Current(program string) pipeline.Request
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// HealthProvider returns per-program health snapshots.
type HealthProvider interface {
	Snapshots() []pipeline.HealthSnapshot
}

// Server serves read-only JSON views over pipeline results.
type Server struct {
	runner  Runner
	health  HealthProvider
	opts    aggregate.Options
	metrics http.Handler
	logger  *slog.Logger
}

// NewServer creates an API server over runner.
func NewServer(runner Runner, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		runner:  runner,
		opts:    aggregate.DefaultOptions(),
		metrics: promhttp.Handler(),
		logger:  logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption configures optional dependencies for the API server.
type ServerOption func(*Server)

// WithHealthProvider sets the source of /healthz snapshots.
func WithHealthProvider(hp HealthProvider) ServerOption {
	return func(s *Server) { s.health = hp }
}

// WithAggregateOptions sets the defaults used when a query omits k, n or
// network filters.
func WithAggregateOptions(opts aggregate.Options) ServerOption {
	return func(s *Server) { s.opts = opts }
}

// WithMetricsHandler replaces the promhttp default handler on /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/programs", s.instrument("programs", s.handlePrograms))
	mux.HandleFunc("GET /v1/lifetime", s.instrument("lifetime", s.handleLifetime))
	mux.HandleFunc("GET /v1/programs/{program}/report", s.instrument("report", s.handleReport))
	mux.HandleFunc("GET /v1/programs/{program}/rounds", s.instrument("rounds", s.handleRounds))
	mux.HandleFunc("GET /v1/programs/{program}/projects", s.instrument("projects", s.handleProjects))
	mux.HandleFunc("GET /v1/programs/{program}/top", s.instrument("top", s.handleTop))
	mux.HandleFunc("GET /v1/programs/{program}/network", s.instrument("network", s.handleNetwork))
	mux.HandleFunc("GET /v1/programs/{program}/leaderboard", s.instrument("leaderboard", s.handleLeaderboard))
	mux.HandleFunc("GET /v1/programs/{program}/donors", s.instrument("donors", s.handleDonors))
	mux.HandleFunc("GET /v1/programs/{program}/tokens", s.instrument("tokens", s.handleTokens))
	mux.HandleFunc("GET /v1/programs/{program}/series", s.instrument("series", s.handleSeries))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics)
	return mux
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string        `json:"error"`
	Source  string        `json:"source,omitempty"`
	RoundID string        `json:"round_id,omitempty"`
	ChainID model.ChainID `json:"chain_id,omitempty"`
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeRunError maps a pipeline error to a status code. Upstream failures
// name the failing source and round so callers can tell which pair broke.
func (s *Server) writeRunError(w http.ResponseWriter, program string, err error) {
	var fe *model.FetchError
	var ce *model.ConfigurationError
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:   "upstream fetch failed",
			Source:  fe.Source,
			RoundID: fe.RoundID,
			ChainID: fe.ChainID,
		})
	case errors.Is(err, model.ErrNotFound), errors.As(err, &ce):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "program not found"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "request cancelled"})
	default:
		s.logger.Error("pipeline run failed", "program", program, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// result runs the program named in the path. It writes the error response
// and returns nil on failure.
func (s *Server) result(w http.ResponseWriter, r *http.Request) *pipeline.Result {
	program := r.PathValue("program")
	res, err := s.runner.Run(r.Context(), s.runner.Current(program))
	if err != nil {
		s.writeRunError(w, program, err)
		return nil
	}
	return res
}

// positiveInt parses an optional positive integer query value capped at
// maxQueryK.
func positiveInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxQueryK {
		return 0, false
	}
	return n, true
}

// roundFilter parses the optional round_id and chain_id query values. They
// must be given together.
func roundFilter(r *http.Request) (aggregate.RoundFilter, bool) {
	q := r.URL.Query()
	f := aggregate.RoundFilter{RoundID: q.Get("round_id"), ChainID: model.ChainID(q.Get("chain_id"))}
	if (f.RoundID == "") != (f.ChainID == "") {
		return aggregate.RoundFilter{}, false
	}
	return f, true
}

// sliced runs the program and checks that f names one of its rounds. It
// writes the error response and returns nil on failure.
func (s *Server) sliced(w http.ResponseWriter, r *http.Request, f aggregate.RoundFilter) *pipeline.Result {
	res := s.result(w, r)
	if res == nil {
		return nil
	}
	if !f.Known(res.Rounds) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "round not found", RoundID: f.RoundID, ChainID: f.ChainID})
		return nil
	}
	return res
}

const roundFilterMsg = "round_id and chain_id must be given together"

func (s *Server) handlePrograms(w http.ResponseWriter, r *http.Request) {
	programs := s.runner.Programs()
	if programs == nil {
		programs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"programs": programs})
}

// handleLifetime runs every catalogued program and totals them. Any failing
// program fails the request so a partial total is never shown.
func (s *Server) handleLifetime(w http.ResponseWriter, r *http.Request) {
	programs := s.runner.Programs()
	rollups := make([]aggregate.ProgramRollup, len(programs))

	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(lifetimeConcurrency)
	for i, program := range programs {
		g.Go(func() error {
			res, err := s.runner.Run(gctx, s.runner.Current(program))
			if err != nil {
				return &programError{program: program, err: err}
			}
			rollups[i] = aggregate.ProgramRollup{Summary: res.Report.Summary, Rounds: res.Rounds}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var pe *programError
		if errors.As(err, &pe) {
			s.writeRunError(w, pe.program, pe.err)
			return
		}
		s.writeRunError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, aggregate.BuildLifetime(rollups))
}

type programError struct {
	program string
	err     error
}

func (e *programError) Error() string { return e.program + ": " + e.err.Error() }
func (e *programError) Unwrap() error { return e.err }

type reportResponse struct {
	RunID       string                `json:"run_id"`
	Program     string                `json:"program"`
	Generation  int64                 `json:"generation"`
	GeneratedAt time.Time             `json:"generated_at"`
	Quality     model.QualitySnapshot `json:"quality"`
	Report      *aggregate.Report     `json:"report"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	res := s.result(w, r)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		RunID:       res.RunID.String(),
		Program:     res.Program,
		Generation:  res.Generation,
		GeneratedAt: res.GeneratedAt.UTC(),
		Quality:     res.Quality,
		Report:      res.Report,
	})
}

func (s *Server) handleRounds(w http.ResponseWriter, r *http.Request) {
	f, ok := roundFilter(r)
	if !ok {
		badRequest(w, roundFilterMsg)
		return
	}
	if res := s.sliced(w, r, f); res != nil {
		writeJSON(w, http.StatusOK, aggregate.FilterRoundSummaries(res.Report.Rounds, f))
	}
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	f, ok := roundFilter(r)
	if !ok {
		badRequest(w, roundFilterMsg)
		return
	}
	if res := s.sliced(w, r, f); res != nil {
		writeJSON(w, http.StatusOK, aggregate.FilterRoundProjects(res.Report.Projects, f))
	}
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	f, ok := roundFilter(r)
	if !ok {
		badRequest(w, roundFilterMsg)
		return
	}
	res := s.sliced(w, r, f)
	if res == nil {
		return
	}
	if f.Empty() {
		writeJSON(w, http.StatusOK, res.Report.Tokens)
		return
	}
	writeJSON(w, http.StatusOK, aggregate.TokenDistribution(aggregate.FilterRoundDonations(res.Approved(), f)))
}

type topResponse struct {
	Funded   []aggregate.ProjectSummary `json:"funded"`
	Donors   []aggregate.ProjectSummary `json:"donors"`
	Trending []aggregate.ProjectSummary `json:"trending"`
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	k, ok := positiveInt(r, "k", s.opts.TopK)
	if !ok {
		badRequest(w, "k must be a positive integer")
		return
	}
	f, ok := roundFilter(r)
	if !ok {
		badRequest(w, roundFilterMsg)
		return
	}
	res := s.sliced(w, r, f)
	if res == nil {
		return
	}
	projects := aggregate.FilterRoundProjects(res.Report.Projects, f)
	writeJSON(w, http.StatusOK, topResponse{
		Funded:   aggregate.TopFunded(projects, k),
		Donors:   aggregate.TopByDonors(projects, k),
		Trending: aggregate.TopTrending(projects, k),
	})
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	opts := s.opts.Edges
	q := r.URL.Query()
	if raw := q.Get("min_amount"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			badRequest(w, "min_amount must be a non-negative number")
			return
		}
		opts.MinAmountUSD = decimal.NewNullDecimal(v)
	}
	if raw := q.Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(w, "min_score must be a number")
			return
		}
		opts.MinDonorScore = &v
	}
	f, ok := roundFilter(r)
	if !ok {
		badRequest(w, roundFilterMsg)
		return
	}
	res := s.sliced(w, r, f)
	if res == nil {
		return
	}
	opts.Scores = res.Scores
	donations := aggregate.FilterRoundDonations(res.Approved(), f)
	writeJSON(w, http.StatusOK, aggregate.DonorProjectEdges(donations, aggregate.Titles(res.Applications), opts))
}

type leaderboardResponse struct {
	MostGenerous []aggregate.DonorStat `json:"most_generous"`
	MostLoving   []aggregate.DonorStat `json:"most_loving"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	n, ok := positiveInt(r, "n", s.opts.LeaderboardN)
	if !ok {
		badRequest(w, "n must be a positive integer")
		return
	}
	f, ok := roundFilter(r)
	if !ok {
		badRequest(w, roundFilterMsg)
		return
	}
	res := s.sliced(w, r, f)
	if res == nil {
		return
	}
	stats := aggregate.DonorStats(aggregate.FilterRoundDonations(res.Approved(), f))
	writeJSON(w, http.StatusOK, leaderboardResponse{
		MostGenerous: aggregate.MostGenerous(stats, n),
		MostLoving:   aggregate.MostLoving(stats, n),
	})
}

func (s *Server) handleDonors(w http.ResponseWriter, r *http.Request) {
	f := aggregate.DonorFilter{
		ProjectID:    r.URL.Query().Get("project_id"),
		GrantAddress: r.URL.Query().Get("grant_address"),
	}
	if f.Empty() {
		badRequest(w, "project_id or grant_address required")
		return
	}
	res := s.result(w, r)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, aggregate.DonorsFor(res.Approved(), f))
}

type seriesResponse struct {
	By         aggregate.GroupBy  `json:"by"`
	Hourly     []aggregate.Series `json:"hourly"`
	Cumulative []aggregate.Series `json:"cumulative"`
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	by, ok := aggregate.ParseGroupBy(r.URL.Query().Get("by"))
	if !ok {
		badRequest(w, "by must be one of round, token, program, project")
		return
	}
	f, ok := roundFilter(r)
	if !ok {
		badRequest(w, roundFilterMsg)
		return
	}
	res := s.sliced(w, r, f)
	if res == nil {
		return
	}
	hourly := aggregate.HourlySeries(aggregate.FilterRoundDonations(res.Approved(), f), by)
	writeJSON(w, http.StatusOK, seriesResponse{
		By:         by,
		Hourly:     hourly,
		Cumulative: aggregate.CumulativeAll(hourly),
	})
}

type healthResponse struct {
	Status   string                    `json:"status"`
	Programs []pipeline.HealthSnapshot `json:"programs"`
}

// handleHealth reports 503 while any program is unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Programs: []pipeline.HealthSnapshot{}}
	if s.health != nil {
		resp.Programs = s.health.Snapshots()
	}
	status := http.StatusOK
	for _, snap := range resp.Programs {
		if snap.Status == string(pipeline.HealthStatusUnhealthy) {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, status, resp)
}
