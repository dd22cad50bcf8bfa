package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/aggregate"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/metrics"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline"
)

// Object names written under <prefix>/<program>/<generation>/.
const (
	RoundsObject      = "rounds.csv"
	ProjectsObject    = "projects.csv"
	TokensObject      = "tokens.csv"
	LeaderboardObject = "leaderboard.csv"
	EdgesObject       = "edges.csv"
	ReportObject      = "report.json"
	ManifestObject    = "manifest.json"
)

// Manifest lists what one export wrote. It is written last, so its presence
// marks a complete export.
type Manifest struct {
	RunID       uuid.UUID `json:"run_id"`
	Program     string    `json:"program"`
	Generation  int64     `json:"generation"`
	GeneratedAt time.Time `json:"generated_at"`
	ExportedAt  time.Time `json:"exported_at"`
	Objects     []string  `json:"objects"`
}

// Exporter writes report tables to a blob bucket.
type Exporter struct {
	bucket *blob.Bucket
	prefix string
	logger *slog.Logger
	nowFn  func() time.Time
}

// Open opens the bucket at url (file://, gs:// or s3://).
func Open(ctx context.Context, url, prefix string, logger *slog.Logger) (*Exporter, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open export bucket %s: %w", url, err)
	}
	return New(bucket, prefix, logger), nil
}

func New(bucket *blob.Bucket, prefix string, logger *slog.Logger) *Exporter {
	return &Exporter{
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("component", "export"),
		nowFn:  time.Now,
	}
}

// Close releases the bucket connection.
func (e *Exporter) Close() error {
	return e.bucket.Close()
}

// Dir returns the key prefix for a program generation.
func (e *Exporter) Dir(program string, generation int64) string {
	return path.Join(e.prefix, program, strconv.FormatInt(generation, 10))
}

type reportDocument struct {
	RunID       uuid.UUID             `json:"run_id"`
	Program     string                `json:"program"`
	Generation  int64                 `json:"generation"`
	GeneratedAt time.Time             `json:"generated_at"`
	Quality     model.QualitySnapshot `json:"quality"`
	Report      *aggregate.Report     `json:"report"`
}

// Export writes the round, project, token, leaderboard and edge tables of
// res plus the JSON report and a manifest.
func (e *Exporter) Export(ctx context.Context, res *pipeline.Result) (*Manifest, error) {
	dir := e.Dir(res.Program, res.Generation)
	rep := res.Report

	objects := []struct {
		name        string
		contentType string
		encode      func() ([]byte, error)
	}{
		{RoundsObject, "text/csv", func() ([]byte, error) { return encodeCSV(roundRows(rep.Rounds)) }},
		{ProjectsObject, "text/csv", func() ([]byte, error) { return encodeCSV(projectRows(rep.Projects)) }},
		{TokensObject, "text/csv", func() ([]byte, error) { return encodeCSV(tokenRows(rep.Tokens)) }},
		{LeaderboardObject, "text/csv", func() ([]byte, error) {
			return encodeCSV(leaderboardRows(rep.MostGenerous, rep.MostLoving))
		}},
		{EdgesObject, "text/csv", func() ([]byte, error) { return encodeCSV(edgeRows(rep.Network.Edges)) }},
		{ReportObject, "application/json", func() ([]byte, error) {
			return json.Marshal(reportDocument{
				RunID:       res.RunID,
				Program:     res.Program,
				Generation:  res.Generation,
				GeneratedAt: res.GeneratedAt,
				Quality:     res.Quality,
				Report:      rep,
			})
		}},
	}

	manifest := &Manifest{
		RunID:       res.RunID,
		Program:     res.Program,
		Generation:  res.Generation,
		GeneratedAt: res.GeneratedAt,
	}
	for _, obj := range objects {
		data, err := obj.encode()
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", obj.name, err)
		}
		key := path.Join(dir, obj.name)
		if err := e.write(ctx, res.Program, key, obj.contentType, data); err != nil {
			return nil, err
		}
		manifest.Objects = append(manifest.Objects, key)
	}

	manifest.ExportedAt = e.nowFn().UTC()
	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := e.write(ctx, res.Program, path.Join(dir, ManifestObject), "application/json", data); err != nil {
		return nil, err
	}

	e.logger.Info("export written",
		"program", res.Program,
		"generation", res.Generation,
		"run_id", res.RunID,
		"count", len(manifest.Objects)+1,
	)
	return manifest, nil
}

func (e *Exporter) write(ctx context.Context, program, key, contentType string, data []byte) error {
	w, err := e.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	metrics.ExportObjectsWritten.WithLabelValues(program).Inc()
	return nil
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
