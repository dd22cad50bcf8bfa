package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"gopkg.in/yaml.v3"
)

var requiredColumns = []string{"program", "round_type", "round_number", "round_id", "chain_id", "round_name"}

// Catalog is the static program/round table.
type Catalog struct {
	entries []model.CatalogEntry
}

func New(entries []model.CatalogEntry) *Catalog {
	return &Catalog{entries: append([]model.CatalogEntry(nil), entries...)}
}

// LoadFile reads a catalog from a .csv, .yaml or .yml file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.ConfigurationError{Field: "catalog", Err: err}
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(f)
	default:
		return ParseCSV(f)
	}
}

// ParseCSV reads an all_rounds style CSV with a header row. Rows with an
// empty program are skipped.
func ParseCSV(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &model.ConfigurationError{Field: "catalog", Err: errors.New("empty catalog")}
	}
	if err != nil {
		return nil, &model.ConfigurationError{Field: "catalog", Err: fmt.Errorf("read header: %w", err)}
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, &model.ConfigurationError{Field: "catalog", Err: fmt.Errorf("missing column %q", c)}
		}
	}

	var entries []model.CatalogEntry
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &model.ConfigurationError{Field: "catalog", Err: fmt.Errorf("line %d: %w", line, err)}
		}
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		row := rawEntry{
			Program:            get("program"),
			RoundType:          get("round_type"),
			RoundNumber:        get("round_number"),
			RoundID:            get("round_id"),
			ChainID:            get("chain_id"),
			RoundName:          get("round_name"),
			StartingTime:       get("starting_time"),
			DonationsStartTime: get("donations_start_time"),
			DonationsEndTime:   get("donations_end_time"),
			MatchAmountUSD:     get("match_amount_in_usd"),
			AmountUSD:          get("amountUSD"),
			UniqueContributors: get("uniqueContributors"),
		}
		if row.Program == "" {
			continue
		}
		entry, err := row.entry()
		if err != nil {
			return nil, &model.ConfigurationError{Field: "catalog", Err: fmt.Errorf("line %d: %w", line, err)}
		}
		entries = append(entries, entry)
	}
	return New(entries), nil
}

// ParseYAML reads a catalog expressed as a YAML list with the CSV column
// names as keys.
func ParseYAML(r io.Reader) (*Catalog, error) {
	var rows []rawEntry
	if err := yaml.NewDecoder(r).Decode(&rows); err != nil && !errors.Is(err, io.EOF) {
		return nil, &model.ConfigurationError{Field: "catalog", Err: fmt.Errorf("decode yaml: %w", err)}
	}
	entries := make([]model.CatalogEntry, 0, len(rows))
	for i, row := range rows {
		if row.Program == "" {
			continue
		}
		entry, err := row.entry()
		if err != nil {
			return nil, &model.ConfigurationError{Field: "catalog", Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		entries = append(entries, entry)
	}
	return New(entries), nil
}

func (c *Catalog) Entries() []model.CatalogEntry {
	return append([]model.CatalogEntry(nil), c.entries...)
}

// Programs lists the distinct program names in first-seen order.
func (c *Catalog) Programs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range c.entries {
		if _, ok := seen[e.Program]; ok {
			continue
		}
		seen[e.Program] = struct{}{}
		out = append(out, e.Program)
	}
	return out
}

// Program returns the entries of one program in catalog order.
func (c *Catalog) Program(program string) []model.CatalogEntry {
	var out []model.CatalogEntry
	for _, e := range c.entries {
		if e.Program == program {
			out = append(out, e)
		}
	}
	return out
}

type rawEntry struct {
	Program            string `yaml:"program"`
	RoundType          string `yaml:"round_type"`
	RoundNumber        string `yaml:"round_number"`
	RoundID            string `yaml:"round_id"`
	ChainID            string `yaml:"chain_id"`
	RoundName          string `yaml:"round_name"`
	StartingTime       string `yaml:"starting_time"`
	DonationsStartTime string `yaml:"donations_start_time"`
	DonationsEndTime   string `yaml:"donations_end_time"`
	MatchAmountUSD     string `yaml:"match_amount_in_usd"`
	AmountUSD          string `yaml:"amountUSD"`
	UniqueContributors string `yaml:"uniqueContributors"`
}

func (r rawEntry) entry() (model.CatalogEntry, error) {
	if r.RoundID == "" || r.ChainID == "" {
		return model.CatalogEntry{}, errors.New("round_id and chain_id are required")
	}
	e := model.CatalogEntry{
		Program:   r.Program,
		RoundType: model.RoundType(strings.ToLower(r.RoundType)),
		RoundID:   strings.ToLower(r.RoundID),
		ChainID:   model.ChainID(normalizeInt(r.ChainID)),
		RoundName: r.RoundName,
	}

	var err error
	if e.RoundNumber, err = parseInt(r.RoundNumber); err != nil {
		return e, fmt.Errorf("round_number: %w", err)
	}
	if e.StartingTime, err = parseTime(r.StartingTime); err != nil {
		return e, fmt.Errorf("starting_time: %w", err)
	}
	if e.DonationsStartTime, err = parseTime(r.DonationsStartTime); err != nil {
		return e, fmt.Errorf("donations_start_time: %w", err)
	}
	if e.DonationsEndTime, err = parseTime(r.DonationsEndTime); err != nil {
		return e, fmt.Errorf("donations_end_time: %w", err)
	}
	if e.MatchAmountUSD, err = parseDecimal(r.MatchAmountUSD); err != nil {
		return e, fmt.Errorf("match_amount_in_usd: %w", err)
	}
	if e.AmountUSD, err = parseDecimal(r.AmountUSD); err != nil {
		return e, fmt.Errorf("amountUSD: %w", err)
	}
	contributors, err := parseInt(r.UniqueContributors)
	if err != nil {
		return e, fmt.Errorf("uniqueContributors: %w", err)
	}
	e.UniqueContributors = int64(contributors)
	return e, nil
}

// normalizeInt turns float-formatted integers such as "10.0" into "10".
func normalizeInt(v string) string {
	v = strings.TrimSpace(v)
	if whole, frac, ok := strings.Cut(v, "."); ok && strings.Trim(frac, "0") == "" {
		return whole
	}
	return v
}

func parseInt(v string) (int, error) {
	v = normalizeInt(v)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func parseDecimal(v string) (decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime accepts the layouts seen in catalog exports. Times without a
// zone are UTC.
func parseTime(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			utc := ts.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("unrecognised time %q", v)
}

// sortRounds orders rounds by round type then round name. The sort is
// stable so equal keys keep catalog order.
func sortRounds(rounds []model.Round) {
	sort.SliceStable(rounds, func(i, j int) bool {
		if rounds[i].RoundType != rounds[j].RoundType {
			return rounds[i].RoundType < rounds[j].RoundType
		}
		return rounds[i].RoundName < rounds[j].RoundName
	})
}
