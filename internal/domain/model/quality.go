package model

import (
	"sort"
	"sync"
)

// QualityIssue is a non-fatal data problem that is counted, never thrown.
type QualityIssue string

const (
	IssueNullAmount             QualityIssue = "null_amount"
	IssueNegativeAmount         QualityIssue = "negative_amount"
	IssueUnknownToken           QualityIssue = "unknown_token"
	IssueTokenRegistryDown      QualityIssue = "token_registry_unavailable"
	IssueDerivedAmount          QualityIssue = "derived_amount"
	IssueMissingTimestamp       QualityIssue = "missing_timestamp"
	IssuePreRoundTimestamp      QualityIssue = "pre_round_timestamp"
	IssueUninterpolableChain    QualityIssue = "uninterpolable_chain"
	IssueDuplicateRow           QualityIssue = "duplicate_row"
	IssueIdentityRegistryDown   QualityIssue = "identity_registry_unavailable"
	IssueSkippedApplication     QualityIssue = "skipped_application"
	IssueDonationWithoutProject QualityIssue = "donation_without_project"
)

// QualityNote adds context to an issue that concerns a specific chain or round.
type QualityNote struct {
	Issue   QualityIssue `json:"issue"`
	ChainID ChainID      `json:"chain_id,omitempty"`
	RoundID string       `json:"round_id,omitempty"`
	Detail  string       `json:"detail,omitempty"`
}

const maxQualityNotes = 200

// DataQuality accumulates warnings alongside a successful result.
// It is safe for concurrent use.
type DataQuality struct {
	mu     sync.Mutex
	counts map[QualityIssue]int64
	notes  []QualityNote
}

func NewDataQuality() *DataQuality {
	return &DataQuality{counts: make(map[QualityIssue]int64)}
}

// Add increments the issue count by n. A nil receiver discards the update.
func (q *DataQuality) Add(issue QualityIssue, n int64) {
	if q == nil || n <= 0 {
		return
	}
	q.mu.Lock()
	q.counts[issue] += n
	q.mu.Unlock()
}

// Note records an issue with context and counts it once.
func (q *DataQuality) Note(note QualityNote) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.counts[note.Issue]++
	if len(q.notes) < maxQualityNotes {
		q.notes = append(q.notes, note)
	}
}

func (q *DataQuality) Count(issue QualityIssue) int64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[issue]
}

// Total is the sum of all issue counts.
func (q *DataQuality) Total() int64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	var total int64
	for _, n := range q.counts {
		total += n
	}
	return total
}

// Snapshot returns an immutable copy suitable for serialization.
func (q *DataQuality) Snapshot() QualitySnapshot {
	snap := QualitySnapshot{Counts: map[QualityIssue]int64{}}
	if q == nil {
		return snap
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for k, v := range q.counts {
		snap.Counts[k] = v
	}
	snap.Notes = append([]QualityNote(nil), q.notes...)
	return snap
}

// QualitySnapshot is the serialized form of DataQuality.
type QualitySnapshot struct {
	Counts map[QualityIssue]int64 `json:"counts"`
	Notes  []QualityNote          `json:"notes,omitempty"`
}

// Issues returns the issues with a non-zero count in name order.
func (s QualitySnapshot) Issues() []QualityIssue {
	out := make([]QualityIssue, 0, len(s.Counts))
	for k, v := range s.Counts {
		if v > 0 {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
