// Package analytics records search activity: a collector that ships
// search events to Kafka in batches, and an in-process aggregator that
// serves running statistics over them.
package analytics

import "time"

type Outcome string

const (
	OutcomeHit        Outcome = "hit"
	OutcomeZeroResult Outcome = "zero_result"
	OutcomeInvalid    Outcome = "invalid"
	OutcomeError      Outcome = "error"
)

// SearchEvent describes one search request. Query holds the canonical
// expression when the query parsed, and the raw text otherwise.
type SearchEvent struct {
	Outcome      Outcome   `json:"outcome"`
	Query        string    `json:"query"`
	Reverse      bool      `json:"reverse"`
	TotalHits    int       `json:"total_hits"`
	Returned     int       `json:"returned"`
	ShardsFailed int       `json:"shards_failed"`
	LatencyMs    int64     `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}
