// Package ingestion defines the request/response types and Kafka event schemas
// used by the document ingestion pipeline.
package ingestion

import "time"

// Annotation marks a token range of the document with a name and an
// optional value. Start and End are token offsets within the document and
// are checked against its length when it is indexed.
type Annotation struct {
	Name  string  `json:"name"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Value float64 `json:"value,omitempty"`
}

// IngestRequest is the JSON body accepted by the ingestion HTTP endpoint.
type IngestRequest struct {
	Title          string       `json:"title"`
	Body           string       `json:"body"`
	Annotations    []Annotation `json:"annotations,omitempty"`
	IdempotencyKey string       `json:"idempotency_key"`
}

// IngestResponse is returned to the caller after a document is accepted.
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	ShardID    int    `json:"shard_id"`
}

// IngestEvent is the Kafka message payload produced after a document is
// persisted and ready for indexing.
type IngestEvent struct {
	DocumentID  string       `json:"document_id"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	Annotations []Annotation `json:"annotations,omitempty"`
	ShardID     int          `json:"shard_id"`
	IngestedAt  time.Time    `json:"ingested_at"`
}

// Document statuses recorded in the registry.
const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
	StatusFailed  = "FAILED"
)
