package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/concordance/pkg/errors"
)

type stubIngester struct {
	got  *ingestion.IngestRequest
	resp *ingestion.IngestResponse
	err  error
}

func (s *stubIngester) Ingest(_ context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	s.got = req
	return s.resp, s.err
}

func serve(h *Handler, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body)))
	return rec
}

func TestIngestAccepted(t *testing.T) {
	stub := &stubIngester{resp: &ingestion.IngestResponse{DocumentID: "d1", Status: ingestion.StatusPending, ShardID: 2}}
	rec := serve(New(stub), `{"title":"T","body":"some words","annotations":[{"name":"line","start":0,"end":1,"value":3}]}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp ingestion.IngestResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "d1", resp.DocumentID)
	assert.Equal(t, 2, resp.ShardID)
	require.NotNil(t, stub.got)
	assert.Equal(t, []ingestion.Annotation{{Name: "line", Start: 0, End: 1, Value: 3}}, stub.got.Annotations)
}

func TestIngestRejectsBadJSON(t *testing.T) {
	stub := &stubIngester{}
	rec := serve(New(stub), `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, stub.got)
}

func TestIngestReportsValidationFields(t *testing.T) {
	rec := serve(New(&stubIngester{}), `{"title":"","body":"x","annotations":[{"name":"x","start":0,"end":4},{"name":"x","start":1,"end":2}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body.Fields, "title")
	assert.Contains(t, body.Fields, "annotations")
}

func TestIngestMapsErrors(t *testing.T) {
	stub := &stubIngester{err: apperrors.New(apperrors.ErrIdempotencyConflict, http.StatusConflict, "taken")}
	rec := serve(New(stub), `{"title":"T","body":"b"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIngestOnlyAcceptsPost(t *testing.T) {
	mux := http.NewServeMux()
	New(&stubIngester{}).Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestIngestRejectsUnknownFields(t *testing.T) {
	stub := &stubIngester{}
	rec := serve(New(stub), `{"title":"T","body":"b","tags":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "tags")
	assert.Nil(t, stub.got)
}

func TestIngestRejectsOversizedBody(t *testing.T) {
	stub := &stubIngester{}
	rec := serve(New(stub), `{"title":"T","body":"`+strings.Repeat("a", maxRequestBytes)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, stub.got)
}
