package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"ytrag/internal/domain"
	"ytrag/internal/jobs"
	"ytrag/internal/server"
)

type fakeSearch struct {
	results []domain.SearchResult
	err     error
	gotK    int
}

func (f *fakeSearch) Search(_ context.Context, _ string, k int) ([]domain.SearchResult, error) {
	f.gotK = k
	return f.results, f.err
}

type fakeJobs struct {
	opID      string
	op        jobs.Operation
	statusErr error
	startedURL string
}

func (f *fakeJobs) Start(_ context.Context, videoURL string) string {
	f.startedURL = videoURL
	return f.opID
}

func (f *fakeJobs) Status(string) (jobs.Operation, error) {
	if f.statusErr != nil {
		return jobs.Operation{}, f.statusErr
	}
	return f.op, nil
}

func doRequest(srv *server.Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body)).Required()
	return body
}

func TestHealth(t *testing.T) {
	srv := server.New(&fakeSearch{}, &fakeJobs{})

	rec := doRequest(srv, http.MethodGet, "/health", "")
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, decodeBody(t, rec)["status"]).Equal("ok")
}

func TestIndexVideoAccepted(t *testing.T) {
	jobPort := &fakeJobs{opID: "op-123"}
	srv := server.New(&fakeSearch{}, jobPort)

	rec := doRequest(srv, http.MethodPost, "/index_video",
		`{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`)
	gt.Value(t, rec.Code).Equal(http.StatusAccepted)

	body := decodeBody(t, rec)
	gt.Value(t, body["operation_id"]).Equal("op-123")
	gt.Value(t, body["status"]).Equal("pending")
	gt.Value(t, jobPort.startedURL).Equal("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
}

func TestIndexVideoMissingURL(t *testing.T) {
	srv := server.New(&fakeSearch{}, &fakeJobs{})

	for _, body := range []string{`{}`, `not json`, ``} {
		rec := doRequest(srv, http.MethodPost, "/index_video", body)
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
		gt.Value(t, decodeBody(t, rec)["error"]).Equal("no url provided")
	}
}

func TestIndexingStatus(t *testing.T) {
	jobPort := &fakeJobs{op: jobs.Operation{
		ID:      "op-123",
		Status:  jobs.StatusIndexing,
		Message: "Processing and indexing transcript...",
	}}
	srv := server.New(&fakeSearch{}, jobPort)

	rec := doRequest(srv, http.MethodGet, "/indexing_status/op-123", "")
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	body := decodeBody(t, rec)
	gt.Value(t, body["operation_id"]).Equal("op-123")
	gt.Value(t, body["status"]).Equal("indexing")
}

func TestIndexingStatusNotFound(t *testing.T) {
	jobPort := &fakeJobs{statusErr: goerr.Wrap(domain.ErrOperationNotFound, "unknown operation")}
	srv := server.New(&fakeSearch{}, jobPort)

	rec := doRequest(srv, http.MethodGet, "/indexing_status/nope", "")
	gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	gt.Value(t, decodeBody(t, rec)["status"]).Equal("error")
}

func TestQuery(t *testing.T) {
	search := &fakeSearch{results: []domain.SearchResult{
		{
			Text:       "charlie",
			VideoID:    "dQw4w9WgXcQ",
			VideoTitle: "A Video",
			URL:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=120s",
			StartTime:  120,
			EndTime:    150,
			Score:      0.9,
		},
	}}
	srv := server.New(search, &fakeJobs{})

	rec := doRequest(srv, http.MethodPost, "/query", `{"query": "charlie", "k": 3}`)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, search.gotK).Equal(3)

	body := decodeBody(t, rec)
	gt.Value(t, body["query"]).Equal("charlie")
	gt.Value(t, body["count"]).Equal(float64(1))
	results, ok := body["results"].([]any)
	gt.Bool(t, ok).True()
	gt.Array(t, results).Length(1)
	first, ok := results[0].(map[string]any)
	gt.Bool(t, ok).True()
	gt.Value(t, first["text"]).Equal("charlie")
	gt.Value(t, first["url"]).Equal("https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=120s")
}

func TestQueryDefaultTopK(t *testing.T) {
	search := &fakeSearch{}
	srv := server.New(search, &fakeJobs{}, server.WithDefaultTopK(9))

	rec := doRequest(srv, http.MethodPost, "/query", `{"query": "charlie"}`)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, search.gotK).Equal(9)
}

func TestQueryMissingQuery(t *testing.T) {
	srv := server.New(&fakeSearch{}, &fakeJobs{})

	rec := doRequest(srv, http.MethodPost, "/query", `{}`)
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	gt.Value(t, decodeBody(t, rec)["error"]).Equal("no query provided")
}

func TestQueryInvalidInput(t *testing.T) {
	search := &fakeSearch{err: goerr.Wrap(domain.ErrInvalidInput, "query is empty")}
	srv := server.New(search, &fakeJobs{})

	rec := doRequest(srv, http.MethodPost, "/query", `{"query": "   "}`)
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
}

func TestQuerySearchFailure(t *testing.T) {
	search := &fakeSearch{err: goerr.Wrap(domain.ErrEmbeddingProvider, "provider down")}
	srv := server.New(search, &fakeJobs{})

	rec := doRequest(srv, http.MethodPost, "/query", `{"query": "charlie"}`)
	gt.Value(t, rec.Code).Equal(http.StatusInternalServerError)
	gt.Value(t, decodeBody(t, rec)["status"]).Equal("error")
}

func TestQueryEmptyResultsIsArray(t *testing.T) {
	srv := server.New(&fakeSearch{}, &fakeJobs{})

	rec := doRequest(srv, http.MethodPost, "/query", `{"query": "charlie"}`)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Bool(t, strings.Contains(rec.Body.String(), `"results":[]`)).True()
}
