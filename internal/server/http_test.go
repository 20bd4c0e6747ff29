package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/qanoonhub/lawrag/internal/corpus"
	"github.com/qanoonhub/lawrag/internal/retrieval"
	"github.com/qanoonhub/lawrag/internal/vectorstore"
)

type fakeRetriever struct {
	results  []retrieval.GroupedResult
	err      error
	query    string
	category string
	topK     int
	searchK  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query, category string, topK, searchK int) ([]retrieval.GroupedResult, error) {
	f.query = query
	f.category = category
	f.topK = topK
	f.searchK = searchK
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func newTestServer(t *testing.T, ret Retriever, apiKey string) *HTTPServer {
	t.Helper()
	return NewHTTPServer(HTTPServerConfig{
		Port:       0,
		APIKey:     apiKey,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Retriever:  ret,
		Categories: []string{"Civil Law", "Criminal Law"},
	})
}

func doJSON(s *HTTPServer, method, path, body, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleSearch(t *testing.T) {
	ret := &fakeRetriever{results: []retrieval.GroupedResult{
		{
			GroupKey: "1_12",
			Score:    0.92,
			Count:    3,
			Payload:  corpus.ChunkPayload{LawName: "Civil Code", ArticleTitle: "Article 12", GroupKey: "1_12"},
		},
		{
			GroupKey: "2_4",
			Score:    0.71,
			Count:    1,
			Payload:  corpus.ChunkPayload{LawName: "Labor Law", ArticleTitle: "Article 4", GroupKey: "2_4"},
		},
	}}
	s := newTestServer(t, ret, "")

	rec := doJSON(s, http.MethodPost, "/v1/search",
		`{"query":"contract breach","category":"Civil Law","top_k":2,"search_k":20}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	if ret.query != "contract breach" || ret.category != "Civil Law" {
		t.Errorf("retriever got query=%q category=%q", ret.query, ret.category)
	}
	if ret.topK != 2 || ret.searchK != 20 {
		t.Errorf("retriever got topK=%d searchK=%d", ret.topK, ret.searchK)
	}

	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Results[0].Rank != 1 || resp.Results[1].Rank != 2 {
		t.Errorf("ranks = %d, %d", resp.Results[0].Rank, resp.Results[1].Rank)
	}
	if resp.Results[0].GroupCount != 3 {
		t.Errorf("group_count = %d, want 3", resp.Results[0].GroupCount)
	}
}

func TestHandleSearch_Validation(t *testing.T) {
	s := newTestServer(t, &fakeRetriever{}, "")

	tests := []struct {
		name string
		body string
	}{
		{"empty query", `{"query":""}`},
		{"missing query", `{"category":"Civil Law"}`},
		{"malformed body", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(s, http.MethodPost, "/v1/search", tt.body, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"collection missing", vectorstore.ErrCollectionMissing, http.StatusConflict},
		{"store unavailable", vectorstore.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"other failure", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeRetriever{err: tt.err}, "")
			rec := doJSON(s, http.MethodPost, "/v1/search", `{"query":"q"}`, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleCategories(t *testing.T) {
	s := newTestServer(t, &fakeRetriever{}, "")

	rec := doJSON(s, http.MethodGet, "/v1/categories", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Categories) != 2 || resp.Categories[0] != "Civil Law" {
		t.Errorf("categories = %v", resp.Categories)
	}
}

func TestAPIKeyProtectsV1Routes(t *testing.T) {
	s := newTestServer(t, &fakeRetriever{}, "secret")

	if rec := doJSON(s, http.MethodPost, "/v1/search", `{"query":"q"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated search status = %d, want 401", rec.Code)
	}
	if rec := doJSON(s, http.MethodPost, "/v1/search", `{"query":"q"}`, "secret"); rec.Code != http.StatusOK {
		t.Errorf("authenticated search status = %d, want 200", rec.Code)
	}
	// Health endpoints stay open for probes.
	if rec := doJSON(s, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}
