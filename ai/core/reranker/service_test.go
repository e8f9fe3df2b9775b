package reranker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubClient struct {
	configured bool
	results    []Result
	err        error
	called     bool
}

func (s *stubClient) IsConfigured() bool { return s.configured }

func (s *stubClient) Rerank(_ context.Context, _ string, _ []string, _ int) ([]Result, error) {
	s.called = true
	return s.results, s.err
}

func TestRerank_NotConfigured_SyntheticScores(t *testing.T) {
	svc := NewService(&Config{Enabled: false}, nil)

	docs := []string{"a", "b", "c", "d", "e", "f"}
	results := svc.Rerank(context.Background(), "query", docs, 3)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("results[%d].Index = %d, want %d (input order preserved)", i, r.Index, i)
		}
		want := 1.0 - 0.1*float64(i)
		if math.Abs(r.Score-want) > 1e-9 {
			t.Errorf("results[%d].Score = %v, want %v", i, r.Score, want)
		}
	}
}

func TestRerank_FewCandidates_ReturnsAllUnranked(t *testing.T) {
	client := &stubClient{configured: true}
	svc := &fallbackService{client: client, logger: testLogger()}

	docs := []string{"a", "b"}
	results := svc.Rerank(context.Background(), "query", docs, 5)

	if client.called {
		t.Error("client should not be called when candidates fit the request")
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, r := range results {
		if r.Index != i || r.Score != 1.0 {
			t.Errorf("results[%d] = %+v, want unranked identity", i, r)
		}
	}
}

func TestRerank_ClientError_FallsBack(t *testing.T) {
	client := &stubClient{configured: true, err: errors.New("boom")}
	svc := &fallbackService{client: client, logger: testLogger()}

	docs := []string{"a", "b", "c", "d"}
	results := svc.Rerank(context.Background(), "query", docs, 2)

	if !client.called {
		t.Fatal("client should be invoked before falling back")
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Index != 0 || results[1].Index != 1 {
		t.Errorf("fallback should preserve input order, got %+v", results)
	}
	if !(results[0].Score > results[1].Score) {
		t.Error("fallback scores must be strictly descending")
	}
}

func TestRerank_Success_UsesClientOrder(t *testing.T) {
	client := &stubClient{
		configured: true,
		results: []Result{
			{Index: 2, Score: 0.95, Document: "c"},
			{Index: 0, Score: 0.40, Document: "a"},
		},
	}
	svc := &fallbackService{client: client, logger: testLogger()}

	results := svc.Rerank(context.Background(), "query", []string{"a", "b", "c"}, 2)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Index != 2 {
		t.Errorf("top result index = %d, want 2", results[0].Index)
	}
}

func TestRerank_EmptyDocuments(t *testing.T) {
	svc := NewService(&Config{}, nil)
	if got := svc.Rerank(context.Background(), "query", nil, 5); got != nil {
		t.Errorf("Rerank(nil docs) = %v, want nil", got)
	}
}

func TestIsEnabled(t *testing.T) {
	if NewService(&Config{Enabled: true, APIKey: "k"}, nil).IsEnabled() != true {
		t.Error("service with credential should be enabled")
	}
	if NewService(&Config{Enabled: true}, nil).IsEnabled() != false {
		t.Error("service without credential must report disabled")
	}
}
