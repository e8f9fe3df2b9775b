package rag

import (
	gocontext "context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/shopsense/ai"
	aicontext "github.com/hrygo/shopsense/ai/context"
	"github.com/hrygo/shopsense/ai/core/llm"
	"github.com/hrygo/shopsense/ai/core/reranker"
	"github.com/hrygo/shopsense/ai/core/retrieval"
	"github.com/hrygo/shopsense/ai/quality"
	"github.com/hrygo/shopsense/ai/transform"
)

type fakeVector struct{ results []ai.SearchResult }

func (f *fakeVector) Search(ctx gocontext.Context, query string, opts ai.VectorSearchOptions) ([]ai.SearchResult, error) {
	return f.results, nil
}

type fakeKeyword struct{ results []ai.SearchResult }

func (f *fakeKeyword) Search(ctx gocontext.Context, query string, opts ai.KeywordSearchOptions) ([]ai.SearchResult, error) {
	return f.results, nil
}

type fakeLLM struct{ answer string }

func (f *fakeLLM) Complete(ctx gocontext.Context, messages []llm.Message, opts *llm.Options) (string, error) {
	return f.answer, nil
}

func (f *fakeLLM) CompleteJSON(ctx gocontext.Context, messages []llm.Message, opts *llm.Options, out any) error {
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string][]ai.Message
}

func newFakeStore() *fakeStore { return &fakeStore{sessions: make(map[string][]ai.Message)} }

func (f *fakeStore) GetLatestSession(ctx gocontext.Context, key string) ([]ai.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.Message(nil), f.sessions[key]...), nil
}

func (f *fakeStore) AppendMessage(ctx gocontext.Context, key string, msg ai.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[key] = append(f.sessions[key], msg)
	return nil
}

func (f *fakeStore) DeleteSessions(ctx gocontext.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, key)
	return nil
}

type fakeCatalog struct{ products map[string]*ai.Product }

func (f *fakeCatalog) FindProductByName(ctx gocontext.Context, name string) (*ai.Product, error) {
	return f.products[name], nil
}

func testService(t *testing.T, store *fakeStore, answer string) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	vector := &fakeVector{results: []ai.SearchResult{
		{ID: "p1", Score: 0.9, Meta: ai.ResultMeta{ProductName: "Áo Khoác Bomber", Category: "áo khoác"}},
		{ID: "p2", Score: 0.5, Meta: ai.ResultMeta{ProductName: "Áo Thun Basic", Category: "áo thun"}},
	}}
	keyword := &fakeKeyword{results: []ai.SearchResult{
		{ID: "p1", Score: 0.7, Meta: ai.ResultMeta{ProductName: "Áo Khoác Bomber"}},
	}}
	searcher := retrieval.NewHybridSearcher(vector, keyword, nil, retrieval.Options{}, logger)

	rerank := reranker.NewService(&reranker.Config{}, logger)
	catalog := &fakeCatalog{products: map[string]*ai.Product{
		"Áo Khoác Bomber": {ID: "p1", Name: "Áo Khoác Bomber", Category: "áo khoác",
			Variants: []ai.Variant{{Color: "đen", Size: "M", Price: 450000, Stock: 4}}},
	}}
	manager := aicontext.NewManager(store, nil, logger)

	svc, err := NewService(Deps{
		Conversations: manager,
		Decomposer:    transform.NewDecomposer(nil, false, logger),
		Searcher:      searcher,
		Reranker:      rerank,
		LLM:           &fakeLLM{answer: answer},
		FactChecker:   quality.NewFactChecker(true, logger),
		Catalog:       catalog,
		Logger:        logger,
	})
	require.NoError(t, err)
	return svc
}

func TestChat_FullTurn(t *testing.T) {
	store := newFakeStore()
	svc := testService(t, store, "Áo Khoác Bomber rất hợp với thời tiết lạnh, giá 450.000đ.")

	res, err := svc.Chat(gocontext.Background(), "s1", "áo khoác ấm")
	require.NoError(t, err)

	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "category_browse", res.QueryType)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, "p1", res.Sources[0].ProductID)
	assert.Equal(t, "both", res.Sources[0].Origin)

	// The answer names the top product, so a citation gets injected.
	require.NotEmpty(t, res.Citations)
	assert.Contains(t, res.Answer, "[1]")
	assert.Contains(t, res.Answer, "Nguồn tham khảo")
	assert.Contains(t, res.Answer, "[1] Áo Khoác Bomber - 450.000đ", "footer carries the catalog price range")

	assert.True(t, res.FactCheck.Passed, "price matches the catalog variant")
	assert.Greater(t, res.Quality.Overall, 0.0)

	// Both sides of the turn are persisted.
	history, err := store.GetLatestSession(gocontext.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	assert.NotEmpty(t, history[1].SuggestedProducts)
}

func TestChat_FactCheckCatchesWrongPrice(t *testing.T) {
	store := newFakeStore()
	svc := testService(t, store, "Áo Khoác Bomber giá chỉ 100.000đ thôi.")

	res, err := svc.Chat(gocontext.Background(), "s1", "áo khoác ấm")
	require.NoError(t, err)
	assert.False(t, res.FactCheck.Passed)
}

func TestChat_SerializesTurnsWithinSession(t *testing.T) {
	store := newFakeStore()
	svc := testService(t, store, "Áo Khoác Bomber là lựa chọn tốt.")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Chat(gocontext.Background(), "s1", "áo khoác ấm")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history, err := store.GetLatestSession(gocontext.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, history, 10, "five turns, two messages each")
}

func TestChat_ClearSession(t *testing.T) {
	store := newFakeStore()
	svc := testService(t, store, "Áo Khoác Bomber là lựa chọn tốt.")
	ctx := gocontext.Background()

	_, err := svc.Chat(ctx, "s1", "áo khoác ấm")
	require.NoError(t, err)
	require.NoError(t, svc.ClearSession(ctx, "s1"))

	history, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

type failingVector struct{}

func (f *failingVector) Search(ctx gocontext.Context, query string, opts ai.VectorSearchOptions) ([]ai.SearchResult, error) {
	return nil, stderrors.New("vector down")
}

type failingKeyword struct{}

func (f *failingKeyword) Search(ctx gocontext.Context, query string, opts ai.KeywordSearchOptions) ([]ai.SearchResult, error) {
	return nil, stderrors.New("keyword down")
}

type failingLLM struct{}

func (f *failingLLM) Complete(ctx gocontext.Context, messages []llm.Message, opts *llm.Options) (string, error) {
	return "", stderrors.New("llm unavailable")
}

func (f *failingLLM) CompleteJSON(ctx gocontext.Context, messages []llm.Message, opts *llm.Options, out any) error {
	return stderrors.New("llm unavailable")
}

type failingWriteStore struct{ *fakeStore }

func (f *failingWriteStore) AppendMessage(ctx gocontext.Context, key string, msg ai.Message) error {
	return stderrors.New("store write failed")
}

func TestChat_LLMFailureStillAnswers(t *testing.T) {
	store := newFakeStore()
	svc := testService(t, store, "")
	svc.llm = &failingLLM{}

	res, err := svc.Chat(gocontext.Background(), "s1", "áo khoác ấm")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Contains(t, res.Answer, "Xin lỗi")
	assert.Contains(t, res.Answer, "Áo Khoác Bomber", "retrieved products still surface")
	assert.NotEmpty(t, res.Sources)
	assert.Contains(t, res.Degraded, "llm")
	assert.Equal(t, int64(1), svc.Stats().DegradedTurns)
}

func TestChat_BothSearchLegsFailStillAnswers(t *testing.T) {
	store := newFakeStore()
	svc := testService(t, store, "Xin lỗi, mình chưa tìm thấy sản phẩm phù hợp.")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc.searcher = retrieval.NewHybridSearcher(&failingVector{}, &failingKeyword{}, nil, retrieval.Options{}, logger)

	res, err := svc.Chat(gocontext.Background(), "s1", "áo khoác ấm")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, res.Answer)
	assert.Empty(t, res.Sources)
	assert.Equal(t, "unknown", res.QueryType)
	assert.Contains(t, res.Degraded, "search")
}

func TestChat_StoreWriteFailureStillAnswers(t *testing.T) {
	svc := testService(t, newFakeStore(), "Áo Khoác Bomber rất hợp, giá 450.000đ.")
	manager := aicontext.NewManager(&failingWriteStore{newFakeStore()}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.conversations = manager

	res, err := svc.Chat(gocontext.Background(), "s1", "áo khoác ấm")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.NotEmpty(t, res.Answer)
	assert.Empty(t, res.Degraded, "a lost history write is logged, not surfaced")
}

func TestChat_ReleasesSessionLocks(t *testing.T) {
	store := newFakeStore()
	svc := testService(t, store, "Áo Khoác Bomber là lựa chọn tốt.")

	_, err := svc.Chat(gocontext.Background(), "s1", "áo khoác ấm")
	require.NoError(t, err)
	_, err = svc.Chat(gocontext.Background(), "s2", "áo khoác ấm")
	require.NoError(t, err)

	assert.Equal(t, 0, svc.locks.Len(), "idle sessions hold no lock entries")
}
