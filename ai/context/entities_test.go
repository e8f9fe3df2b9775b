package context

import (
	gocontext "context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/shopsense/ai"
	"github.com/hrygo/shopsense/ai/core/llm"
)

type stubLLM struct {
	json  string
	err   error
	calls int
}

func (s *stubLLM) Complete(ctx gocontext.Context, messages []llm.Message, opts *llm.Options) (string, error) {
	s.calls++
	return s.json, s.err
}

func (s *stubLLM) CompleteJSON(ctx gocontext.Context, messages []llm.Message, opts *llm.Options, out any) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.json), out)
}

type stubCatalog struct {
	products map[string]*ai.Product
	err      error
}

func (s *stubCatalog) FindProductByName(ctx gocontext.Context, name string) (*ai.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.products[name], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func conversation() []ai.Message {
	return []ai.Message{
		{Role: "user", Content: "áo polo nào đẹp"},
		{Role: "assistant", Content: "Mình gợi ý Áo Polo Devenir Classic."},
	}
}

func TestExtract_ParsesAndEnriches(t *testing.T) {
	svc := &stubLLM{json: `{
		"currentProduct": {"name": "Áo Polo Devenir Classic"},
		"allProducts": [{"name": "Áo Polo Devenir Classic"}],
		"userMeasurements": {"height": "175cm"},
		"preferences": ["màu đen"],
		"topic": "áo polo",
		"intentHistory": ["product"]
	}`}
	catalog := &stubCatalog{products: map[string]*ai.Product{
		"Áo Polo Devenir Classic": {ID: "p1", Name: "Áo Polo Devenir Classic"},
	}}
	e := NewEntityExtractor(svc, catalog, discardLogger())

	entities := e.Extract(gocontext.Background(), "s1", conversation())
	require.NotNil(t, entities.CurrentProduct)
	assert.Equal(t, "p1", entities.CurrentProduct.ID)
	assert.Equal(t, "áo polo", entities.Topic)
	assert.Equal(t, "175cm", entities.UserMeasurements["height"])
	require.Len(t, entities.AllProducts, 1)
	assert.Equal(t, "p1", entities.AllProducts[0].ID)
}

func TestExtract_FailureReturnsEmptyDefault(t *testing.T) {
	svc := &stubLLM{err: errors.New("completion timeout")}
	e := NewEntityExtractor(svc, nil, discardLogger())

	entities := e.Extract(gocontext.Background(), "s1", conversation())
	assert.Nil(t, entities.CurrentProduct)
	assert.Empty(t, entities.AllProducts)
	assert.Empty(t, entities.Topic)
}

func TestExtract_MalformedJSONReturnsEmptyDefault(t *testing.T) {
	svc := &stubLLM{json: `not json at all`}
	e := NewEntityExtractor(svc, nil, discardLogger())

	entities := e.Extract(gocontext.Background(), "s1", conversation())
	assert.Nil(t, entities.CurrentProduct)
}

func TestExtract_CachesByContent(t *testing.T) {
	svc := &stubLLM{json: `{"topic": "áo polo"}`}
	e := NewEntityExtractor(svc, nil, discardLogger())
	msgs := conversation()

	first := e.Extract(gocontext.Background(), "s1", msgs)
	second := e.Extract(gocontext.Background(), "s1", msgs)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, svc.calls, "second call must hit the cache")

	// New content misses the cache.
	e.Extract(gocontext.Background(), "s1", append(msgs, ai.Message{Role: "user", Content: "còn màu nào"}))
	assert.Equal(t, 2, svc.calls)

	// Same content under another session is a separate entry.
	e.Extract(gocontext.Background(), "s2", msgs)
	assert.Equal(t, 3, svc.calls)
}

func TestExtract_LookupFailureLeavesNameUnresolved(t *testing.T) {
	svc := &stubLLM{json: `{"currentProduct": {"name": "Áo Bí Ẩn"}}`}
	catalog := &stubCatalog{err: errors.New("catalog down")}
	e := NewEntityExtractor(svc, catalog, discardLogger())

	entities := e.Extract(gocontext.Background(), "s1", conversation())
	require.NotNil(t, entities.CurrentProduct)
	assert.Empty(t, entities.CurrentProduct.ID)
	assert.Equal(t, "Áo Bí Ẩn", entities.CurrentProduct.Name)
}
