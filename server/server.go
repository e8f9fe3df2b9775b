// Package server assembles the engine and serves it over HTTP.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/shopsense/ai"
	aicontext "github.com/hrygo/shopsense/ai/context"
	"github.com/hrygo/shopsense/ai/core/llm"
	"github.com/hrygo/shopsense/ai/core/reranker"
	"github.com/hrygo/shopsense/ai/core/retrieval"
	"github.com/hrygo/shopsense/ai/inmem"
	"github.com/hrygo/shopsense/ai/metrics"
	"github.com/hrygo/shopsense/ai/quality"
	"github.com/hrygo/shopsense/ai/rag"
	"github.com/hrygo/shopsense/ai/transform"
	"github.com/hrygo/shopsense/internal/profile"
	apiv1 "github.com/hrygo/shopsense/server/router/api/v1"
)

// Server wires the engine behind an echo HTTP server.
type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	rag        *rag.Service
	exporter   *metrics.PrometheusExporter
}

// Backends are the external collaborators the engine retrieves from. Leave
// nil to run on the in-memory demo catalog.
type Backends struct {
	Vector     ai.VectorSearchClient
	Keyword    ai.KeywordSearchClient
	Store      ai.ConversationStore
	Catalog    ai.CatalogLookup
	Popularity ai.PopularitySource
}

// NewServer builds the full pipeline from the profile. Missing backends are
// filled with the in-memory demo implementations.
func NewServer(_ context.Context, p *profile.Profile, backends Backends) (*Server, error) {
	aiConfig := ai.NewConfigFromProfile(p)
	if err := aiConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, "ai config")
	}
	logger := slog.Default()

	llmService, err := llm.NewService(&aiConfig.LLM)
	if err != nil {
		return nil, errors.Wrap(err, "llm service")
	}
	rerankService := reranker.NewService(&aiConfig.Reranker, logger)
	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())

	fillDemoBackends(&backends)

	searcher := retrieval.NewHybridSearcher(backends.Vector, backends.Keyword, backends.Popularity, retrieval.Options{
		EnablePopularityBoost: true,
		EnableSeasonalBoost:   true,
		Metrics:               exporter,
	}, logger)

	extractor := aicontext.NewEntityExtractor(llmService, backends.Catalog, logger).WithMetrics(exporter)
	manager := aicontext.NewManager(backends.Store, extractor, logger)

	ragService, err := rag.NewService(rag.Deps{
		Conversations: manager,
		Decomposer:    transform.NewDecomposer(llmService, aiConfig.QueryTransformEnabled, logger),
		Searcher:      searcher,
		Reranker:      rerankService,
		LLM:           llmService,
		FactChecker:   quality.NewFactChecker(aiConfig.FactCheckEnabled, logger),
		Catalog:       backends.Catalog,
		Exporter:      exporter,
		Logger:        logger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "rag service")
	}

	s := &Server{
		Profile:  p,
		rag:      ragService,
		exporter: exporter,
	}
	s.echoServer = newEchoServer(p, ragService, exporter)
	return s, nil
}

func newEchoServer(p *profile.Profile, ragService *rag.Service, exporter *metrics.PrometheusExporter) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.InfoContext(c.Request().Context(), "http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status)
			return nil
		},
	}))

	apiv1.NewAPIV1Service(p, ragService, exporter).Register(e)
	return e
}

// Start begins serving. It returns once the listener stops.
func (s *Server) Start(_ context.Context) error {
	addr := s.Profile.ListenAddr()
	slog.Info("server listening", "addr", addr, "mode", s.Profile.Mode)
	return s.echoServer.Start(addr)
}

// Shutdown drains in-flight requests with a deadline.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server gracefully", "error", err)
	}
	slog.Info("server stopped")
}

// fillDemoBackends substitutes the in-memory implementations for any backend
// the caller left nil.
func fillDemoBackends(b *Backends) {
	var catalog *inmem.Catalog
	needCatalog := b.Vector == nil || b.Keyword == nil || b.Catalog == nil || b.Popularity == nil
	if needCatalog {
		catalog = inmem.NewCatalog(demoProducts())
		for i, p := range demoProducts() {
			// Seed descending popularity so the boost is visible in demos.
			catalog.SetOrderCount(p.ID, 20-i*3)
		}
	}
	if b.Vector == nil {
		b.Vector = inmem.NewVectorSearch(catalog)
	}
	if b.Keyword == nil {
		b.Keyword = inmem.NewKeywordSearch(catalog)
	}
	if b.Catalog == nil {
		b.Catalog = catalog
	}
	if b.Popularity == nil {
		b.Popularity = catalog
	}
	if b.Store == nil {
		b.Store = inmem.NewConversationStore()
	}
}

func demoProducts() []*ai.Product {
	return []*ai.Product{
		{
			ID: "prod-001", Name: "Áo Khoác Bomber Devenir", Slug: "ao-khoac-bomber-devenir",
			Brand: "Devenir", Category: "áo khoác", Tags: []string{"ấm", "mùa đông", "street"},
			Materials: []string{"kaki"},
			Variants: []ai.Variant{
				{Color: "đen", Size: "M", Price: 450000, Stock: 8},
				{Color: "đen", Size: "L", Price: 450000, Stock: 3},
				{Color: "be", Size: "M", Price: 470000, Stock: 0},
			},
		},
		{
			ID: "prod-002", Name: "Áo Polo Devenir Classic", Slug: "ao-polo-devenir-classic",
			Brand: "Devenir", Category: "áo polo", Tags: []string{"công sở", "basic"},
			Materials: []string{"cotton"},
			Variants: []ai.Variant{
				{Color: "trắng", Size: "M", Price: 280000, Stock: 12},
				{Color: "đen", Size: "L", Price: 280000, Stock: 6},
			},
		},
		{
			ID: "prod-003", Name: "Quần Jean Slim Devenir", Slug: "quan-jean-slim-devenir",
			Brand: "Devenir", Category: "quần jean", Tags: []string{"dạo phố", "slim"},
			Materials: []string{"jean"},
			Variants: []ai.Variant{
				{Color: "xanh", Size: "30", Price: 380000, Stock: 5},
				{Color: "đen", Size: "32", Price: 380000, Stock: 2},
			},
		},
		{
			ID: "prod-004", Name: "Áo Thun Basic Devenir", Slug: "ao-thun-basic-devenir",
			Brand: "Devenir", Category: "áo thun", Tags: []string{"mát", "mùa hè", "basic"},
			Materials: []string{"cotton"},
			Variants: []ai.Variant{
				{Color: "trắng", Size: "S", Price: 150000, Stock: 20},
				{Color: "xám", Size: "M", Price: 150000, Stock: 15},
			},
		},
	}
}
