// Package http 提供HTTP服务器、路由与中间件
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"finassist/cache"
	"finassist/config"
	"finassist/market/providers"
	"finassist/search"
	"finassist/storage"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	logger *zap.Logger

	cfg     *config.Config
	manager *providers.Manager
	store   *storage.KlineStore
	search  *search.Service
	cache   *cache.Service
	hub     *QuoteHub
}

// Deps 服务器依赖
type Deps struct {
	Config  *config.Config
	Manager *providers.Manager
	Store   *storage.KlineStore
	Search  *search.Service
	Cache   *cache.Service
	Logger  *zap.Logger
}

// NewServer 创建HTTP服务器并注册全部路由
func NewServer(deps Deps) *Server {
	s := &Server{
		logger:  deps.Logger,
		cfg:     deps.Config,
		manager: deps.Manager,
		store:   deps.Store,
		search:  deps.Search,
		cache:   deps.Cache,
	}
	s.hub = NewQuoteHub(deps.Manager, deps.Logger)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	timeout := time.Duration(deps.Config.HTTP.TimeoutSeconds) * time.Second
	chain := Chain(
		RecoveryMiddleware(deps.Logger),
		LoggerMiddleware(deps.Logger),
		SecurityHeadersMiddleware,
		CORSMiddleware(deps.Config.HTTP.AllowedOrigins),
		TimeoutMiddleware(timeout),
		RequestSizeMiddleware(1<<20),
	)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", deps.Config.HTTP.Port),
		Handler:      chain(mux),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// 股票搜索
	mux.HandleFunc("GET /api/stocks/search", s.handleSearch)
	mux.HandleFunc("GET /api/stocks/hot", s.handleHot)
	mux.HandleFunc("GET /api/stocks/{ts_code}/info", s.handleStockInfo)
	mux.HandleFunc("GET /api/stocks/{ts_code}/quote", s.handleQuote)
	mux.HandleFunc("GET /api/stocks/{ts_code}/analysis", s.handleAnalysis)

	// K线
	mux.HandleFunc("GET /api/kline/{ts_code}", s.handleKline)
	mux.HandleFunc("POST /api/kline/batch", s.handleKlineBatch)

	// 市场与分析
	mux.HandleFunc("GET /api/market/overview", s.handleMarketOverview)
	mux.HandleFunc("GET /api/index/{ts_code}/kline", s.handleIndexKline)
	mux.HandleFunc("GET /api/analysis/history", s.handleAnalysisHistory)

	// 数据源管理
	mux.HandleFunc("GET /api/datasources", s.handleDataSources)
	mux.HandleFunc("POST /api/datasources/default", s.handleSetDefaultSource)

	// 缓存管理
	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /api/cache/clear", s.handleCacheClear)

	// 自选股
	mux.HandleFunc("GET /api/watchlist", s.handleWatchlist)
	mux.HandleFunc("POST /api/watchlist", s.handleWatchAdd)
	mux.HandleFunc("DELETE /api/watchlist/{ts_code}", s.handleWatchRemove)

	// 实时行情推送
	mux.HandleFunc("GET /api/ws/quotes", s.hub.HandleWS)
}

// Start 启动服务器
func (s *Server) Start() error {
	s.hub.Start()
	s.logger.Info("http server starting", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 优雅停止服务器
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("http server shutting down")
	s.hub.Stop()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}
