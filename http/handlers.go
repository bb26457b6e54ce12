package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"finassist/cache"
	"finassist/db"
	"finassist/market"
	"finassist/market/providers"
	"finassist/search"
)

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError 统一错误响应
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"cache_backend": s.cache.Backend(),
		"datasource":    s.manager.DefaultSource(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	limit := queryInt(r, "limit", 20)
	if limit > 50 {
		limit = 50
	}

	results := s.search.Search(r.Context(), keyword, limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"keyword": keyword,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleHot(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	results := s.search.Hot(limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}

// stockInfoBase 基本信息，变化慢，走stock:info命名空间长缓存
type stockInfoBase struct {
	TsCode string `json:"ts_code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Board  string `json:"board"`
}

func (s *Server) handleStockInfo(w http.ResponseWriter, r *http.Request) {
	tsCode := r.PathValue("ts_code")
	symbol, _, err := providers.SplitTsCode(tsCode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := cache.StockInfoKey(tsCode)
	var base stockInfoBase
	if !s.cache.GetJSON(r.Context(), key, &base) {
		base = stockInfoBase{TsCode: tsCode, Symbol: symbol, Board: search.Board(symbol)}
		for _, result := range s.search.Search(r.Context(), symbol, 10) {
			if result.TsCode == tsCode {
				base.Name = result.Name
				break
			}
		}
		if base.Name != "" {
			s.cache.SetJSON(r.Context(), key, base, cache.TTLStockInfo)
		}
	}

	info := map[string]interface{}{
		"ts_code": base.TsCode,
		"symbol":  base.Symbol,
		"name":    base.Name,
		"board":   base.Board,
	}
	if quote, err := s.getQuote(r.Context(), tsCode); err == nil {
		info["price"] = quote.Close
		info["pct_chg"] = quote.PctChg
		if base.Name == "" && quote.Name != "" {
			info["name"] = quote.Name
		}
	}
	respondJSON(w, http.StatusOK, info)
}

// getQuote 行情读穿透：realtime:*命名空间做结果级短缓存，
// 概览、个股信息与行情接口共享同一份快照
func (s *Server) getQuote(ctx context.Context, tsCode string) (*market.Quote, error) {
	key := cache.RealtimeKey(tsCode)
	var cached market.Quote
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	quote, err := s.manager.GetQuote(ctx, tsCode)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, key, quote, cache.TTLQuote)
	return quote, nil
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	tsCode := r.PathValue("ts_code")
	if _, _, err := providers.SplitTsCode(tsCode); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := s.getQuote(r.Context(), tsCode)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// handleKline K线查询
// 数据源全部失败时仍返回200，错误通过error字段透出
func (s *Server) handleKline(w http.ResponseWriter, r *http.Request) {
	tsCode := r.PathValue("ts_code")
	if _, _, err := providers.SplitTsCode(tsCode); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "daily"
	}
	if !market.IsValidPeriod(period) {
		respondError(w, http.StatusBadRequest, "invalid period: "+period)
		return
	}

	req := providers.KlineRequest{
		TsCode:    tsCode,
		Period:    period,
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
		Limit:     s.clampLimit(queryInt(r, "limit", 0)),
	}

	result := s.store.GetKline(r.Context(), req, r.URL.Query().Get("source"))
	respondJSON(w, http.StatusOK, result)
}

type batchKlineRequest struct {
	TsCodes []string `json:"ts_codes"`
	Period  string   `json:"period"`
	Limit   int      `json:"limit"`
	Source  string   `json:"source"`
}

func (s *Server) handleKlineBatch(w http.ResponseWriter, r *http.Request) {
	var req batchKlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Period == "" {
		req.Period = "daily"
	}
	if !market.IsValidPeriod(req.Period) {
		respondError(w, http.StatusBadRequest, "invalid period: "+req.Period)
		return
	}

	results, err := s.store.BatchGetKline(r.Context(), req.TsCodes, req.Period,
		s.clampLimit(req.Limit), req.Source)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}

// marketIndices 六大指数，东财secid规则对指数代码同样成立
var marketIndices = []struct {
	TsCode string
	Name   string
}{
	{"000001.SH", "上证指数"},
	{"399001.SZ", "深证成指"},
	{"399006.SZ", "创业板指"},
	{"000300.SH", "沪深300"},
	{"000016.SH", "上证50"},
	{"000905.SH", "中证500"},
}

type indexSnapshot struct {
	TsCode string   `json:"ts_code"`
	Name   string   `json:"name"`
	Price  *float64 `json:"price,omitempty"`
	Change *float64 `json:"change,omitempty"`
	PctChg *float64 `json:"pct_chg,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type marketOverview struct {
	Indices   []indexSnapshot `json:"indices"`
	UpdatedAt string          `json:"updated_at"`
	FromCache bool            `json:"from_cache,omitempty"`
}

const overviewCacheKey = "market:overview"

// handleMarketOverview 大盘概览：六大指数实时行情，整体60秒缓存
func (s *Server) handleMarketOverview(w http.ResponseWriter, r *http.Request) {
	var cached marketOverview
	if s.cache.GetJSON(r.Context(), overviewCacheKey, &cached) {
		cached.FromCache = true
		respondJSON(w, http.StatusOK, cached)
		return
	}

	overview := marketOverview{
		Indices:   make([]indexSnapshot, 0, len(marketIndices)),
		UpdatedAt: time.Now().Format("2006-01-02 15:04:05"),
	}
	for _, idx := range marketIndices {
		snap := indexSnapshot{TsCode: idx.TsCode, Name: idx.Name}
		if quote, err := s.getQuote(r.Context(), idx.TsCode); err == nil {
			snap.Price = market.Float64(quote.Close)
			snap.Change = market.Float64(quote.Change)
			snap.PctChg = market.Float64(quote.PctChg)
		} else {
			snap.Error = "unavailable"
		}
		overview.Indices = append(overview.Indices, snap)
	}

	s.cache.SetJSON(r.Context(), overviewCacheKey, overview, cache.TTLIndex)
	respondJSON(w, http.StatusOK, overview)
}

// handleIndexKline 指数K线，短缓存保证盘中新鲜度
func (s *Server) handleIndexKline(w http.ResponseWriter, r *http.Request) {
	tsCode := r.PathValue("ts_code")
	if _, _, err := providers.SplitTsCode(tsCode); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "daily"
	}
	if !market.IsValidPeriod(period) {
		respondError(w, http.StatusBadRequest, "invalid period: "+period)
		return
	}

	result := s.store.GetIndexKline(r.Context(), providers.KlineRequest{
		TsCode:    tsCode,
		Period:    period,
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
		Limit:     s.clampLimit(queryInt(r, "limit", 0)),
	})
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	tsCode := r.PathValue("ts_code")
	if _, _, err := providers.SplitTsCode(tsCode); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "daily"
	}
	if !market.IsValidPeriod(period) {
		respondError(w, http.StatusBadRequest, "invalid period: "+period)
		return
	}

	limit := queryInt(r, "limit", 120)
	result := s.store.GetKline(r.Context(), providers.KlineRequest{
		TsCode: tsCode,
		Period: period,
		Limit:  s.clampLimit(limit),
	}, r.URL.Query().Get("source"))
	if result.Error != "" || len(result.Data) == 0 {
		respondError(w, http.StatusBadGateway, "failed to fetch kline for analysis")
		return
	}

	analysis := market.Analyze(tsCode, period, result.Data)
	if err := db.SaveAnalysis(analysis); err != nil {
		s.logger.Warn("save analysis failed", zap.String("ts_code", tsCode), zap.Error(err))
	}
	respondJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleAnalysisHistory(w http.ResponseWriter, r *http.Request) {
	records, err := db.RecentAnalyses(r.URL.Query().Get("ts_code"), queryInt(r, "limit", 20))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleDataSources(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"default": s.manager.DefaultSource(),
		"sources": s.manager.Sources(),
	})
}

func (s *Server) handleSetDefaultSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Source == "" {
		respondError(w, http.StatusBadRequest, "source is required")
		return
	}
	if err := s.manager.SetDefaultSource(req.Source); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"default": req.Source})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Stats(r.Context()))
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TsCode string `json:"ts_code"`
	}
	// body可选，只清某只股票时传ts_code
	json.NewDecoder(r.Body).Decode(&req)
	if req.TsCode == "" {
		req.TsCode = r.URL.Query().Get("ts_code")
	}

	removed := s.store.ClearCache(r.Context(), req.TsCode)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ts_code": req.TsCode,
		"removed": removed,
	})
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := db.ListWatches()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(items),
		"items": items,
	})
}

func (s *Server) handleWatchAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TsCode string `json:"ts_code"`
		Name   string `json:"name"`
		Note   string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, _, err := providers.SplitTsCode(req.TsCode); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := db.AddWatch(req.TsCode, req.Name, req.Note); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"ts_code": req.TsCode, "status": "added"})
}

func (s *Server) handleWatchRemove(w http.ResponseWriter, r *http.Request) {
	tsCode := r.PathValue("ts_code")
	if err := db.RemoveWatch(tsCode); err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "not in watchlist: "+tsCode)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"ts_code": tsCode, "status": "removed"})
}

// clampLimit 限制K线条数，0使用默认值
func (s *Server) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.Kline.DefaultLimit
	}
	if limit > s.cfg.Kline.MaxLimit {
		return s.cfg.Kline.MaxLimit
	}
	return limit
}

func queryInt(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}
