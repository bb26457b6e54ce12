// Package search 股票搜索：本地热门清单、数据源列表与东财联想接口合并打分
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"finassist/cache"
	"finassist/market"
	"finassist/market/providers"
)

// Result 单条搜索结果
type Result struct {
	TsCode string  `json:"ts_code"`
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Board  string  `json:"board"`
	Score  float64 `json:"score"`
}

// Service 搜索服务
// 结果经两级缓存：进程内LRU应对热词，共享缓存层做跨实例复用
type Service struct {
	manager *providers.Manager
	cache   *cache.Service
	memo    *lru.Cache[string, []Result]
	client  *http.Client
	logger  *zap.Logger

	suggestBase string
}

func New(manager *providers.Manager, cacheSvc *cache.Service, logger *zap.Logger) *Service {
	memo, _ := lru.New[string, []Result](256)
	return &Service{
		manager:     manager,
		cache:       cacheSvc,
		memo:        memo,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
		suggestBase: "https://searchapi.eastmoney.com",
	}
}

// Search 按代码或名称搜索，keyword为空时返回热门股
func (s *Service) Search(ctx context.Context, keyword string, limit int) []Result {
	keyword = strings.TrimSpace(keyword)
	if limit <= 0 {
		limit = 10
	}
	if keyword == "" {
		return truncate(s.hotResults(), limit)
	}

	memoKey := fmt.Sprintf("%s|%d", keyword, limit)
	if cached, ok := s.memo.Get(memoKey); ok {
		return cached
	}

	cacheKey := cache.Join("search", keyword)
	var fromShared []Result
	if s.cache.GetJSON(ctx, cacheKey, &fromShared) {
		out := truncate(fromShared, limit)
		s.memo.Add(memoKey, out)
		return out
	}

	merged := map[string]Result{}
	merge := func(results []Result) {
		for _, r := range results {
			if prev, ok := merged[r.TsCode]; !ok || r.Score > prev.Score {
				merged[r.TsCode] = r
			}
		}
	}

	merge(scoreStocks(hotInfos(), keyword))

	if stocks, err := s.manager.ListStocks(ctx, keyword); err == nil {
		merge(scoreStocks(stocks, keyword))
	} else {
		s.logger.Warn("stock list search failed", zap.String("keyword", keyword), zap.Error(err))
	}

	if suggested, err := s.suggest(ctx, keyword); err == nil {
		merge(suggested)
	} else {
		s.logger.Warn("suggest api failed", zap.String("keyword", keyword), zap.Error(err))
	}

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].TsCode < results[j].TsCode
	})

	s.cache.SetJSON(ctx, cacheKey, results, cache.TTLSearch)
	out := truncate(results, limit)
	s.memo.Add(memoKey, out)
	return out
}

// Hot 返回内置热门股
func (s *Service) Hot(limit int) []Result {
	if limit <= 0 {
		limit = 10
	}
	return truncate(s.hotResults(), limit)
}

func (s *Service) hotResults() []Result {
	infos := hotInfos()
	results := make([]Result, 0, len(infos))
	for _, info := range infos {
		results = append(results, Result{
			TsCode: info.TsCode,
			Symbol: info.Symbol,
			Name:   info.Name,
			Board:  Board(info.Symbol),
		})
	}
	return results
}

// suggest 东财联想接口，非A股条目被丢弃
func (s *Service) suggest(ctx context.Context, keyword string) ([]Result, error) {
	q := url.Values{}
	q.Set("input", keyword)
	q.Set("type", "14")
	q.Set("count", "20")
	reqURL := s.suggestBase + "/api/suggest/get?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		QuotationCodeTable struct {
			Data []struct {
				Code             string `json:"Code"`
				Name             string `json:"Name"`
				MktNum           string `json:"MktNum"`
				SecurityTypeName string `json:"SecurityTypeName"`
			} `json:"Data"`
		} `json:"QuotationCodeTable"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("suggest decode: %w", err)
	}

	var results []Result
	for _, item := range result.QuotationCodeTable.Data {
		if !IsAStock(item.Code) {
			continue
		}
		exchange := ".SZ"
		if item.MktNum == "1" {
			exchange = ".SH"
		}
		results = append(results, Result{
			TsCode: item.Code + exchange,
			Symbol: item.Code,
			Name:   item.Name,
			Board:  Board(item.Code),
			Score:  scoreMatch(item.Code, item.Name, keyword),
		})
	}
	return results, nil
}

// scoreStocks 对股票清单按关键字打分，0分条目被过滤
func scoreStocks(stocks []market.StockInfo, keyword string) []Result {
	var results []Result
	for _, info := range stocks {
		score := scoreMatch(info.Symbol, info.Name, keyword)
		if score <= 0 {
			continue
		}
		results = append(results, Result{
			TsCode: info.TsCode,
			Symbol: info.Symbol,
			Name:   info.Name,
			Board:  Board(info.Symbol),
			Score:  score,
		})
	}
	return results
}

// scoreMatch 匹配打分：代码全等100、代码前缀80、名称全等90、名称包含60
func scoreMatch(code, name, keyword string) float64 {
	switch {
	case code == keyword:
		return 100
	case name == keyword:
		return 90
	case strings.HasPrefix(code, keyword):
		return 80
	case strings.Contains(name, keyword):
		return 60
	}
	return 0
}

func truncate(results []Result, limit int) []Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

// hotInfos 内置热门股清单
func hotInfos() []market.StockInfo {
	return providers.HotStocks()
}
