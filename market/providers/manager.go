package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"finassist/market"
)

// Manager 数据源管理器
// 按优先级顺序尝试各数据源，首个返回非空数据的胜出；
// 全部失败时GetKline返回Data为空、Error携带原因的结果而不是error
type Manager struct {
	mu            sync.RWMutex
	providers     []DataProvider
	defaultSource string
	logger        *zap.Logger
}

// NewManager 创建数据源管理器，providers按Priority升序排列
func NewManager(defaultSource string, logger *zap.Logger, providers ...DataProvider) *Manager {
	sorted := append([]DataProvider(nil), providers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	m := &Manager{
		providers: sorted,
		logger:    logger,
	}
	if _, ok := m.find(defaultSource); ok {
		m.defaultSource = defaultSource
	} else if len(sorted) > 0 {
		m.defaultSource = sorted[0].Name()
	}
	return m
}

// DefaultSource 当前默认数据源
func (m *Manager) DefaultSource() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultSource
}

// SetDefaultSource 切换默认数据源
func (m *Manager) SetDefaultSource(name string) error {
	if _, ok := m.find(name); !ok {
		return ErrProviderNotFound
	}
	m.mu.Lock()
	m.defaultSource = name
	m.mu.Unlock()
	m.logger.Info("default data source switched", zap.String("source", name))
	return nil
}

// SourceInfo 数据源描述
type SourceInfo struct {
	Name           string `json:"name"`
	Priority       int    `json:"priority"`
	SupportsMinute bool   `json:"supports_minute"`
	IsDefault      bool   `json:"is_default"`
}

// Sources 返回全部数据源的描述
func (m *Manager) Sources() []SourceInfo {
	def := m.DefaultSource()
	infos := make([]SourceInfo, 0, len(m.providers))
	for _, p := range m.providers {
		infos = append(infos, SourceInfo{
			Name:           p.Name(),
			Priority:       p.Priority(),
			SupportsMinute: p.SupportsPeriod("1"),
			IsDefault:      p.Name() == def,
		})
	}
	return infos
}

// GetKline 按失败切换策略获取K线，从默认数据源开始
func (m *Manager) GetKline(ctx context.Context, req KlineRequest) market.KlineResult {
	return m.GetKlineFrom(ctx, req, "")
}

// GetKlineFrom 指定起始数据源获取K线，source为空时用默认源
// 分钟级周期强制从支持分钟线的数据源开始
func (m *Manager) GetKlineFrom(ctx context.Context, req KlineRequest, source string) market.KlineResult {
	result := market.KlineResult{
		TsCode: req.TsCode,
		Period: req.Period,
		Data:   []market.Bar{},
	}
	if !market.IsValidPeriod(req.Period) {
		result.Error = fmt.Sprintf("invalid period: %s", req.Period)
		return result
	}

	var errs []string
	for _, p := range m.order(req.Period, source) {
		bars, err := p.GetBars(ctx, req)
		if err != nil {
			errs = append(errs, p.Name()+": "+err.Error())
			m.logger.Warn("provider kline failed",
				zap.String("provider", p.Name()),
				zap.String("ts_code", req.TsCode),
				zap.String("period", req.Period),
				zap.Error(err))
			continue
		}
		if len(bars) == 0 {
			errs = append(errs, p.Name()+": empty result")
			continue
		}
		result.Source = p.Name()
		result.Data = bars
		return result
	}

	if len(errs) == 0 {
		errs = append(errs, "no provider supports period "+req.Period)
	}
	result.Error = ErrAllProvidersFailed.Message + ": " + strings.Join(errs, "; ")
	return result
}

// GetQuote 按失败切换策略获取实时行情
func (m *Manager) GetQuote(ctx context.Context, tsCode string) (*market.Quote, error) {
	var errs []string
	for _, p := range m.orderAll() {
		quote, err := p.GetQuote(ctx, tsCode)
		if err != nil {
			errs = append(errs, p.Name()+": "+err.Error())
			m.logger.Warn("provider quote failed",
				zap.String("provider", p.Name()),
				zap.String("ts_code", tsCode),
				zap.Error(err))
			continue
		}
		return quote, nil
	}
	return nil, fmt.Errorf("%s: %s", ErrAllProvidersFailed.Message, strings.Join(errs, "; "))
}

// ListStocks 按失败切换策略获取股票列表
func (m *Manager) ListStocks(ctx context.Context, keyword string) ([]market.StockInfo, error) {
	var errs []string
	for _, p := range m.orderAll() {
		stocks, err := p.ListStocks(ctx, keyword)
		if err != nil {
			if err != ErrNotSupported {
				errs = append(errs, p.Name()+": "+err.Error())
				m.logger.Warn("provider list failed",
					zap.String("provider", p.Name()),
					zap.Error(err))
			}
			continue
		}
		if len(stocks) == 0 {
			continue
		}
		return stocks, nil
	}
	if len(errs) == 0 {
		errs = append(errs, "no provider returned stocks")
	}
	return nil, fmt.Errorf("%s: %s", ErrAllProvidersFailed.Message, strings.Join(errs, "; "))
}

// order 返回本次请求的数据源尝试顺序：
// 指定源（缺省为默认源）优先，其余按Priority排列，不支持该周期的源被剔除；
// 分钟级周期固定从eastmoney开始，其余源的分钟数据质量不可靠
func (m *Manager) order(period, preferred string) []DataProvider {
	def := preferred
	if def == "" {
		def = m.DefaultSource()
	}
	if market.IsIntraday(period) {
		def = "eastmoney"
	}

	out := make([]DataProvider, 0, len(m.providers))
	if p, ok := m.find(def); ok && p.SupportsPeriod(period) {
		out = append(out, p)
	}
	for _, p := range m.providers {
		if p.Name() == def || !p.SupportsPeriod(period) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// orderAll 与order相同但不过滤周期，行情与列表接口用
func (m *Manager) orderAll() []DataProvider {
	def := m.DefaultSource()

	out := make([]DataProvider, 0, len(m.providers))
	if p, ok := m.find(def); ok {
		out = append(out, p)
	}
	for _, p := range m.providers {
		if p.Name() == def {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (m *Manager) find(name string) (DataProvider, bool) {
	for _, p := range m.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}
