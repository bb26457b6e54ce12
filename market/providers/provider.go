// Package providers 实现各行情数据源适配器与失败切换管理器
package providers

import (
	"context"

	"finassist/market"
)

// KlineRequest K线查询参数，日期为纯数字格式（20260101）
type KlineRequest struct {
	TsCode    string
	Period    string
	StartDate string
	EndDate   string
	Limit     int
}

// DataProvider 数据提供者接口
// GetBars返回升序K线，数据源自身负责结果缓存
type DataProvider interface {
	Name() string
	Priority() int
	SupportsPeriod(period string) bool
	ListStocks(ctx context.Context, keyword string) ([]market.StockInfo, error)
	GetBars(ctx context.Context, req KlineRequest) ([]market.Bar, error)
	GetQuote(ctx context.Context, tsCode string) (*market.Quote, error)
}

var (
	ErrProviderNotFound   = &ProviderError{Code: "provider_not_found", Message: "data provider not found"}
	ErrAllProvidersFailed = &ProviderError{Code: "all_providers_failed", Message: "all data providers failed"}
	ErrPeriodUnsupported  = &ProviderError{Code: "period_unsupported", Message: "period not supported by this provider"}
	ErrEmptyResult        = &ProviderError{Code: "empty_result", Message: "provider returned no data"}
	ErrNotSupported       = &ProviderError{Code: "not_supported", Message: "operation not supported by this provider"}
)

// ProviderError 数据源错误
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}
