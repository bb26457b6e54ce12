package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"finassist/cache"
)

func newTestCache() *cache.Service {
	return cache.NewWithStore(cache.NewMemoryStore(100), zap.NewNop())
}

func newTestEastmoney(serverURL string) *EastmoneyProvider {
	ep := NewEastmoneyProvider(newTestCache(), zap.NewNop())
	ep.klineBase = serverURL
	ep.quoteBase = serverURL
	ep.listBase = serverURL
	return ep
}

func TestEastmoneyGetBars(t *testing.T) {
	var gotSecid, gotKlt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecid = r.URL.Query().Get("secid")
		gotKlt = r.URL.Query().Get("klt")
		fmt.Fprint(w, `{"data":{"klines":[
			"2026-08-20,10.00,10.50,10.80,9.90,12345,130000.0,8.2,5.00,0.50,1.2",
			"2026-08-21,10.50,10.40,10.70,10.30,11000,115000.0,3.8,-0.95,-0.10,1.1"
		]}}`)
	}))
	defer server.Close()

	ep := newTestEastmoney(server.URL)
	bars, err := ep.GetBars(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "daily", Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if gotSecid != "0.000001" {
		t.Errorf("secid = %q, want 0.000001", gotSecid)
	}
	if gotKlt != "101" {
		t.Errorf("klt = %q, want 101 for daily", gotKlt)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].TradeDate != "20260820" {
		t.Errorf("date should be digits only, got %q", bars[0].TradeDate)
	}
	if bars[0].Close != 10.50 || bars[0].High != 10.80 {
		t.Errorf("bar fields mismatched: %+v", bars[0])
	}
	if bars[1].PctChg != -0.95 {
		t.Errorf("pct_chg = %f, want -0.95", bars[1].PctChg)
	}
	if bars[0].Source != "eastmoney" {
		t.Errorf("source = %q", bars[0].Source)
	}
}

func TestEastmoneyGetBarsCached(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"data":{"klines":["2026-08-20,10,10.5,10.8,9.9,100,1000,1,1,0.5,1"]}}`)
	}))
	defer server.Close()

	ep := newTestEastmoney(server.URL)
	req := KlineRequest{TsCode: "000001.SZ", Period: "daily", Limit: 10}
	if _, err := ep.GetBars(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if _, err := ep.GetBars(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("second call should be served from cache, upstream hit %d times", calls)
	}
}

func TestEastmoneyMinutePeriod(t *testing.T) {
	var gotKlt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKlt = r.URL.Query().Get("klt")
		fmt.Fprint(w, `{"data":{"klines":["2026-08-20 14:30,10,10.5,10.8,9.9,100,1000,1,1,0.5,1"]}}`)
	}))
	defer server.Close()

	ep := newTestEastmoney(server.URL)
	bars, err := ep.GetBars(context.Background(), KlineRequest{TsCode: "600000.SH", Period: "15"})
	if err != nil {
		t.Fatal(err)
	}
	if gotKlt != "15" {
		t.Errorf("klt = %q, want 15", gotKlt)
	}
	if bars[0].TradeDate != "202608201430" {
		t.Errorf("minute date should keep the time digits, got %q", bars[0].TradeDate)
	}
}

func TestEastmoneyGetBarsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"klines":[]}}`)
	}))
	defer server.Close()

	ep := newTestEastmoney(server.URL)
	if _, err := ep.GetBars(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "daily"}); err != ErrEmptyResult {
		t.Errorf("empty klines should yield ErrEmptyResult, got %v", err)
	}
}

func TestEastmoneyGetQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"f43":10.5,"f44":10.8,"f45":9.9,"f46":10.0,"f47":12345,"f48":130000,
			"f58":"平安银行","f60":10.2,"f168":1.2,"f169":0.3,"f170":2.94}}`)
	}))
	defer server.Close()

	ep := newTestEastmoney(server.URL)
	quote, err := ep.GetQuote(context.Background(), "000001.SZ")
	if err != nil {
		t.Fatal(err)
	}
	if quote.Close != 10.5 || quote.Name != "平安银行" {
		t.Errorf("quote mismatched: %+v", quote)
	}
	if quote.PreClose == nil || *quote.PreClose != 10.2 {
		t.Errorf("pre_close should be populated")
	}
	if quote.PctChg != 2.94 {
		t.Errorf("pct_chg = %f", quote.PctChg)
	}
}

func TestEastmoneyGetQuoteMissingPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"f58":"平安银行"}}`)
	}))
	defer server.Close()

	ep := newTestEastmoney(server.URL)
	if _, err := ep.GetQuote(context.Background(), "000001.SZ"); err != ErrEmptyResult {
		t.Errorf("quote without last price should fail, got %v", err)
	}
}

func TestEastmoneyListStocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"diff":[
			{"f2":10.5,"f3":1.2,"f12":"000001","f13":0,"f14":"平安银行"},
			{"f2":7.5,"f3":-0.5,"f12":"600000","f13":1,"f14":"浦发银行"}
		]}}`)
	}))
	defer server.Close()

	ep := newTestEastmoney(server.URL)
	stocks, err := ep.ListStocks(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(stocks) != 2 {
		t.Fatalf("expected 2 stocks, got %d", len(stocks))
	}
	if stocks[0].TsCode != "000001.SZ" || stocks[1].TsCode != "600000.SH" {
		t.Errorf("exchange suffix mapping wrong: %q %q", stocks[0].TsCode, stocks[1].TsCode)
	}

	filtered, err := ep.ListStocks(context.Background(), "浦发")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].Name != "浦发银行" {
		t.Errorf("keyword filter wrong: %+v", filtered)
	}
}

func TestEastmoneyUnsupportedPeriod(t *testing.T) {
	ep := newTestEastmoney("http://invalid.local")
	if _, err := ep.GetBars(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "hourly"}); err != ErrPeriodUnsupported {
		t.Errorf("unknown period should fail fast, got %v", err)
	}
}
