package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestTushare(serverURL, token string) *TushareProvider {
	tp := NewTushareProvider(token, newTestCache(), zap.NewNop())
	tp.apiBase = serverURL
	return tp
}

func TestTushareGetBars(t *testing.T) {
	var gotAPI string
	var gotParams map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			APIName string            `json:"api_name"`
			Token   string            `json:"token"`
			Params  map[string]string `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		gotAPI = payload.APIName
		gotParams = payload.Params
		// tushare按日期倒序返回
		fmt.Fprint(w, `{"code":0,"msg":"","data":{
			"fields":["ts_code","trade_date","open","high","low","close","vol","amount","pct_chg"],
			"items":[
				["000001.SZ","20260821",10.50,10.70,10.30,10.40,11000,115000.0,-0.95],
				["000001.SZ","20260820",10.00,10.80,9.90,10.50,12345,130000.0,5.00]
			]}}`)
	}))
	defer server.Close()

	tp := newTestTushare(server.URL, "test-token")
	bars, err := tp.GetBars(context.Background(), KlineRequest{
		TsCode: "000001.SZ", Period: "daily", StartDate: "20260801", EndDate: "20260822",
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotAPI != "daily" {
		t.Errorf("api_name = %q, want daily", gotAPI)
	}
	if gotParams["ts_code"] != "000001.SZ" || gotParams["start_date"] != "20260801" {
		t.Errorf("params wrong: %v", gotParams)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].TradeDate != "20260820" || bars[1].TradeDate != "20260821" {
		t.Errorf("bars should be sorted ascending: %q %q", bars[0].TradeDate, bars[1].TradeDate)
	}
	if bars[0].Source != "tushare" {
		t.Errorf("source = %q", bars[0].Source)
	}
}

func TestTushareGetBarsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"msg":"","data":{
			"fields":["ts_code","trade_date","open","high","low","close","vol","amount","pct_chg"],
			"items":[
				["000001.SZ","20260821",1,1,1,3,1,1,0],
				["000001.SZ","20260820",1,1,1,2,1,1,0],
				["000001.SZ","20260819",1,1,1,1,1,1,0]
			]}}`)
	}))
	defer server.Close()

	tp := newTestTushare(server.URL, "tok")
	bars, err := tp.GetBars(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "daily", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	// limit保留最新的两根
	if len(bars) != 2 || bars[0].Close != 2 || bars[1].Close != 3 {
		t.Errorf("limit should keep the latest bars: %+v", bars)
	}
}

func TestTushareRejectsMinutePeriods(t *testing.T) {
	tp := newTestTushare("http://invalid.local", "tok")
	for _, p := range []string{"1", "5", "15", "30", "60"} {
		if _, err := tp.GetBars(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: p}); err != ErrPeriodUnsupported {
			t.Errorf("period %q should be rejected synchronously, got %v", p, err)
		}
		if tp.SupportsPeriod(p) {
			t.Errorf("SupportsPeriod(%q) should be false", p)
		}
	}
}

func TestTushareAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":2002,"msg":"token invalid","data":null}`)
	}))
	defer server.Close()

	tp := newTestTushare(server.URL, "bad-token")
	if _, err := tp.GetBars(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "daily"}); err == nil {
		t.Errorf("non-zero api code should surface as error")
	}
}

func TestTushareListStocksWithoutToken(t *testing.T) {
	tp := newTestTushare("http://invalid.local", "")
	stocks, err := tp.ListStocks(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(stocks) == 0 {
		t.Fatalf("missing token should fall back to the builtin hot list")
	}

	filtered, err := tp.ListStocks(context.Background(), "茅台")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].TsCode != "600519.SH" {
		t.Errorf("keyword filter on hot list wrong: %+v", filtered)
	}
}

func TestTushareGetQuoteFromDaily(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"msg":"","data":{
			"fields":["ts_code","trade_date","open","high","low","close","vol","amount","pct_chg"],
			"items":[
				["000001.SZ","20260821",10.50,10.70,10.30,10.40,11000,115000.0,-0.95],
				["000001.SZ","20260820",10.00,10.80,9.90,10.50,12345,130000.0,5.00]
			]}}`)
	}))
	defer server.Close()

	tp := newTestTushare(server.URL, "tok")
	quote, err := tp.GetQuote(context.Background(), "000001.SZ")
	if err != nil {
		t.Fatal(err)
	}
	if quote.Close != 10.40 {
		t.Errorf("quote close should be the latest daily close, got %f", quote.Close)
	}
	if quote.PreClose == nil || *quote.PreClose != 10.50 {
		t.Errorf("pre_close should come from the prior bar")
	}
	if !floatNear(quote.Change, 10.40-10.50) {
		t.Errorf("change = %f", quote.Change)
	}
}
