package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func newTestSina(serverURL string) *SinaProvider {
	sp := NewSinaProvider(newTestCache(), zap.NewNop())
	sp.quoteBase = serverURL
	sp.klineBase = serverURL
	return sp
}

func TestSinaGetBars(t *testing.T) {
	var gotScale string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotScale = r.URL.Query().Get("scale")
		fmt.Fprint(w, `dummy([
			{"day":"2026-08-20","open":"10.00","high":"10.80","low":"9.90","close":"10.50","volume":"12345"},
			{"day":"2026-08-21","open":"10.50","high":"10.70","low":"10.30","close":"10.40","volume":"11000"}
		])`)
	}))
	defer server.Close()

	sp := newTestSina(server.URL)
	bars, err := sp.GetBars(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "daily", Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if gotScale != "240" {
		t.Errorf("scale = %q, want 240 for daily", gotScale)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].TradeDate != "20260820" {
		t.Errorf("date should be digits only, got %q", bars[0].TradeDate)
	}
	// 第二根的涨跌幅由前收推算
	wantPct := (10.40 - 10.50) / 10.50 * 100
	if !floatNear(bars[1].PctChg, wantPct) {
		t.Errorf("pct_chg = %f, want %f", bars[1].PctChg, wantPct)
	}
	if bars[0].Source != "sina" {
		t.Errorf("source = %q", bars[0].Source)
	}
}

func TestSinaGetBarsDateRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `dummy([
			{"day":"2026-08-19","open":"10","high":"10","low":"10","close":"10","volume":"100"},
			{"day":"2026-08-20","open":"10","high":"10","low":"10","close":"10","volume":"100"},
			{"day":"2026-08-21","open":"10","high":"10","low":"10","close":"10","volume":"100"}
		])`)
	}))
	defer server.Close()

	sp := newTestSina(server.URL)
	bars, err := sp.GetBars(context.Background(), KlineRequest{
		TsCode: "000001.SZ", Period: "daily", StartDate: "20260820", EndDate: "20260820",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 || bars[0].TradeDate != "20260820" {
		t.Errorf("date range filter wrong: %+v", bars)
	}
}

func TestSinaRejectsOneMinute(t *testing.T) {
	sp := newTestSina("http://invalid.local")
	if _, err := sp.GetBars(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "1"}); err != ErrPeriodUnsupported {
		t.Errorf("sina has no 1-minute bars, got %v", err)
	}
	if sp.SupportsPeriod("1") {
		t.Errorf("SupportsPeriod(1) should be false")
	}
	if !sp.SupportsPeriod("5") {
		t.Errorf("SupportsPeriod(5) should be true")
	}
}

func TestSinaGetQuoteGBK(t *testing.T) {
	payload := `var hq_str_sz000001="平安银行,10.00,10.20,10.50,10.80,9.90,10.49,10.51,12345,130000.00,100,10.49,200,10.48,2026-08-21,15:00:00,00";`
	gbk, _, err := transform.Bytes(simplifiedchinese.GBK.NewEncoder(), []byte(payload))
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gbk)
	}))
	defer server.Close()

	sp := newTestSina(server.URL)
	quote, err := sp.GetQuote(context.Background(), "000001.SZ")
	if err != nil {
		t.Fatal(err)
	}
	if quote.Name != "平安银行" {
		t.Errorf("GBK name decode failed: %q", quote.Name)
	}
	if quote.Close != 10.50 {
		t.Errorf("close = %f", quote.Close)
	}
	if quote.PreClose == nil || *quote.PreClose != 10.20 {
		t.Errorf("pre_close wrong")
	}
	if !floatNear(quote.PctChg, (10.50-10.20)/10.20*100) {
		t.Errorf("pct_chg = %f", quote.PctChg)
	}
}

func TestSinaListStocksUnsupported(t *testing.T) {
	sp := newTestSina("http://invalid.local")
	if _, err := sp.ListStocks(context.Background(), ""); err != ErrNotSupported {
		t.Errorf("sina should not serve stock lists, got %v", err)
	}
}

func floatNear(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}
