package providers

import "testing"

func TestEastmoneySecID(t *testing.T) {
	cases := map[string]string{
		"600000.SH": "1.600000",
		"000001.SZ": "0.000001",
		"430047.BJ": "0.430047",
	}
	for in, want := range cases {
		got, err := EastmoneySecID(in)
		if err != nil {
			t.Fatalf("EastmoneySecID(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("EastmoneySecID(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := EastmoneySecID("600000"); err == nil {
		t.Errorf("ts_code without exchange suffix should be rejected")
	}
}

func TestSinaSymbol(t *testing.T) {
	got, err := SinaSymbol("600000.SH")
	if err != nil || got != "sh600000" {
		t.Errorf("SinaSymbol = %q, %v", got, err)
	}
	got, _ = SinaSymbol("000001.SZ")
	if got != "sz000001" {
		t.Errorf("SinaSymbol = %q", got)
	}
}

func TestGuessTsCode(t *testing.T) {
	cases := map[string]string{
		"600000":    "600000.SH",
		"000001":    "000001.SZ",
		"300750":    "300750.SZ",
		"430047":    "430047.BJ",
		"000001.sz": "000001.SZ",
	}
	for in, want := range cases {
		if got := GuessTsCode(in); got != want {
			t.Errorf("GuessTsCode(%q) = %q, want %q", in, got, want)
		}
	}
}
