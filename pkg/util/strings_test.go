package util

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	for in, want := range map[string]string{"btc-usdt": "BTCUSDT", " ETH/USD ": "ETHUSD", "SOL_USDT": "SOLUSDT"} {
		if got := NormalizeSymbol(in); got != want {
			t.Fatalf("NormalizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
	if ParseIntDefault("x", 7) != 7 || ParseIntDefault("12", 7) != 12 {
		t.Fatal("ParseIntDefault")
	}
}
