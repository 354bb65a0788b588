package domain

import (
	"errors"
	"testing"
)

func TestParsePair(t *testing.T) {
	tests := []struct {
		input   string
		want    Pair
		wantErr bool
	}{
		{"BTC/USDT", Pair{Base: "BTC", Quote: "USDT"}, false},
		{"eth/usdt", Pair{Base: "ETH", Quote: "USDT"}, false},
		{"BTCUSDT", Pair{}, true},
		{"/USDT", Pair{}, true},
		{"BTC/", Pair{}, true},
		{"", Pair{}, true},
	}

	for _, tt := range tests {
		got, err := ParsePair(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePair(%q) expected error, got %v", tt.input, got)
			}
			if err != nil && !errors.Is(err, ErrInvalidPair) {
				t.Errorf("ParsePair(%q) error should wrap ErrInvalidPair, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePair(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePair(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestPair_Symbols(t *testing.T) {
	p := Pair{Base: "BTC", Quote: "USDT"}

	if p.String() != "BTC/USDT" {
		t.Errorf("String() = %q", p.String())
	}
	if p.Symbol() != "BTCUSDT" {
		t.Errorf("Symbol() = %q", p.Symbol())
	}
	if p.StreamSymbol() != "btcusdt" {
		t.Errorf("StreamSymbol() = %q", p.StreamSymbol())
	}
}
