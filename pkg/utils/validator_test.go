package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		wantErr bool
	}{
		{"valid BTCUSDT", "BTCUSDT", false},
		{"valid ETHUSDT", "ETHUSDT", false},
		{"valid with digits", "1INCHUSDT", false},
		{"empty", "", true},
		{"lowercase", "btcusdt", true},
		{"too short", "BTC", true},
		{"with slash", "BTC/USDT", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymbol(tt.symbol)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbol(%q) error = %v, wantErr %v", tt.symbol, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTimeframe(t *testing.T) {
	tests := []struct {
		name    string
		tf      string
		wantErr bool
	}{
		{"one minute", "1m", false},
		{"one hour", "1h", false},
		{"one day", "1d", false},
		{"one month", "1M", false},
		{"empty", "", true},
		{"unknown", "7m", true},
		{"wrong case", "1H", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimeframe(tt.tf)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTimeframe(%q) error = %v, wantErr %v", tt.tf, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePercent(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"typical", "0.5", false},
		{"full", "100", false},
		{"zero", "0", true},
		{"negative", "-1", true},
		{"over limit", "100.01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := decimal.NewFromString(tt.value)
			err := ValidatePercent("stop_loss", v)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePercent(%s) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePositivePeriod(t *testing.T) {
	if err := ValidatePositivePeriod("rsi_period", 14); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidatePositivePeriod("rsi_period", 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := ValidateAPIKey("abcdef0123456789abcdef"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateAPIKey("  "); err == nil {
		t.Error("expected error for blank key")
	}
	if err := ValidateAPIKey("short"); err == nil {
		t.Error("expected error for short key")
	}
}
