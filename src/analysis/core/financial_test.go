package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateChangeRatio(t *testing.T) {
	got := CalculateChangeRatio(decimal.NewFromInt(110), decimal.NewFromInt(100))
	if !got.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("change = %s, want 0.1", got)
	}
	if got := CalculateChangeRatio(decimal.NewFromInt(5), decimal.Zero); !got.IsZero() {
		t.Errorf("change against zero open = %s, want 0", got)
	}
}

func TestCalculateVolumeRatio(t *testing.T) {
	if got := CalculateVolumeRatio(decimal.NewFromInt(300), decimal.NewFromInt(200)); !got.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("ratio = %s, want 1.5", got)
	}
	if got := CalculateVolumeRatio(decimal.NewFromInt(300), decimal.Zero); !got.IsZero() {
		t.Errorf("ratio with unknown average = %s, want 0", got)
	}
}

func TestCalculateMean(t *testing.T) {
	got := CalculateMean([]decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(2)})
	if !got.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("mean = %s, want 1.5", got)
	}
	if !CalculateMean(nil).IsZero() {
		t.Errorf("mean of nothing must be zero")
	}
}
