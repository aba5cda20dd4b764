package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{in: "19.99", want: 1999},
		{in: "14.98", want: 1498},
		{in: "0", want: 0},
		{in: "12", want: 1200},
		{in: "0.005", want: 1},
	}
	for _, tc := range cases {
		got, err := ToMinorUnits(decimal.RequireFromString(tc.in))
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestToMinorUnitsRejectsNegative(t *testing.T) {
	if _, err := ToMinorUnits(decimal.RequireFromString("-1.00")); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestSumAvoidsFloatDrift(t *testing.T) {
	total := Sum(decimal.RequireFromString("9.99"), decimal.RequireFromString("4.99"))
	if !total.Equal(decimal.RequireFromString("14.98")) {
		t.Fatalf("sum = %s", total)
	}
	if !FromMinorUnits(1498).Equal(total) {
		t.Fatalf("from minor units = %s", FromMinorUnits(1498))
	}
}
