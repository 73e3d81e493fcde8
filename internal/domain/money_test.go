package domain

import "testing"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		currency string
		want     int64
		wantErr  bool
	}{
		{name: "two decimals", value: "90.00", currency: "EUR", want: 9000},
		{name: "short fraction padded", value: "1.5", currency: "EUR", want: 150},
		{name: "no fraction", value: "42", currency: "USD", want: 4200},
		{name: "leading dot", value: ".75", currency: "USD", want: 75},
		{name: "zero exponent currency", value: "1200", currency: "JPY", want: 1200},
		{name: "three exponent currency", value: "1.234", currency: "BHD", want: 1234},
		{name: "negative", value: "-5.00", currency: "EUR", want: -500},
		{name: "lowercase currency", value: "3.10", currency: "eur", want: 310},
		{name: "too many decimals", value: "1.234", currency: "EUR", wantErr: true},
		{name: "fraction in zero exponent currency", value: "12.5", currency: "JPY", wantErr: true},
		{name: "empty", value: "", currency: "EUR", wantErr: true},
		{name: "garbage", value: "abc", currency: "EUR", wantErr: true},
		{name: "lone dot", value: ".", currency: "EUR", wantErr: true},
		{name: "missing currency", value: "1.00", currency: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.value, tt.currency)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Amount != tt.want {
				t.Fatalf("expected %d minor units, got %d", tt.want, got.Amount)
			}
		})
	}
}

func TestMoneyStringRoundTrip(t *testing.T) {
	inputs := []struct {
		value    string
		currency string
		want     string
	}{
		{"90.00", "EUR", "90.00"},
		{"1.5", "EUR", "1.50"},
		{"0.07", "USD", "0.07"},
		{"1200", "JPY", "1200"},
		{"1.234", "BHD", "1.234"},
		{"-5.00", "EUR", "-5.00"},
	}
	for _, in := range inputs {
		m, err := ParseAmount(in.value, in.currency)
		if err != nil {
			t.Fatalf("parse %q: %v", in.value, err)
		}
		if got := m.String(); got != in.want {
			t.Fatalf("expected %q, got %q", in.want, got)
		}
	}
}

func TestMoneySplitEqual(t *testing.T) {
	m := Money{Amount: 10000, Currency: "EUR"} // 100.00

	share, err := m.SplitEqual(3)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if share.Amount != 3333 {
		t.Fatalf("expected 3333, got %d", share.Amount)
	}

	// truncation shortfall is bounded by n-1 minor units
	if diff := m.Amount - share.Amount*3; diff < 0 || diff >= 3 {
		t.Fatalf("shortfall %d out of range", diff)
	}

	if _, err := m.SplitEqual(0); err == nil {
		t.Fatal("expected error for zero participants")
	}
}

func TestMoneyAdd(t *testing.T) {
	a := Money{Amount: 150, Currency: "EUR"}
	b := Money{Amount: 50, Currency: "EUR"}

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sum.Amount != 200 {
		t.Fatalf("expected 200, got %d", sum.Amount)
	}

	if _, err := a.Add(Money{Amount: 1, Currency: "USD"}); err == nil {
		t.Fatal("expected currency mismatch error")
	}
}
