package core

import (
	"encoding/json"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got.String(), err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseSignedAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{"0", "0"},
		{"-12,5", "-12.5"},
		{"1500.255", "1500.26"},
	}
	for _, tc := range cases {
		got, err := ParseSignedAmount(tc.in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Errorf("ParseSignedAmount(%q) = %s, want %s", tc.in, got.String(), tc.want)
		}
	}
	if _, err := ParseSignedAmount("x"); err == nil {
		t.Error("expected error for non-numeric balance")
	}
}

func TestMoney_JSON(t *testing.T) {
	var acc Account
	if err := json.Unmarshal([]byte(`{"id":1,"accountName":"Wallet","accountType":"CASH","balance":1234.5}`), &acc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if acc.Balance.String() != "1234.5" {
		t.Errorf("balance = %s, want 1234.5", acc.Balance.String())
	}

	out, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{NewMoney(19.99)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"amount":19.99}` {
		t.Errorf("marshal = %s, want bare number", out)
	}

	var m Money
	if err := json.Unmarshal([]byte("null"), &m); err != nil || !m.IsZero() {
		t.Errorf("null should decode to zero, got %s err=%v", m.String(), err)
	}
}

func TestMoney_Cents(t *testing.T) {
	if got := NewMoney(12.345).Cents(); got != 1235 {
		t.Errorf("Cents() = %d, want 1235", got)
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		amount   Money
		currency string
		want     string
	}{
		{NewMoney(1234.5), "USD", "$1,234.50"},
		{NewMoney(0), "", "$0.00"},
		{NewMoney(-12), "EUR", "-€12.00"},
		{NewMoney(1234567.891), "GBP", "£1,234,567.89"},
		{NewMoney(1500.4), "JPY", "¥1,500"},
		{NewMoney(999), "INR", "₹999.00"},
		{NewMoney(10), "CHF", "CHF 10.00"},
		{NewMoney(10), "usd", "$10.00"},
	}
	for _, tc := range cases {
		if got := FormatCurrency(tc.amount, tc.currency); got != tc.want {
			t.Errorf("FormatCurrency(%s, %q) = %q, want %q", tc.amount.String(), tc.currency, got, tc.want)
		}
	}
}

func TestTotalBalance(t *testing.T) {
	accounts := []Account{
		{Balance: NewMoney(100.10)},
		{Balance: NewMoney(-20.05)},
		{Balance: NewMoney(0.2)},
	}
	if got := TotalBalance(accounts).String(); got != "80.25" {
		t.Errorf("TotalBalance() = %s, want 80.25", got)
	}
}
