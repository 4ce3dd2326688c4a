package core

import "testing"

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
		{" 2.50 ", "2.5", true},
		{"$1,234.56", "1234.56", true},
		{"1,234", "1234", true},
		{"-12.5", "-12.5", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1e3", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{"$", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(amt(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"5", "$5.00"},
		{"12.3", "$12.30"},
		{"999.999", "$1,000.00"},
		{"1234.56", "$1,234.56"},
		{"1234567.8", "$1,234,567.80"},
		{"-12", "-$12.00"},
		{"-0.001", "$0.00"},
	}
	for _, tc := range cases {
		if got := FormatCurrency(amt(tc.in)); got != tc.want {
			t.Errorf("FormatCurrency(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
