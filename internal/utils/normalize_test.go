package utils

import "testing"

func TestNormalizePlate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ba1pa1234", "BA1PA1234"},
		{"  ABC 1234  ", "ABC 1234"},
		{"abc\t1234", "ABC 1234"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := NormalizePlate(c.in); got != c.want {
			t.Errorf("NormalizePlate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
