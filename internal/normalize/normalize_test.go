package normalize

import "testing"

func TestFold(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello World", "hello world"},
		{"crlf", "Hello\r\nWorld", "hello\nworld"},
		{"cr only", "Hello\rWorld", "hello\nworld"},
		{"nbsp", "Hello\u00A0World", "hello world"},
		{"bom", "\uFEFFHello", "hello"},
		{"trim", "  Hello World  \r\n", "hello world"},
		{"line separator", "Hello\u2028World", "hello\nworld"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Fold(tc.in)
			if got != tc.want {
				t.Fatalf("Fold(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFoldIdempotent(t *testing.T) {
	inputs := []string{"Hello World", "  Hello World  \r\n", "MiXeD\tCase Text"}

	for _, in := range inputs {
		once := Fold(in)
		twice := Fold(once)

		if once != twice {
			t.Fatalf("Fold not idempotent: Fold(%q)=%q, Fold(that)=%q", in, once, twice)
		}
	}
}

func TestHashEquivalence(t *testing.T) {
	a := HashableText("Hello World")
	b := HashableText("  Hello World  \r\n")

	if a != b {
		t.Fatalf("normalized forms differ: %q vs %q", a, b)
	}
}
