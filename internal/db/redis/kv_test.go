package redis

import "testing"

func TestEscapeMatch(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"item:contacts:", "item:contacts:"},
		{"item:a*b:", `item:a\*b:`},
		{"item:a?b:", `item:a\?b:`},
		{"item:[ab]:", `item:\[ab\]:`},
		{`item:a\b:`, `item:a\\b:`},
		{"item:a^b:", `item:a\^b:`},
	}
	for _, c := range cases {
		if got := escapeMatch(c.in); got != c.want {
			t.Errorf("escapeMatch(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
