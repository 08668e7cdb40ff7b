package query

import (
	"bytes"
	"testing"
)

func getter(fields map[string]string) FieldGetter {
	return func(name string) (string, bool) {
		v, ok := fields[name]
		return v, ok
	}
}

func TestCanonical_Deterministic(t *testing.T) {
	build := func() Node {
		return And(
			Or(
				Fuzzy("name", "jane", MatchSubstring|MatchIgnoreCase),
				Fuzzy("email", "jane", MatchSubstring|MatchIgnoreCase),
			),
			Compare("fileas", OpGE, "m"),
			Not(Exists("hidden")),
		)
	}
	a := Canonical(build())
	b := Canonical(build())
	if !bytes.Equal(a, b) {
		t.Fatalf("identical trees encoded differently:\n%x\n%x", a, b)
	}
}

func TestCanonical_DistinguishesTrees(t *testing.T) {
	cases := []struct {
		name string
		a, b Node
	}{
		{"operator", Compare("f", OpGE, "m"), Compare("f", OpGT, "m")},
		{"field-value split", Compare("ab", OpEQ, "c"), Compare("a", OpEQ, "bc")},
		{"flags", Fuzzy("f", "x", MatchSubstring), Fuzzy("f", "x", MatchPrefix)},
		{"grouping", And(Exists("a"), Exists("b")), And(And(Exists("a"), Exists("b")))},
		{"and vs or", And(Exists("a")), Or(Exists("a"))},
	}
	for _, tc := range cases {
		if bytes.Equal(Canonical(tc.a), Canonical(tc.b)) {
			t.Errorf("%s: distinct trees encoded identically", tc.name)
		}
	}
}

func TestEval_EmptyGroups(t *testing.T) {
	get := getter(nil)
	if !Eval(And(), get) {
		t.Error("empty And must be vacuously true")
	}
	if Eval(Or(), get) {
		t.Error("empty Or must be false")
	}
}

func TestEval_FuzzySubstringIgnoreCase(t *testing.T) {
	get := getter(map[string]string{"name": "Jane Doe"})
	if !Eval(Fuzzy("name", "jane", MatchSubstring|MatchIgnoreCase), get) {
		t.Error("case-insensitive substring should match")
	}
	if Eval(Fuzzy("name", "jane", MatchSubstring), get) {
		t.Error("case-sensitive substring should not match")
	}
	if Eval(Fuzzy("name", "anet", MatchPrefix|MatchIgnoreCase), get) {
		t.Error("prefix match should anchor at the start")
	}
	if Eval(Fuzzy("missing", "jane", MatchSubstring|MatchIgnoreCase), get) {
		t.Error("absent field should not match")
	}
}

func TestEval_Compare(t *testing.T) {
	get := getter(map[string]string{"fileas": "miller"})
	cases := []struct {
		op   CompareOp
		v    string
		want bool
	}{
		{OpGE, "m", true},
		{OpLT, "n", true},
		{OpGE, "n", false},
		{OpLT, "m", false},
		{OpEQ, "miller", true},
		{OpNE, "miller", false},
		{OpLE, "miller", true},
		{OpGT, "miller", false},
	}
	for _, tc := range cases {
		if got := Eval(Compare("fileas", tc.op, tc.v), get); got != tc.want {
			t.Errorf("fileas %s %q = %v, want %v", tc.op, tc.v, got, tc.want)
		}
	}
}

func TestEval_ExistsAndNot(t *testing.T) {
	get := getter(map[string]string{"email": "x@y"})
	if !Eval(Exists("email"), get) {
		t.Error("present field must exist")
	}
	if Eval(Exists("phone"), get) {
		t.Error("absent field must not exist")
	}
	if !Eval(Not(Exists("phone")), get) {
		t.Error("negation of absent field must hold")
	}
}

func TestEval_Nested(t *testing.T) {
	// All terms must appear, each in any field.
	node := And(
		Or(
			Fuzzy("name", "jane", MatchSubstring|MatchIgnoreCase),
			Fuzzy("email", "jane", MatchSubstring|MatchIgnoreCase),
		),
		Or(
			Fuzzy("name", "doe", MatchSubstring|MatchIgnoreCase),
			Fuzzy("email", "doe", MatchSubstring|MatchIgnoreCase),
		),
	)
	if !Eval(node, getter(map[string]string{"name": "Jane Doe"})) {
		t.Error("both terms present in one field should match")
	}
	if Eval(node, getter(map[string]string{"name": "Jane", "email": "j@x"})) {
		t.Error("missing second term should not match")
	}
	if !Eval(node, getter(map[string]string{"name": "Doe", "email": "jane@x"})) {
		t.Error("terms split across fields should match")
	}
}
