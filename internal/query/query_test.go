package query

import (
	"reflect"
	"testing"
)

func i64(v int64) *int64 { return &v }

func TestParseBasic(t *testing.T) {
	q, err := Parse("woot:foo:bar=10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Tag != "woot" || q.Prop != "foo:bar" {
		t.Fatalf("got tag=%q prop=%q", q.Tag, q.Prop)
	}
	if !q.HasValu || q.Valu.(int64) != 10 {
		t.Fatalf("got valu=%v hasValu=%v", q.Valu, q.HasValu)
	}
}

func TestParseSections(t *testing.T) {
	q, err := Parse(`t:foo:bar@100,200#10*range=(1,2,3)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Tag != "t" || q.Prop != "foo:bar" {
		t.Fatalf("got tag=%q prop=%q", q.Tag, q.Prop)
	}
	if q.MinTime == nil || *q.MinTime != 100 {
		t.Fatalf("got mintime=%v", q.MinTime)
	}
	if q.MaxTime == nil || *q.MaxTime != 200 {
		t.Fatalf("got maxtime=%v", q.MaxTime)
	}
	if q.Limit == nil || *q.Limit != 10 {
		t.Fatalf("got limit=%v", q.Limit)
	}
	if q.By != "range" {
		t.Fatalf("got by=%q", q.By)
	}
	want := []any{int64(1), int64(2), int64(3)}
	if !reflect.DeepEqual(q.Valu, want) {
		t.Fatalf("got valu=%#v want %#v", q.Valu, want)
	}
}

func TestParseBasePrefixedLimit(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want int64
	}{
		{"t:p#0x10", 16},
		{"t:p#0o17", 15},
		{"t:p#0b101", 5},
		{"t:p#42", 42},
	} {
		q, err := Parse(tc.raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.raw, err)
		}
		if q.Limit == nil || *q.Limit != tc.want {
			t.Fatalf("%s: got limit=%v want %d", tc.raw, q.Limit, tc.want)
		}
	}
}

func TestParseStringLiteral(t *testing.T) {
	q, err := Parse(`t:foo:bar="hello world"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Valu != "hello world" {
		t.Fatalf("got valu=%v", q.Valu)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{
		"t:p=foo()",
		"t:p=bareword",
		"noTagOrProp",
		"t:p#notanumber",
	} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("%s: expected error, got none", raw)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, raw := range []string{
		"woot:foo:bar",
		"woot:foo:bar=10",
		"woot:foo:bar=-5",
		`woot:foo:bar="hi"`,
		"woot:foo:bar@100",
		"woot:foo:bar@100,200",
		"woot:foo:bar#10",
		"woot:foo:bar*range",
		"woot:foo:bar@100,200#10*range=(1,2,3)",
	} {
		q, err := Parse(raw)
		if err != nil {
			t.Fatalf("%s: parse error: %v", raw, err)
		}
		got := Unparse(q)
		if got != raw {
			t.Fatalf("round trip mismatch: parse(%q) then unparse => %q", raw, got)
		}
	}
}

func TestParseLowercasesTagAndProp(t *testing.T) {
	q, err := Parse("WOOT:FOO:BAR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Tag != "woot" || q.Prop != "foo:bar" {
		t.Fatalf("got tag=%q prop=%q", q.Tag, q.Prop)
	}
}
