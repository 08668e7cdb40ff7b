package restriction

import (
	"testing"

	"github.com/groupmesh/incsearch/internal/domain/query"
	"github.com/groupmesh/incsearch/internal/domain/schema"
)

func bucketFields(t *testing.T, names ...string) []schema.Field {
	t.Helper()
	s := schema.New("test", names, nil, names, "")
	return s.BucketFields()
}

func TestBucket_NoRestriction(t *testing.T) {
	fields := bucketFields(t, "fileas")
	for _, ch := range []string{"", "..."} {
		node := Bucket(fields, ch)
		and, ok := node.(*query.AndNode)
		if !ok || len(and.Children()) != 0 {
			t.Errorf("bucket %q: want empty And, got %s", ch, query.String(node))
		}
	}
}

func TestBucket_Digits(t *testing.T) {
	node := Bucket(bucketFields(t, "fileas"), "123")
	get := func(v string) query.FieldGetter {
		return func(string) (string, bool) { return v, true }
	}
	if !query.Eval(node, get("42nd Street Corp")) {
		t.Error("digit-leading value should fall in the 123 bucket")
	}
	if query.Eval(node, get("Acme")) {
		t.Error("letter-leading value should not fall in the 123 bucket")
	}
}

func TestBucket_HalfOpenRange(t *testing.T) {
	node := Bucket(bucketFields(t, "fileas"), "m")
	want := query.And(
		query.Compare("fileas", query.OpGE, "m"),
		query.Compare("fileas", query.OpLT, "n"),
	)
	if string(query.Canonical(node)) != string(query.Canonical(want)) {
		t.Errorf("bucket 'm' = %s, want %s", query.String(node), query.String(want))
	}
}

func TestBucket_ZIsOneSided(t *testing.T) {
	node := Bucket(bucketFields(t, "fileas"), "z")
	want := query.Compare("fileas", query.OpGE, "z")
	if string(query.Canonical(node)) != string(query.Canonical(want)) {
		t.Errorf("bucket 'z' = %s, want one-sided %s", query.String(node), query.String(want))
	}

	// z catches everything lexically at or beyond "z".
	get := func(v string) query.FieldGetter {
		return func(string) (string, bool) { return v, true }
	}
	if !query.Eval(node, get("zimmermann")) {
		t.Error("z bucket should catch z itself")
	}
	if !query.Eval(node, get("émile")) {
		t.Error("z bucket should catch values lexically beyond z")
	}
	if query.Eval(node, get("yates")) {
		t.Error("z bucket should not catch values below z")
	}
}

func TestBucket_MultipleFieldsORCombined(t *testing.T) {
	fields := bucketFields(t, "fileas", "display_name", "email_address_1")
	node := Bucket(fields, "m")
	or, ok := node.(*query.OrNode)
	if !ok {
		t.Fatalf("want Or over fields, got %s", query.String(node))
	}
	if len(or.Children()) != 3 {
		t.Fatalf("want 3 alternatives, got %d", len(or.Children()))
	}

	// A row matching on any one field falls in the bucket.
	get := func(name string) (string, bool) {
		if name == "email_address_1" {
			return "miller@example.com", true
		}
		return "", false
	}
	if !query.Eval(node, get) {
		t.Error("row matching one field should fall in the bucket")
	}
}
