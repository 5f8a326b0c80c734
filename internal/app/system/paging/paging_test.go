package paging

import (
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"/x", PageSize},
		{"/x?limit=10", 10},
		{"/x?limit=0", PageSize},
		{"/x?limit=-3", PageSize},
		{"/x?limit=abc", PageSize},
		{"/x?limit=100000", MaxPageSize},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.url, nil)
		if got := ParseLimit(r); got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	id := primitive.NewObjectID()
	c := Cursor{Key: 871026571, ID: id}
	got, ok := DecodeCursor(EncodeCursor(c))
	if !ok {
		t.Fatal("DecodeCursor returned ok=false")
	}
	if got != c {
		t.Errorf("got %+v, want %+v", got, c)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for _, s := range []string{"", "!!!", "bm9jb2xvbg", "YWJjOnh5eg"} {
		if _, ok := DecodeCursor(s); ok {
			t.Errorf("DecodeCursor(%q) ok=true, want false", s)
		}
	}
}

func TestKeysetAfter(t *testing.T) {
	if KeysetAfter("start_number", nil) != nil {
		t.Error("expected nil clause for nil cursor")
	}
	id := primitive.NewObjectID()
	got := KeysetAfter("start_number", &Cursor{Key: 5, ID: id})
	or, ok := got["$or"].([]bson.M)
	if !ok || len(or) != 2 {
		t.Fatalf("unexpected clause %v", got)
	}
	if or[1]["start_number"] != int64(5) {
		t.Errorf("tie clause key = %v, want 5", or[1]["start_number"])
	}
}

func TestBuild(t *testing.T) {
	type row struct {
		n  int64
		id primitive.ObjectID
	}
	key := func(r row) int64 { return r.n }
	oid := func(r row) primitive.ObjectID { return r.id }

	rows := []row{{1, primitive.NewObjectID()}, {2, primitive.NewObjectID()}, {3, primitive.NewObjectID()}}

	p := Build(rows, 3, key, oid)
	if len(p.Items) != 3 || p.NextCursor != "" {
		t.Errorf("full page: items=%d next=%q", len(p.Items), p.NextCursor)
	}

	p = Build(rows, 2, key, oid)
	if len(p.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(p.Items))
	}
	c, ok := DecodeCursor(p.NextCursor)
	if !ok || c.Key != 2 || c.ID != rows[1].id {
		t.Errorf("next cursor = %+v, want key 2", c)
	}

	var empty []row
	if p := Build(empty, 2, key, oid); p.Items == nil {
		t.Error("Items should be non-nil for JSON encoding")
	}
}
