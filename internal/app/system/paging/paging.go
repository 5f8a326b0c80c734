// internal/app/system/paging/paging.go
package paging

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the default number of rows returned by list endpoints.
const PageSize = 50

// MaxPageSize caps the "limit" query parameter.
const MaxPageSize = 200

// ParseLimit reads the "limit" query parameter, clamped to [1, MaxPageSize].
// Returns PageSize if absent or invalid.
func ParseLimit(r *http.Request) int {
	s := query.Get(r, "limit")
	if s == "" {
		return PageSize
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return PageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// Cursor is a keyset position over a numeric sort key with _id as tiebreaker.
type Cursor struct {
	Key int64
	ID  primitive.ObjectID
}

// EncodeCursor returns an opaque, URL-safe token for c.
func EncodeCursor(c Cursor) string {
	raw := strconv.FormatInt(c.Key, 10) + ":" + c.ID.Hex()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(s string) (Cursor, bool) {
	if s == "" {
		return Cursor{}, false
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, false
	}
	key, hex, ok := strings.Cut(string(b), ":")
	if !ok {
		return Cursor{}, false
	}
	n, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return Cursor{}, false
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return Cursor{}, false
	}
	return Cursor{Key: n, ID: id}, true
}

// ParseAfter decodes the "after" query parameter. Invalid tokens restart
// from the first page.
func ParseAfter(r *http.Request) *Cursor {
	if c, ok := DecodeCursor(query.Get(r, "after")); ok {
		return &c
	}
	return nil
}

// KeysetAfter returns the filter clause selecting rows strictly after c in
// (sortField, _id) ascending order. Returns nil if c is nil.
func KeysetAfter(sortField string, c *Cursor) bson.M {
	if c == nil {
		return nil
	}
	return bson.M{"$or": []bson.M{
		{sortField: bson.M{"$gt": c.Key}},
		{sortField: c.Key, "_id": bson.M{"$gt": c.ID}},
	}}
}

// FindOptions sorts ascending by (sortField, _id) and fetches limit+1 rows
// so the caller can tell whether another page exists.
func FindOptions(sortField string, limit int) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: sortField, Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit + 1))
}

// Page is the JSON envelope for keyset-paged lists.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Build trims the look-ahead row and computes the next cursor from the last
// row kept.
func Build[T any](rows []T, limit int, keyFn func(T) int64, idFn func(T) primitive.ObjectID) Page[T] {
	if rows == nil {
		rows = []T{}
	}
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	rows = rows[:limit]
	last := rows[len(rows)-1]
	return Page[T]{
		Items:      rows,
		NextCursor: EncodeCursor(Cursor{Key: keyFn(last), ID: idFn(last)}),
	}
}
