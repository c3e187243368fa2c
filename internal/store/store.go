// Package store defines the document store contract shared by every backend.
//
// A store holds named collections of JSON documents. Every document belongs to
// one owner and carries the instant it describes, which is what range queries
// filter and order on.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned by Get when no document has the requested id.
var ErrNotFound = errors.New("document not found")

// Document is one stored record.
type Document struct {
	ID        string
	OwnerID   string
	Timestamp time.Time
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Direction orders query results by timestamp, ties broken by id.
type Direction int

const (
	Descending Direction = iota
	Ascending
)

// Cursor marks the last document of a previous page.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

// Query selects documents of one owner in a collection. From and To are
// inclusive bounds. At selects an exact instant and overrides From and To.
type Query struct {
	OwnerID string
	From    *time.Time
	To      *time.Time
	At      *time.Time
	Order   Direction
	Limit   int
	After   *Cursor
}

// Write is one document destined for a collection.
type Write struct {
	Collection string
	Doc        Document
}

// Key addresses one document.
type Key struct {
	Collection string
	ID         string
}

// Store is implemented by every backend. BatchPut and BatchDelete apply all
// of their entries or none. Put and BatchPut overwrite existing documents in
// place and keep their original CreatedAt. Deleting a missing id is not an
// error.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Put(ctx context.Context, collection string, doc Document) error
	BatchPut(ctx context.Context, writes []Write) error
	Delete(ctx context.Context, collection, id string) error
	BatchDelete(ctx context.Context, keys []Key) error
	Find(ctx context.Context, collection string, q Query) ([]Document, error)
	// Transact runs fn against a transactional view of the store. The
	// writes made through tx are committed when fn returns nil and
	// discarded otherwise.
	Transact(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Close() error
}

// Matches reports whether doc satisfies the owner, time and cursor filters of q.
func Matches(doc Document, q Query) bool {
	if q.OwnerID != "" && doc.OwnerID != q.OwnerID {
		return false
	}
	if q.At != nil {
		if !doc.Timestamp.Equal(*q.At) {
			return false
		}
	} else {
		if q.From != nil && doc.Timestamp.Before(*q.From) {
			return false
		}
		if q.To != nil && doc.Timestamp.After(*q.To) {
			return false
		}
	}
	if q.After != nil && !Less(*q.After, CursorOf(doc), q.Order) {
		return false
	}
	return true
}

// CursorOf returns the cursor positioned at doc.
func CursorOf(doc Document) Cursor {
	return Cursor{Timestamp: doc.Timestamp, ID: doc.ID}
}

// Less reports whether a sorts before b in the given direction.
func Less(a, b Cursor, order Direction) bool {
	if order == Ascending {
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

// Sort orders docs in place and applies the limit of q.
func Sort(docs []Document, q Query) []Document {
	sort.SliceStable(docs, func(i, j int) bool {
		return Less(CursorOf(docs[i]), CursorOf(docs[j]), q.Order)
	})
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

// DedupeWrites keeps the last write for every collection and id. The result
// follows the order in which each key was first seen.
func DedupeWrites(writes []Write) []Write {
	index := make(map[Key]int, len(writes))
	out := make([]Write, 0, len(writes))
	for _, w := range writes {
		k := Key{Collection: w.Collection, ID: w.Doc.ID}
		if i, ok := index[k]; ok {
			out[i] = w
			continue
		}
		index[k] = len(out)
		out = append(out, w)
	}
	return out
}
