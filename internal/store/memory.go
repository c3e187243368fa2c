package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is a process-local Store. Transactions hold the store lock for
// their whole duration, so fn must only use the tx it is given.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]Document
	now  func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]map[string]Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(collection, id)
}

func (m *Memory) Put(ctx context.Context, collection string, doc Document) error {
	if err := validate(collection, doc); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, doc, nil)
	return nil
}

func (m *Memory) BatchPut(ctx context.Context, writes []Write) error {
	for _, w := range writes {
		if err := validate(w.Collection, w.Doc); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range DedupeWrites(writes) {
		m.put(w.Collection, w.Doc, nil)
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.del(collection, id, nil)
	return nil
}

func (m *Memory) BatchDelete(ctx context.Context, keys []Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.del(k.Collection, k.ID, nil)
	}
	return nil
}

func (m *Memory) Find(ctx context.Context, collection string, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.find(collection, q), nil
}

func (m *Memory) Transact(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{m: m}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) get(collection, id string) (*Document, error) {
	doc, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := clone(doc)
	return &cp, nil
}

func (m *Memory) put(collection string, doc Document, undo *[]undoEntry) {
	coll, ok := m.data[collection]
	if !ok {
		coll = make(map[string]Document)
		m.data[collection] = coll
	}
	prev, existed := coll[doc.ID]
	if undo != nil {
		*undo = append(*undo, undoEntry{collection: collection, id: doc.ID, prev: prev, existed: existed})
	}

	now := m.now()
	doc = clone(doc)
	doc.Timestamp = doc.Timestamp.UTC()
	doc.UpdatedAt = now
	doc.CreatedAt = now
	if existed {
		doc.CreatedAt = prev.CreatedAt
	}
	coll[doc.ID] = doc
}

func (m *Memory) del(collection, id string, undo *[]undoEntry) {
	prev, existed := m.data[collection][id]
	if !existed {
		return
	}
	if undo != nil {
		*undo = append(*undo, undoEntry{collection: collection, id: id, prev: prev, existed: true})
	}
	delete(m.data[collection], id)
}

func (m *Memory) find(collection string, q Query) []Document {
	out := make([]Document, 0)
	for _, doc := range m.data[collection] {
		if Matches(doc, q) {
			out = append(out, clone(doc))
		}
	}
	return Sort(out, q)
}

type undoEntry struct {
	collection string
	id         string
	prev       Document
	existed    bool
}

// memoryTx runs with the parent lock already held.
type memoryTx struct {
	m    *Memory
	undo []undoEntry
}

func (tx *memoryTx) Get(ctx context.Context, collection, id string) (*Document, error) {
	return tx.m.get(collection, id)
}

func (tx *memoryTx) Put(ctx context.Context, collection string, doc Document) error {
	if err := validate(collection, doc); err != nil {
		return err
	}
	tx.m.put(collection, doc, &tx.undo)
	return nil
}

func (tx *memoryTx) BatchPut(ctx context.Context, writes []Write) error {
	for _, w := range writes {
		if err := validate(w.Collection, w.Doc); err != nil {
			return err
		}
	}
	for _, w := range DedupeWrites(writes) {
		tx.m.put(w.Collection, w.Doc, &tx.undo)
	}
	return nil
}

func (tx *memoryTx) Delete(ctx context.Context, collection, id string) error {
	tx.m.del(collection, id, &tx.undo)
	return nil
}

func (tx *memoryTx) BatchDelete(ctx context.Context, keys []Key) error {
	for _, k := range keys {
		tx.m.del(k.Collection, k.ID, &tx.undo)
	}
	return nil
}

func (tx *memoryTx) Find(ctx context.Context, collection string, q Query) ([]Document, error) {
	return tx.m.find(collection, q), nil
}

// Transact inside a transaction joins the outer one.
func (tx *memoryTx) Transact(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, tx)
}

func (tx *memoryTx) Close() error {
	return nil
}

func (tx *memoryTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		u := tx.undo[i]
		if u.existed {
			tx.m.data[u.collection][u.id] = u.prev
		} else {
			delete(tx.m.data[u.collection], u.id)
		}
	}
	tx.undo = nil
}

func validate(collection string, doc Document) error {
	if collection == "" {
		return fmt.Errorf("collection is required")
	}
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	return nil
}

func clone(doc Document) Document {
	if doc.Data != nil {
		data := make([]byte, len(doc.Data))
		copy(data, doc.Data)
		doc.Data = data
	}
	return doc
}
