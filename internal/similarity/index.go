// Package similarity provides the in-process similarity index that ranks
// sections for the content store.
package similarity

import "errors"

// ErrNotReady is returned by Search before the index has been loaded.
var ErrNotReady = errors.New("similarity index not ready")

// Document is one section submitted for indexing.
type Document struct {
	IndexID int64
	Text    string
}

// Hit is a ranked match.
type Hit struct {
	IndexID int64
	Score   float64
}

// Index ranks documents against a free-text query.
type Index interface {
	Upsert(docs []Document) error
	Delete(indexids []int64) error
	Search(query string, limit int) ([]Hit, error)
	Reset()
	Count() int
	Ready() bool
	Save(path string) error
	Load(path string) error
}
