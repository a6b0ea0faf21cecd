package similarity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
)

// DefaultCacheSize bounds the number of cached query embeddings.
const DefaultCacheSize = 256

// VectorIndex keeps one embedding per indexid in memory and ranks by
// cosine similarity. Query embeddings are cached.
type VectorIndex struct {
	mu       sync.RWMutex
	embedder Embedder
	vectors  map[int64][]float32
	cache    *lru.Cache[string, []float32]
	ready    bool
}

// NewVectorIndex creates an empty index. It is not ready until Load has
// been called.
func NewVectorIndex(embedder Embedder, cacheSize int) (*VectorIndex, error) {
	if embedder == nil {
		embedder = NewHashEmbedder(DefaultDims)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	return &VectorIndex{
		embedder: embedder,
		vectors:  make(map[int64][]float32),
		cache:    cache,
	}, nil
}

func (v *VectorIndex) Upsert(docs []Document) error {
	vecs := make([][]float32, len(docs))
	for i, d := range docs {
		vecs[i] = v.embedder.Embed(d.Text)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, d := range docs {
		v.vectors[d.IndexID] = vecs[i]
	}
	return nil
}

func (v *VectorIndex) Delete(indexids []int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range indexids {
		delete(v.vectors, id)
	}
	return nil
}

// Search returns up to limit hits with positive similarity, best first.
// Ties are broken by ascending indexid.
func (v *VectorIndex) Search(query string, limit int) ([]Hit, error) {
	q, ok := v.cache.Get(query)
	if !ok {
		q = v.embedder.Embed(query)
		v.cache.Add(query, q)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.ready {
		return nil, ErrNotReady
	}

	var hits []Hit
	for id, vec := range v.vectors {
		if score := CosineSimilarity(q, vec); score > 0 {
			hits = append(hits, Hit{IndexID: id, Score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].IndexID < hits[j].IndexID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Reset drops every vector. The index stays ready.
func (v *VectorIndex) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors = make(map[int64][]float32)
}

func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}

func (v *VectorIndex) Ready() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ready
}

type snapshot struct {
	Dims    int                 `json:"dims"`
	Vectors map[int64][]float32 `json:"vectors"`
}

// Save writes the index as zstd-compressed JSON, replacing path atomically.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	snap := snapshot{Dims: v.embedder.Dims(), Vectors: v.vectors}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("flush index: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load replaces the index contents with the file at path and marks the
// index ready. A missing file yields an empty ready index. Vectors built
// with different dimensions are discarded so a later rebuild can refill
// them.
func (v *VectorIndex) Load(path string) error {
	vectors := make(map[int64][]float32)

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("open index: %w", err)
	default:
		defer f.Close()
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("index reader: %w", err)
		}
		defer zr.Close()

		var snap snapshot
		if err := json.NewDecoder(zr).Decode(&snap); err != nil {
			return fmt.Errorf("decode index: %w", err)
		}
		if snap.Dims == v.embedder.Dims() {
			vectors = snap.Vectors
		} else {
			slog.Warn("similarity index dimensions changed, discarding vectors",
				"path", path, "stored", snap.Dims, "current", v.embedder.Dims())
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if vectors == nil {
		vectors = make(map[int64][]float32)
	}
	v.vectors = vectors
	v.ready = true
	return nil
}
