package render

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultTexturePoolSize is the number of uploaded frames kept as textures.
const DefaultTexturePoolSize = 3

// TextureDeleter frees textures evicted from a TexturePool.
type TextureDeleter interface {
	DeleteTexture(TextureID)
}

// TexturePool maps frame sequence numbers to uploaded textures. The least
// recently used entry is evicted when the pool is full and its texture
// deleted. The pool is safe for concurrent use; never call Add or Purge while
// holding the GraphicsContext lock, since eviction deletes through it.
type TexturePool struct {
	cache     *lru.Cache[uint64, TextureID]
	deleter   TextureDeleter
	evictions atomic.Uint64
}

// NewTexturePool builds a pool of size entries (<= 0 selects the default).
func NewTexturePool(size int, deleter TextureDeleter) (*TexturePool, error) {
	if size <= 0 {
		size = DefaultTexturePoolSize
	}
	p := &TexturePool{deleter: deleter}
	cache, err := lru.NewWithEvict(size, func(_ uint64, id TextureID) {
		p.evictions.Add(1)
		p.deleter.DeleteTexture(id)
	})
	if err != nil {
		return nil, fmt.Errorf("render: texture pool: %w", err)
	}
	p.cache = cache
	return p, nil
}

// Get returns the texture for seq and marks it recently used.
func (p *TexturePool) Get(seq uint64) (TextureID, bool) { return p.cache.Get(seq) }

// Peek returns the texture for seq without touching recency.
func (p *TexturePool) Peek(seq uint64) (TextureID, bool) { return p.cache.Peek(seq) }

// Add records id for seq. A different texture already stored under seq is
// deleted.
func (p *TexturePool) Add(seq uint64, id TextureID) {
	if old, ok := p.cache.Peek(seq); ok && old != id {
		p.deleter.DeleteTexture(old)
	}
	p.cache.Add(seq, id)
}

// Purge evicts every entry, deleting the textures.
func (p *TexturePool) Purge() { p.cache.Purge() }

// Len returns the number of cached textures.
func (p *TexturePool) Len() int { return p.cache.Len() }

// Evictions counts textures deleted by eviction or purge.
func (p *TexturePool) Evictions() uint64 { return p.evictions.Load() }
