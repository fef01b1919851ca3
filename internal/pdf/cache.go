package pdf

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// RenderKey identifies one rendered page.
type RenderKey struct {
	Document   string // hex sha256 of the document bytes
	Page       int
	Zoom       float64
	PixelRatio float64
}

// NewRenderKey derives the key for a render of data.
func NewRenderKey(data []byte, page int, zoom, pixelRatio float64) RenderKey {
	sum := sha256.Sum256(data)
	return RenderKey{
		Document:   hex.EncodeToString(sum[:]),
		Page:       page,
		Zoom:       zoom,
		PixelRatio: pixelRatio,
	}
}

func (k RenderKey) String() string {
	return fmt.Sprintf("%s/%d@%gx%g", k.Document[:min(12, len(k.Document))], k.Page, k.Zoom, k.PixelRatio)
}

// CacheStats reports cache usage.
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hitRate"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
}

// RenderCache is a least recently used cache of rendered pages. Concurrent
// lookups of a missing key share one render.
type RenderCache struct {
	mutex    sync.Mutex
	capacity int
	items    map[RenderKey]*cacheNode
	head     *cacheNode // most recently used
	tail     *cacheNode // least recently used
	inflight map[RenderKey]*call
	hits     int64
	misses   int64
}

type cacheNode struct {
	key   RenderKey
	value *RenderedPage
	prev  *cacheNode
	next  *cacheNode
}

type call struct {
	done  chan struct{}
	value *RenderedPage
	err   error
}

// NewRenderCache creates a cache holding up to capacity pages.
func NewRenderCache(capacity int) *RenderCache {
	if capacity <= 0 {
		capacity = 32
	}

	c := &RenderCache{
		capacity: capacity,
		items:    make(map[RenderKey]*cacheNode),
		inflight: make(map[RenderKey]*call),
		head:     &cacheNode{},
		tail:     &cacheNode{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the cached page for key and marks it recently used.
func (c *RenderCache) Get(key RenderKey) (*RenderedPage, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.getLocked(key)
}

func (c *RenderCache) getLocked(key RenderKey) (*RenderedPage, bool) {
	if node, ok := c.items[key]; ok {
		c.moveToFront(node)
		c.hits++
		return node.value, true
	}
	c.misses++
	return nil, false
}

// Put stores page under key, evicting the least recently used entry when
// full.
func (c *RenderCache) Put(key RenderKey, page *RenderedPage) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.putLocked(key, page)
}

func (c *RenderCache) putLocked(key RenderKey, page *RenderedPage) {
	if node, ok := c.items[key]; ok {
		node.value = page
		c.moveToFront(node)
		return
	}

	node := &cacheNode{key: key, value: page}
	c.addToFront(node)
	c.items[key] = node

	if len(c.items) > c.capacity {
		lru := c.tail.prev
		c.removeNode(lru)
		delete(c.items, lru.key)
	}
}

// Do returns the cached page for key, or runs render once for all callers
// waiting on the same key. Failed renders are not cached.
func (c *RenderCache) Do(key RenderKey, render func() (*RenderedPage, error)) (*RenderedPage, error) {
	c.mutex.Lock()
	if page, ok := c.getLocked(key); ok {
		c.mutex.Unlock()
		return page, nil
	}
	if pending, ok := c.inflight[key]; ok {
		c.mutex.Unlock()
		<-pending.done
		return pending.value, pending.err
	}
	pending := &call{done: make(chan struct{})}
	c.inflight[key] = pending
	c.mutex.Unlock()

	defer func() {
		c.mutex.Lock()
		delete(c.inflight, key)
		if pending.err == nil && pending.value != nil {
			c.putLocked(key, pending.value)
		}
		c.mutex.Unlock()
		close(pending.done)
	}()

	pending.err = fmt.Errorf("render of %s did not complete", key)
	pending.value, pending.err = render()
	return pending.value, pending.err
}

// Len returns the number of cached pages.
func (c *RenderCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.items)
}

// Clear drops every entry and resets the counters.
func (c *RenderCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[RenderKey]*cacheNode)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.hits = 0
	c.misses = 0
}

// Stats returns hit and miss counters.
func (c *RenderCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}
	return CacheStats{
		Hits:     c.hits,
		Misses:   c.misses,
		HitRate:  hitRate,
		Size:     len(c.items),
		Capacity: c.capacity,
	}
}

func (c *RenderCache) addToFront(node *cacheNode) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

func (c *RenderCache) removeNode(node *cacheNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}

func (c *RenderCache) moveToFront(node *cacheNode) {
	c.removeNode(node)
	c.addToFront(node)
}
