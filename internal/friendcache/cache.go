// Package friendcache is a bounded LRU of friend records keyed by user id.
// It replaces ad hoc process-wide lookup maps: the cache is an explicit
// dependency injected into the services that resolve friend names.
package friendcache

import (
	"container/list"
	"sync"

	"github.com/siminyang/aboutxtime/internal/model"
)

const DefaultCapacity = 256

type entry struct {
	id     string
	friend model.Friend
}

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

// New returns a cache holding at most capacity entries; the least recently
// used entry is evicted on overflow. A non-positive capacity falls back to
// DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *Cache) Get(id string) (model.Friend, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[id]
	if !ok {
		return model.Friend{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).friend, true
}

func (c *Cache) Put(f model.Friend) {
	if f.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[f.ID]; ok {
		el.Value.(*entry).friend = f
		c.order.MoveToFront(el)
		return
	}
	c.items[f.ID] = c.order.PushFront(&entry{id: f.ID, friend: f})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).id)
	}
}

func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		c.order.Remove(el)
		delete(c.items, id)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
