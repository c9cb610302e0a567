package cache

import (
	"container/list"
	"sync"
	"time"
)

// 文档注释：本地 LRU 缓存
// 背景：未配置 Redis 时的布局缓存；条目带 TTL，过期条目在读取时淘汰。
// 约束：容量按条目数计算；值为已序列化的 JSON，调用方自行解码。
type LRU struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
	now  func() time.Time
}

type entry struct {
	k   string
	v   []byte
	exp time.Time
}

func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 1024
	}
	return &LRU{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[string]*list.Element), now: time.Now}
}

func (c *LRU) Get(k string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[k]
	if !ok {
		return nil, false
	}
	it := e.Value.(entry)
	if c.now().Before(it.exp) {
		c.lst.MoveToFront(e)
		return it.v, true
	}
	c.lst.Remove(e)
	delete(c.dict, k)
	return nil, false
}

func (c *LRU) Set(k string, v []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := entry{k: k, v: v, exp: c.now().Add(c.ttl)}
	if e, ok := c.dict[k]; ok {
		e.Value = it
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(it)
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(entry).k)
		c.lst.Remove(back)
	}
}

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}
