// 包 cache：已解析布局的缓存（Redis 优先，进程内 LRU 兜底）
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"floormap/internal/layout"
	"floormap/internal/logger"
	"floormap/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// 布局缓存键的组成部分；Room 为空表示整层
type Key struct {
	Building string
	Floor    string
	Room     string
	Detail   bool
	GPS      bool
}

func (k Key) mode() string {
	m := "overview"
	if k.Detail {
		m = "detail"
	}
	if k.GPS {
		m += "+gps"
	}
	return m
}

func (k Key) room() string {
	if k.Room == "" {
		return "all"
	}
	return k.Room
}

func versionKey(building, floor string) string {
	return "layoutver:" + building + ":" + floor
}

// 文档注释：布局缓存
// 背景：布局解析是纯计算，但整层资产多时仍有开销；写入（摆放/GPS）递增楼层版本号使旧条目失效，
// 旧版本条目不主动删除，等待 TTL 过期。
// 约束：Redis 出错按未命中处理，不影响请求。
type Layouts struct {
	rc  *redis.Client
	lru *LRU
	ttl time.Duration

	mu       sync.Mutex
	versions map[string]int64
}

func NewLayouts(rc *redis.Client, ttl time.Duration, capacity int) *Layouts {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	c := &Layouts{rc: rc, ttl: ttl, versions: make(map[string]int64)}
	if rc == nil {
		c.lru = NewLRU(capacity, ttl)
	}
	return c
}

func (c *Layouts) backend() string {
	if c.rc != nil {
		return "redis"
	}
	return "local"
}

func (c *Layouts) version(ctx context.Context, building, floor string) int64 {
	if c.rc == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.versions[versionKey(building, floor)]
	}
	s, err := c.rc.Get(ctx, versionKey(building, floor)).Result()
	if err != nil {
		return 0
	}
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

// 文档注释：生成带楼层版本号的缓存键
// 约束：同一次请求的 Get 与 Set 必须使用同一个键，且在读取资产之前生成；
// 读库期间发生的 Invalidate 使本次结果写入旧版本键，不会被后续请求读到。
func (c *Layouts) KeyFor(ctx context.Context, k Key) string {
	return fmt.Sprintf("layout:%s:%s:v%d:%s:%s", k.Building, k.Floor, c.version(ctx, k.Building, k.Floor), k.room(), k.mode())
}

func (c *Layouts) Get(ctx context.Context, key string) ([]layout.Result, bool) {
	var raw []byte
	if c.rc != nil {
		s, err := c.rc.Get(ctx, key).Result()
		if err != nil {
			if err != redis.Nil {
				logger.L().Debug("layout_cache_get_error", "key", key, "err", err)
			}
			metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
			return nil, false
		}
		raw = []byte(s)
	} else {
		b, ok := c.lru.Get(key)
		if !ok {
			metrics.CacheMissesTotal.WithLabelValues("local").Inc()
			return nil, false
		}
		raw = b
	}
	var out []layout.Result
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.L().Warn("layout_cache_decode_error", "key", key, "err", err)
		metrics.CacheMissesTotal.WithLabelValues(c.backend()).Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.WithLabelValues(c.backend()).Inc()
	return out, true
}

func (c *Layouts) Set(ctx context.Context, key string, v []layout.Result) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if c.rc == nil {
		c.lru.Set(key, b)
		return
	}
	if err := c.rc.Set(ctx, key, string(b), c.ttl).Err(); err != nil {
		logger.L().Debug("layout_cache_set_error", "key", key, "err", err)
	}
}

// Invalidate：递增楼层版本号，该楼层所有已缓存布局随即失效
func (c *Layouts) Invalidate(ctx context.Context, building, floor string) {
	vk := versionKey(building, floor)
	if c.rc == nil {
		c.mu.Lock()
		c.versions[vk]++
		c.mu.Unlock()
		return
	}
	if err := c.rc.Incr(ctx, vk).Err(); err != nil {
		logger.L().Warn("layout_cache_invalidate_error", "key", vk, "err", err)
	}
}
