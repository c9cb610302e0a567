package middleware

import (
	"net/http"
	"sync"
	"time"

	"floormap/internal/logger"
	"floormap/internal/metrics"
	"floormap/internal/utils"

	"github.com/google/uuid"
)

// 文档注释：令牌桶限流（每秒）
// 背景：拖动释放与批量 GPS 写入集中到达时保护数据库；按环境变量开关与速率配置。
// 约束：不排队，超限直接返回 429。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	mu       sync.Mutex
	now      func() time.Time
}

func NewTokenBucket(qps int) *TokenBucket {
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix(), now: time.Now}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func RateLimit(tb *TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.Allow() {
			metrics.RateLimitedTotal.Inc()
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestID：透传或生成 X-Request-ID
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// Wrap：按环境变量组装入口中间件
func Wrap(next http.Handler) http.Handler {
	h := RequestID(next)
	if utils.EnvBool("RATE_LIMIT_ENABLED", false) {
		qps := utils.EnvInt("RATE_LIMIT_QPS", 200)
		if qps <= 0 {
			qps = 200
		}
		logger.L().Info("rate_limit_enabled", "qps", qps)
		h = RateLimit(NewTokenBucket(qps), h)
	}
	return h
}
