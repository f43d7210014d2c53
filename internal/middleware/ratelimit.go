package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/basedest/course-project/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate       rate.Limit    // API全般のレート（req/sec）
	GeneralBurst      int           // API全般のバーストサイズ
	ArticleWriteRate  rate.Limit    // 記事作成・更新・画像アップロードのレート（req/sec）
	ArticleWriteBurst int           // 記事書き込みのバーストサイズ
	CleanupInterval   time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min、記事書き込み 20 req/min。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:       rate.Limit(120.0 / 60.0),
		GeneralBurst:      120,
		ArticleWriteRate:  rate.Limit(20.0 / 60.0),
		ArticleWriteBurst: 20,
		CleanupInterval:   5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はクライアントごとのリミッターの集合。
type limiterSet struct {
	name  string
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

func newLimiterSet(name string, limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		name:     name,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	cl, ok := s.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = cl
	}
	cl.lastAccess = now
	s.mu.Unlock()
	return cl.limiter.AllowN(now, 1)
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

func (s *limiterSet) evict(before time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cl := range s.limiters {
		if cl.lastAccess.Before(before) {
			delete(s.limiters, key)
		}
	}
}

// RateLimiter はクライアントごとのレート制限を管理する。
// ログイン中はユーザーID、未ログインではクライアントIPを単位とする。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterSet
	write   *limiterSet
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成し、期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterSet("general", config.GeneralRate, config.GeneralBurst),
		write:   newLimiterSet("article_write", config.ArticleWriteRate, config.ArticleWriteBurst),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop はクリーンアップのゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general)
}

// ArticleWriteMiddleware は記事書き込み専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) ArticleWriteMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.write)
}

func (rl *RateLimiter) middleware(set *limiterSet) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !set.allow(key, rl.now()) {
				slog.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("limit_type", set.name),
				)
				writeRateLimitResponse(w, set.limit)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount はAPI全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// ArticleWriteLimiterCount は記事書き込みリミッターのエントリ数を返す。
func (rl *RateLimiter) ArticleWriteLimiterCount() int {
	return rl.write.len()
}

// clientKey はレート制限の単位を返す。
func clientKey(r *http.Request) string {
	if id, err := UserIDFromContext(r.Context()); err == nil {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	before := rl.now().Add(-2 * rl.config.CleanupInterval)
	rl.general.evict(before)
	rl.write.evict(before)
}

// writeRateLimitResponse は429レスポンスを書き込む。
// Retry-Afterには1トークンが補充されるまでの秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfter := 1
	if r > 0 {
		retryAfter = int(math.Ceil(1.0 / float64(r)))
		if retryAfter < 1 {
			retryAfter = 1
		}
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
