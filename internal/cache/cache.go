// Package cache は有効期限付きのインメモリKVキャッシュを提供する。
//
// 期限切れエントリは読み出し時に遅延削除される（lazy eviction）。
// バックグラウンドの掃除は正しさには不要で、Purgeはメモリ回収のためだけに使う。
//
// サイズ上限やLRUは持たない。期限が来るまでキーは増え続けるが、
// セッション数はアクティブユーザー数で頭打ちになるため許容している。
package cache

import (
	"sync"
	"time"
)

// DefaultTTL はNewにTTLを指定しなかった場合のキャッシュ全体のデフォルトTTL。
const DefaultTTL = 5 * time.Minute

// Entry はキャッシュに格納される値と絶対有効期限の組。
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// Expired はnow時点でエントリが期限切れかどうかを返す。
// ExpiresAt <= now の場合に期限切れとみなす。
func (e Entry[V]) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Option はCacheの生成オプション。
type Option func(*options)

type options struct {
	defaultTTL time.Duration
	now        func() time.Time
}

// WithDefaultTTL はSetで使われるデフォルトTTLを設定する。
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.defaultTTL = ttl
		}
	}
}

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Cache はキーごとに値と有効期限を保持するキャッシュ。
// 複数のgoroutineから同時に利用できる。
type Cache[K comparable, V any] struct {
	mu         sync.RWMutex
	entries    map[K]Entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// New は空のCacheを生成する。
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	o := options{
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		entries:    make(map[K]Entry[V]),
		defaultTTL: o.defaultTTL,
		now:        o.now,
	}
}

// Set はデフォルトTTLで値を格納する。既存エントリは上書きされる。
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL は now + ttl を有効期限として値を格納する。既存エントリは上書きされる。
// ttl <= 0 の場合は即座に期限切れのエントリになる。
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry[V]{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
}

// Get はキーに対応する値を返す。
// エントリが存在しないか期限切れの場合は false を返し、期限切れエントリはその場で削除する。
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return zero, false
	}
	if !e.Expired(c.now()) {
		return e.Value, true
	}

	c.mu.Lock()
	// ロックを取り直す間に別のSetで更新されている可能性がある
	if cur, ok := c.entries[key]; ok && cur.Expired(c.now()) {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	return zero, false
}

// Peek は期限切れかどうかに関わらず格納されているエントリをそのまま返す。
// 遅延削除は行わない。
func (c *Cache[K, V]) Peek(key K) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return e, ok
}

// Delete はキーのエントリを削除する。存在しないキーに対しては何もしない。
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Purge は期限切れエントリをすべて削除し、削除件数を返す。
func (c *Cache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len は物理的に保持しているエントリ数を返す。未削除の期限切れエントリも含む。
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
