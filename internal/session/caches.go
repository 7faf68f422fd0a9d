package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/cache"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
)

// DefaultUserCacheTTL はユーザーキャッシュのデフォルトTTL。
const DefaultUserCacheTTL = 15 * time.Minute

// SessionCache はセッションIDをキーにセッションを保持するキャッシュ。
// エントリのTTLは常にセッション自身の ExpiresAt から決まる。
type SessionCache struct {
	entries *cache.Cache[string, model.Session]
	now     func() time.Time
}

// NewSessionCache はSessionCacheを生成する。
func NewSessionCache(now func() time.Time) *SessionCache {
	if now == nil {
		now = time.Now
	}
	return &SessionCache{
		entries: cache.New[string, model.Session](cache.WithClock(now)),
		now:     now,
	}
}

// Put はセッションを ExpiresAt - now のTTLで格納する。
// 既に期限切れのセッションは格納せず、古いエントリも取り除く。
func (c *SessionCache) Put(s model.Session) {
	ttl := s.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		c.entries.Delete(s.ID)
		return
	}
	c.entries.SetWithTTL(s.ID, s, ttl)
}

// Get は有効期限内のセッションを返す。
func (c *SessionCache) Get(id string) (model.Session, bool) {
	return c.entries.Get(id)
}

// Peek は期限切れであっても格納済みのエントリを返す。エントリは削除しない。
func (c *SessionCache) Peek(id string) (cache.Entry[model.Session], bool) {
	return c.entries.Peek(id)
}

// Remove はセッションをキャッシュから取り除く。
func (c *SessionCache) Remove(id string) {
	c.entries.Delete(id)
}

// Purge は期限切れエントリを削除し、削除件数を返す。
func (c *SessionCache) Purge() int {
	return c.entries.Purge()
}

// Len は格納中のエントリ数を返す。
func (c *SessionCache) Len() int {
	return c.entries.Len()
}

// UserCache はユーザーIDをキーに公開プロフィールを保持するキャッシュ。
// 値の型がmodel.Userなので認証情報は格納できない。
type UserCache struct {
	entries *cache.Cache[string, model.User]
}

// NewUserCache はUserCacheを生成する。ttlが0以下の場合はDefaultUserCacheTTLを使う。
func NewUserCache(ttl time.Duration, now func() time.Time) *UserCache {
	if ttl <= 0 {
		ttl = DefaultUserCacheTTL
	}
	return &UserCache{
		entries: cache.New[string, model.User](cache.WithDefaultTTL(ttl), cache.WithClock(now)),
	}
}

// Put はユーザーを格納する。
// IDまたはEmailにパスワードハッシュ形式の値が入っている場合は、認証情報の取り違えとしてpanicする。
// 氏名と電話番号はユーザーが自由に入力できるため検査しない。
func (c *UserCache) Put(u model.User) {
	for _, v := range []string{u.ID, u.Email} {
		if looksLikePasswordHash(v) {
			panic(fmt.Sprintf("session: refusing to cache credential material for user %s", u.ID))
		}
	}
	c.entries.Set(u.ID, u)
}

// Get はキャッシュ済みのユーザーを返す。
func (c *UserCache) Get(id string) (model.User, bool) {
	return c.entries.Get(id)
}

// Remove はユーザーをキャッシュから取り除く。
func (c *UserCache) Remove(id string) {
	c.entries.Delete(id)
}

// Purge は期限切れエントリを削除し、削除件数を返す。
func (c *UserCache) Purge() int {
	return c.entries.Purge()
}

// Blacklist は失効させたセッションIDの集合。
// 登録されたIDはキャッシュやDBの状態に関わらず無効として扱う。
type Blacklist struct {
	entries *cache.Cache[string, bool]
}

// NewBlacklist はBlacklistを生成する。
func NewBlacklist(now func() time.Time) *Blacklist {
	return &Blacklist{
		entries: cache.New[string, bool](cache.WithClock(now)),
	}
}

// Revoke はセッションIDをttlの間失効扱いにする。
func (b *Blacklist) Revoke(id string, ttl time.Duration) {
	b.entries.SetWithTTL(id, true, ttl)
}

// Contains はセッションIDが失効済みかどうかを返す。
func (b *Blacklist) Contains(id string) bool {
	revoked, ok := b.entries.Get(id)
	return ok && revoked
}

// Purge は期限切れエントリを削除し、削除件数を返す。
func (b *Blacklist) Purge() int {
	return b.entries.Purge()
}

// Caches はセッションサービスが使う3つのキャッシュをまとめたもの。
// プロセス起動時に一度だけ生成してサービスに渡す。
type Caches struct {
	Sessions  *SessionCache
	Users     *UserCache
	Blacklist *Blacklist
}

// NewCaches は同じ時計を共有する3つのキャッシュを生成する。
func NewCaches(userTTL time.Duration, now func() time.Time) *Caches {
	if now == nil {
		now = time.Now
	}
	return &Caches{
		Sessions:  NewSessionCache(now),
		Users:     NewUserCache(userTTL, now),
		Blacklist: NewBlacklist(now),
	}
}

// looksLikePasswordHash はbcryptのハッシュ形式の文字列かどうかを返す。
func looksLikePasswordHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
