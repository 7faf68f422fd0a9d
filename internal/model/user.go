// Package model はドメインモデルを定義する。
package model

import "time"

// Gender はユーザーの性別を表す。
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderOther       Gender = "other"
)

// User はユーザーの公開プロフィールを表す。
// キャッシュに載るのはこの型のみで、認証情報のフィールドは持たない。
type User struct {
	ID        string
	Fullname  string
	Email     string
	Gender    Gender
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserCredential はログイン処理でのみ使うパスワードハッシュ付きのユーザー行。
// キャッシュに格納する前に必ずPublicでハッシュを取り除くこと。
type UserCredential struct {
	User
	PasswordHash string
}

// Public はパスワードハッシュを除いた公開プロフィールを返す。
func (c *UserCredential) Public() User {
	return c.User
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActiveAt はnow時点でセッションが有効期限内かどうかを返す。
func (s *Session) ActiveAt(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// ExpiredSession は期限切れセッションの一括削除で消えた行のIDと所有ユーザーの組。
type ExpiredSession struct {
	ID     string
	UserID string
}
