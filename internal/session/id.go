package session

import (
	"crypto/rand"
	"encoding/hex"
)

// generateID は暗号的に安全なセッションIDを生成する。
// 衝突確率は無視できるため重複時のリトライは行わない。
func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
