package session

import (
	"errors"
	"fmt"
)

// PersistenceError は永続化ストアの呼び出しが失敗したことを表す。
// サービスはリトライせず、キャッシュを変更する前にそのまま呼び出し元へ返す。
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError はerrがPersistenceErrorを含むかどうかを返す。
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
