package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/repository"
)

var errStoreDown = errors.New("connection refused")

// fakeClock はテスト用の手動で進める時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore はSessionRepositoryとUserRepositoryのインメモリ実装。
// 呼び出し回数を数え、任意の操作を失敗させられる。
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	users    map[string]model.UserCredential

	findValidCalls int
	findUserCalls  int
	deleteCalls    int

	insertErr       error
	findValidErr    error
	updateErr       error
	deleteErr       error
	deleteByUserErr error
	deleteExpErr    error
	findUserErr     error

	// afterFindUser はFindByIDがロックを外した後に呼ばれる。並行操作の再現用。
	afterFindUser func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]model.Session),
		users:    make(map[string]model.UserCredential),
	}
}

func (f *fakeStore) addUser(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = model.UserCredential{
		User: model.User{
			ID:       id,
			Fullname: "Test User " + id,
			Email:    id + "@example.com",
			Gender:   model.GenderFemale,
			Phone:    "+251900000000",
		},
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuvABCDEFGHIJKLMNOPQRSTUVWXYZ01234",
	}
}

func (f *fakeStore) putSession(s model.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

func (f *fakeStore) hasSession(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[id]
	return ok
}

func (f *fakeStore) Insert(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, exists := f.sessions[s.ID]; exists {
		return fmt.Errorf("failed to create session: %w", repository.ErrDuplicateID)
	}
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeStore) FindValid(_ context.Context, id string, now time.Time) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findValidCalls++
	if f.findValidErr != nil {
		return nil, f.findValidErr
	}
	s, ok := f.sessions[id]
	if !ok || s.ExpiresAt.Before(now) {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) UpdateExpiry(_ context.Context, id string, expiresAt, updatedAt time.Time) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	s, ok := f.sessions[id]
	if !ok || !s.ExpiresAt.After(updatedAt) {
		return nil, nil
	}
	s.ExpiresAt = expiresAt
	s.UpdatedAt = updatedAt
	f.sessions[id] = s
	return &s, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) DeleteByUserID(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteByUserErr != nil {
		return nil, f.deleteByUserErr
	}
	var ids []string
	for id, s := range f.sessions {
		if s.UserID == userID {
			ids = append(ids, id)
			delete(f.sessions, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) DeleteExpired(_ context.Context, now time.Time) ([]model.ExpiredSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteExpErr != nil {
		return nil, f.deleteExpErr
	}
	var deleted []model.ExpiredSession
	for id, s := range f.sessions {
		if s.ExpiresAt.Before(now) {
			deleted = append(deleted, model.ExpiredSession{ID: id, UserID: s.UserID})
			delete(f.sessions, id)
		}
	}
	return deleted, nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	f.findUserCalls++
	err := f.findUserErr
	cred, ok := f.users[id]
	hook := f.afterFindUser
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	u := cred.Public()
	return &u, nil
}

func (f *fakeStore) FindCredentialByEmail(_ context.Context, email string) (*model.UserCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cred := range f.users {
		if cred.Email == email {
			c := cred
			return &c, nil
		}
	}
	return nil, nil
}

var (
	_ repository.SessionRepository = (*fakeStore)(nil)
	_ repository.UserRepository    = (*fakeStore)(nil)
)
