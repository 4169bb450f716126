package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classchat/server/internal/model"
	"github.com/classchat/server/internal/repo"
)

// fakeUserRepo is an in-memory credential store for service tests. It keeps
// raw passwords; hashing is the real repo's concern.
type fakeUserRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*fakeUser
}

type fakeUser struct {
	user           model.User
	password       string
	resetCode      string
	resetExpiresAt time.Time
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{records: make(map[uuid.UUID]*fakeUser)}
}

func (f *fakeUserRepo) Create(_ context.Context, username, email, rawPassword string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.user.Username == username || rec.user.Email == email {
			return model.User{}, repo.ErrDuplicateUser
		}
	}
	user := model.User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		Role:      model.RoleMember,
		CreatedAt: time.Now(),
	}
	f.records[user.ID] = &fakeUser{user: user, password: rawPassword}
	return user, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parsed, err := uuid.Parse(id)
	if err != nil {
		return model.User{}, repo.ErrNotFound
	}
	rec, ok := f.records[parsed]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return rec.user, nil
}

func (f *fakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.user.Username == identifier || rec.user.Email == identifier {
			return rec.user, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.user.Email == email {
			return rec.user, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (f *fakeUserRepo) VerifyPassword(_ context.Context, userID uuid.UUID, rawPassword string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[userID]
	if !ok {
		return false, repo.ErrNotFound
	}
	return rec.password == rawPassword, nil
}

func (f *fakeUserRepo) SetLanguage(_ context.Context, userID uuid.UUID, language string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[userID]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	rec.user.Language = &language
	return rec.user, nil
}

func (f *fakeUserRepo) SetResetCode(_ context.Context, userID uuid.UUID, code string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[userID]
	if !ok {
		return repo.ErrNotFound
	}
	rec.resetCode = code
	rec.resetExpiresAt = expiresAt
	return nil
}

func (f *fakeUserRepo) ConsumeResetCode(_ context.Context, email, code, newRawPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.user.Email == email && rec.resetCode != "" && rec.resetCode == code && rec.resetExpiresAt.After(time.Now()) {
			rec.password = newRawPassword
			rec.resetCode = ""
			rec.resetExpiresAt = time.Time{}
			return nil
		}
	}
	return repo.ErrNotFound
}

// expireCode backdates the pending code for a user, for expiry tests.
func (f *fakeUserRepo) expireCode(userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[userID]; ok {
		rec.resetExpiresAt = time.Now().Add(-time.Minute)
	}
}

// fakeMailer records sends and can be told to fail.
type fakeMailer struct {
	mu    sync.Mutex
	sent  []string // recipients
	fail  bool
	bodys []string
}

func (m *fakeMailer) Send(_ context.Context, to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("relay unavailable")
	}
	m.sent = append(m.sent, to)
	m.bodys = append(m.bodys, body)
	return nil
}
