package users

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	mu     sync.Mutex
	nextID models.UserID
	byID   map[models.UserID]*models.User
	down   bool
}

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return common.ErrAlreadyExists
		}
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, fmt.Errorf("%w: query user", common.ErrStoreUnavailable)
	}
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memUsers) GetUser(_ context.Context, id models.UserID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type memSessions struct {
	tokens map[string]models.UserID
	n      int
	down   bool
}

func (s *memSessions) Issue(_ context.Context, uid models.UserID) (string, error) {
	s.n++
	token := fmt.Sprintf("tok-%d", s.n)
	s.tokens[token] = uid
	return token, nil
}

func (s *memSessions) Resolve(_ context.Context, token string) (models.UserID, error) {
	if s.down {
		return 0, fmt.Errorf("%w: redis get", common.ErrStoreUnavailable)
	}
	uid, ok := s.tokens[token]
	if !ok {
		return 0, common.ErrUnauthenticated
	}
	return uid, nil
}

func (s *memSessions) Revoke(_ context.Context, token string) error {
	delete(s.tokens, token)
	return nil
}

func newService(t *testing.T) (*Service, *memUsers, *memSessions) {
	t.Helper()
	log, _ := test.NewNullLogger()
	repo := &memUsers{byID: map[models.UserID]*models.User{}}
	sessions := &memSessions{tokens: map[string]models.UserID{}}
	return NewService(repo, sessions, NewBcryptHasher(bcrypt.MinCost), log), repo, sessions
}

func TestSignUp(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "bob@dylan.com", "toto1234!")
	require.NoError(t, err)
	assert.Equal(t, models.UserID(1), user.ID)
	assert.Equal(t, "bob@dylan.com", user.Email)

	stored := repo.byID[user.ID]
	assert.NotEqual(t, "toto1234!", stored.HashedPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.HashedPassword), []byte("toto1234!")))

	_, err = svc.SignUp(ctx, "bob@dylan.com", "other")
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestSignUp_Validation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "", "pw")
	assert.EqualError(t, err, "Missing email")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.SignUp(ctx, "a@b.c", "")
	assert.EqualError(t, err, "Missing password")
}

func TestSignUp_StoreDown(t *testing.T) {
	svc, repo, _ := newService(t)
	repo.down = true

	_, err := svc.SignUp(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestConnectDisconnectMe(t *testing.T) {
	svc, _, sessions := newService(t)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "bob@dylan.com", "toto1234!")
	require.NoError(t, err)

	_, err = svc.Connect(ctx, "bob@dylan.com", "wrong")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	_, err = svc.Connect(ctx, "nobody@x.y", "toto1234!")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	_, err = svc.Connect(ctx, "", "")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	token, err := svc.Connect(ctx, "bob@dylan.com", "toto1234!")
	require.NoError(t, err)
	assert.Equal(t, user.ID, sessions.tokens[token])

	me, err := svc.Me(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, "bob@dylan.com", me.Email)

	require.NoError(t, svc.Disconnect(ctx, token))
	assert.ErrorIs(t, svc.Disconnect(ctx, token), common.ErrUnauthenticated)

	_, err = svc.Me(ctx, token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestMe_SessionStoreDownFailsClosed(t *testing.T) {
	svc, _, sessions := newService(t)
	sessions.down = true

	_, err := svc.Me(context.Background(), "tok-1")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}
