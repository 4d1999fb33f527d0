package access

import (
	"context"
	"fmt"
	"testing"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions map[string]models.UserID

func (f fakeSessions) Resolve(_ context.Context, token string) (models.UserID, error) {
	if token == "down" {
		return 0, fmt.Errorf("%w: redis get", common.ErrStoreUnavailable)
	}
	uid, ok := f[token]
	if !ok {
		return 0, common.ErrUnauthenticated
	}
	return uid, nil
}

type fakeFiles map[models.FileID]*models.FileNode

func (f fakeFiles) GetFile(_ context.Context, id models.FileID) (*models.FileNode, error) {
	if id == 999 {
		return nil, fmt.Errorf("%w: query file", common.ErrStoreUnavailable)
	}
	file, ok := f[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return file, nil
}

func newAuthorizer() (*Authorizer, *test.Hook) {
	log, hook := test.NewNullLogger()
	sessions := fakeSessions{"owner": 1, "other": 2}
	files := fakeFiles{
		10: {ID: 10, OwnerID: 1, Kind: models.KindFile, IsPublic: false},
		11: {ID: 11, OwnerID: 1, Kind: models.KindImage, IsPublic: true},
	}
	return NewAuthorizer(sessions, files, log), hook
}

func TestAuthorize(t *testing.T) {
	a, _ := newAuthorizer()

	tests := []struct {
		name    string
		token   string
		fileID  models.FileID
		need    Capability
		wantErr error
	}{
		{"owner reads private", "owner", 10, Read, nil},
		{"owner writes private", "owner", 10, Write, nil},
		{"other reads public", "other", 11, Read, nil},
		{"other reads private", "other", 10, Read, common.ErrNotFound},
		{"other writes public", "other", 11, Write, common.ErrNotFound},
		{"other writes private", "other", 10, Write, common.ErrNotFound},
		{"missing file", "owner", 404, Read, common.ErrNotFound},
		{"unknown token", "nope", 10, Read, common.ErrUnauthenticated},
		{"empty token on public file", "", 11, Read, common.ErrUnauthenticated},
		{"unknown token on missing file", "nope", 404, Read, common.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid, file, err := a.Authorize(context.Background(), tt.token, tt.fileID, tt.need)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, file)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.fileID, file.ID)
			assert.Equal(t, fakeSessions{"owner": 1, "other": 2}[tt.token], uid)
		})
	}
}

func TestAuthorize_DenialIndistinguishableFromAbsence(t *testing.T) {
	a, _ := newAuthorizer()
	ctx := context.Background()

	_, _, denied := a.Authorize(ctx, "other", 10, Read)
	_, _, absent := a.Authorize(ctx, "other", 12345, Read)

	assert.Equal(t, absent, denied)
	assert.Equal(t, absent.Error(), denied.Error())
}

func TestAuthorize_SessionStoreDownFailsClosed(t *testing.T) {
	a, hook := newAuthorizer()

	_, _, err := a.Authorize(context.Background(), "down", 11, Read)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	assert.NotErrorIs(t, err, common.ErrStoreUnavailable)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestAuthorize_FileStoreDownPropagates(t *testing.T) {
	a, _ := newAuthorizer()

	_, _, err := a.Authorize(context.Background(), "owner", 999, Read)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestAllowed(t *testing.T) {
	private := &models.FileNode{OwnerID: 1}
	public := &models.FileNode{OwnerID: 1, IsPublic: true}

	assert.True(t, Allowed(1, private, Read))
	assert.True(t, Allowed(1, private, Write))
	assert.False(t, Allowed(2, private, Read))
	assert.True(t, Allowed(2, public, Read))
	assert.False(t, Allowed(2, public, Write))
	assert.False(t, Allowed(1, private, Capability(9)))
}
