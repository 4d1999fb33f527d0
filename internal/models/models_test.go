package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"folder", KindFolder, true},
		{"file", KindFile, true},
		{"image", KindImage, true},
		{"", "", false},
		{"video", "", false},
	}
	for _, tc := range tests {
		got, ok := ParseKind(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
	assert.False(t, KindFolder.HasContent())
	assert.True(t, KindImage.HasContent())
}

func TestParentRef_JSON(t *testing.T) {
	var doc struct {
		Parent ParentRef `json:"parentId"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"parentId":0}`), &doc))
	assert.True(t, doc.Parent.IsRoot())

	require.NoError(t, json.Unmarshal([]byte(`{"parentId":"0"}`), &doc))
	assert.True(t, doc.Parent.IsRoot())

	require.NoError(t, json.Unmarshal([]byte(`{"parentId":"42"}`), &doc))
	id, ok := doc.Parent.Node()
	require.True(t, ok)
	assert.Equal(t, FileID(42), id)

	require.NoError(t, json.Unmarshal([]byte(`{"parentId":7}`), &doc))
	id, _ = doc.Parent.Node()
	assert.Equal(t, FileID(7), id)

	err := json.Unmarshal([]byte(`{"parentId":"abc"}`), &doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))

	out, err := json.Marshal(FileNode{ID: 3, Parent: Root()})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"parentId":0`)
}

func TestParseIDs(t *testing.T) {
	id, err := ParseFileID("12")
	require.NoError(t, err)
	assert.Equal(t, FileID(12), id)

	for _, bad := range []string{"", "0", "-1", "x"} {
		_, err := ParseFileID(bad)
		assert.ErrorIs(t, err, common.ErrValidation, bad)
	}

	uid, err := ParseUserID("5")
	require.NoError(t, err)
	assert.Equal(t, "5", uid.String())
}

func TestVariantKey(t *testing.T) {
	assert.Equal(t, "abc", Original().Key("abc"))
	assert.Equal(t, "abc_250", Thumbnail(250).Key("abc"))

	_, ok := Original().IsThumbnail()
	assert.False(t, ok)

	f := &FileNode{StorageRef: "k"}
	assert.Equal(t, "k_100", f.ThumbnailRef(100))
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := Session{UserID: 1, ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(time.Minute)))
}
