package filestore

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutURLDelete(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	s := NewLocal(root, "/media")
	s.now = func() time.Time { return time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	key, err := s.Put(ctx, "Front.JPG", strings.NewReader("jpeg bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "2026/03/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), key)

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	u, err := s.URL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "/media/"+key, u)

	back, ok := s.KeyFromURL(u)
	require.True(t, ok)
	assert.Equal(t, key, back)

	back, ok = s.KeyFromURL("https://cms.example.com/media/" + key)
	require.True(t, ok)
	assert.Equal(t, key, back)

	_, ok = s.KeyFromURL("2026/03/other.jpg")
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key), "deleting twice is not an error")
}

func TestLocal_RejectsEscapingKeys(t *testing.T) {
	t.Parallel()
	s := NewLocal(t.TempDir(), "/media/")
	assert.Error(t, s.Delete(context.Background(), "../../etc/passwd"))
}

func TestDecodeDataURI(t *testing.T) {
	t.Parallel()

	payload := base64.StdEncoding.EncodeToString([]byte("png bytes"))
	name, data, err := DecodeDataURI("data:image/png;base64," + payload)
	require.NoError(t, err)
	assert.Equal(t, "upload.png", name)
	assert.Equal(t, "png bytes", string(data))

	_, _, err = DecodeDataURI("2026/03/a.png")
	assert.ErrorIs(t, err, ErrNotDataURI)

	_, _, err = DecodeDataURI("data:image/png;base64,@@@")
	assert.Error(t, err)
}
