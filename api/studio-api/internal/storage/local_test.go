package internal_storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/demostudio/pkg/commons"
)

func newLocal(t *testing.T) (ArtifactStore, string) {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	root := t.TempDir()
	store, err := NewLocalStore(logger, root)
	require.NoError(t, err)
	return store, root
}

func TestLocalPromote_CopiesAndDeletesTemp(t *testing.T) {
	store, root := newLocal(t)

	temp := filepath.Join(t.TempDir(), "s1.video.part")
	require.NoError(t, os.WriteFile(temp, []byte("videodata"), 0o644))

	ref, size, err := store.Promote(context.Background(), "s1", "video.webm", temp)
	require.NoError(t, err)
	assert.Equal(t, int64(9), size)
	assert.Equal(t, filepath.Join(root, "s1", "video.webm"), ref)

	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, "videodata", string(data))

	_, err = os.Stat(temp)
	assert.True(t, os.IsNotExist(err), "temporary should be deleted after promote")
}

func TestLocalPutAndSignedURL(t *testing.T) {
	store, _ := newLocal(t)

	ref, err := store.Put(context.Background(), "s1", "processed_audio_s1_1.mp3", []byte("mp3"))
	require.NoError(t, err)

	url, err := store.SignedURL(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, ref, url)
}

func TestLocalSignedURL_Missing(t *testing.T) {
	store, _ := newLocal(t)

	_, err := store.SignedURL(context.Background(), "/nope/missing.webm")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalRemove_Idempotent(t *testing.T) {
	store, _ := newLocal(t)

	ref, err := store.Put(context.Background(), "s1", "audio.webm", []byte("a"))
	require.NoError(t, err)
	require.NoError(t, store.Remove(context.Background(), ref))
	assert.NoError(t, store.Remove(context.Background(), ref))
}
