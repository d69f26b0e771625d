package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage(t *testing.T) {
	ctx := context.Background()
	fs := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	require.NoError(t, fs.Save(ctx, "E001/a.pdf", []byte("pdf")))
	assert.True(t, fs.Exists(ctx, "E001/a.pdf"))

	content, err := fs.Read(ctx, "E001/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), content)

	require.NoError(t, fs.Delete(ctx, "E001/a.pdf"))
	require.NoError(t, fs.Delete(ctx, "E001/a.pdf"), "deleting twice is a no-op")
	assert.False(t, fs.Exists(ctx, "E001/a.pdf"))

	assert.Error(t, fs.Save(ctx, "../escape.txt", []byte("x")))
	_, err = fs.Read(ctx, "../../etc/passwd")
	assert.Error(t, err)
}

func TestAttachmentStore(t *testing.T) {
	ctx := context.Background()
	store := NewAttachmentStore(NewLocalFileStorage(t.TempDir(), zap.NewNop()), zap.NewNop())

	ref, err := store.Put(ctx, "E001", "Cab Receipt.PDF", []byte("receipt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "E001/"))
	assert.True(t, strings.HasSuffix(ref, ".pdf"))

	other, err := store.Put(ctx, "E001", "Cab Receipt.PDF", []byte("receipt"))
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)

	content, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("receipt"), content)

	require.NoError(t, store.Remove(ctx, ref))
	_, err = store.Get(ctx, ref)
	assert.Error(t, err)

	_, err = store.Put(ctx, "../..", "x.pdf", []byte("x"))
	assert.Error(t, err)
	_, err = store.Put(ctx, "E001", "empty.pdf", nil)
	assert.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "E001", SanitizeName("E001"))
	assert.Equal(t, "etcpasswd", SanitizeName("../etc/passwd"))
	assert.Equal(t, "A-b_1", SanitizeName("A-b_1 !"))
}
