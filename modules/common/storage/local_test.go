package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRoundTrip(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "/media/")
	require.NoError(t, err)
	ctx := context.Background()

	key := StagingKey("u1", "my shirt.png")
	require.NoError(t, store.Put(ctx, key, []byte("png-bytes"), "image/png"))

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "/media/"+key, store.URL(key))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// 두 번째 삭제도 성공
	assert.NoError(t, store.Delete(ctx, key))
}

func TestLocalRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "/media/")
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.txt", []byte("x"), "text/plain")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	staging := StagingKey("u1", "../../etc/pass wd")
	assert.True(t, strings.HasPrefix(staging, "staging/user-u1/"))
	assert.True(t, strings.HasSuffix(staging, "_pass_wd"))

	result := ResultKey("studio", "u1", ".webp")
	assert.True(t, strings.HasPrefix(result, "generated-images/studio/user-u1/generated_"))
	assert.True(t, strings.HasSuffix(result, ".webp"))
}
