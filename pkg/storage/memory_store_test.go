package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Upload(t *testing.T) {
	store := NewMemoryStore("https://cdn.test")

	res, err := store.Upload(context.Background(), UploadInput{
		Key:  "farm-verifications/verification_1_u1_0.jpg",
		Body: strings.NewReader("jpeg-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/farm-verifications/verification_1_u1_0.jpg", res.URL)

	data, ok := store.Object(res.Key)
	require.True(t, ok)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Upload(ctx, UploadInput{Key: "k", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len())
}
