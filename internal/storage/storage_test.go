package storage

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatImagePath(t *testing.T) {
	p := ChatImagePath("user-1", ".png")
	require.True(t, strings.HasPrefix(p, "chat-images/user-1/"), p)
	require.True(t, strings.HasSuffix(p, ".png"), p)
	id := strings.TrimSuffix(strings.TrimPrefix(p, "chat-images/user-1/"), ".png")
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	assert.True(t, strings.HasSuffix(ChatImagePath("u", "jpg"), ".jpg"))
	assert.NotEqual(t, ChatImagePath("u", ".png"), ChatImagePath("u", ".png"))
	assert.True(t, strings.HasPrefix(ChatImagePath("a/b", ""), "chat-images/a%2Fb/"))
}

func TestDownloadURL(t *testing.T) {
	got := DownloadURL("bucket", "chat-images/u/x.png", "tok")
	assert.Equal(t, "https://firebasestorage.googleapis.com/v0/b/bucket/o/chat-images%2Fu%2Fx.png?alt=media&token=tok", got)
}
