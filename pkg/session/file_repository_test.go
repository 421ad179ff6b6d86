package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenlink-im/zenlink-go/pkg/cookiejar"
)

func testSession() Session {
	return Session{
		Cookies: []cookiejar.Cookie{
			{Domain: ".zenlink.me", Path: "/", Name: "zsid", Value: "abc123"},
		},
		IMEI:      "d5f1a2b3-0000-0000-0000-000000000000",
		UserAgent: "test-agent",
		UserInfo: UserInfo{
			UID:    "10001",
			Name:   "Alice",
			Avatar: "https://cdn.zenlink.me/a/alice.png",
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestFileRepositorySaveAndGet(t *testing.T) {
	repo, err := NewFileSessionRepository(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	sess := testSession()

	require.NoError(t, repo.Save(ctx, "default", sess))

	got, err := repo.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, sess, got)
}

func TestFileRepositoryGetMissing(t *testing.T) {
	repo, err := NewFileSessionRepository(t.TempDir())
	require.NoError(t, err)

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFileRepositoryPersistsAcrossInstances(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()
	sess := testSession()

	repo, err := NewFileSessionRepository(dataDir)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, "default", sess))

	// A fresh repository on the same directory sees the saved session.
	reopened, err := NewFileSessionRepository(dataDir)
	require.NoError(t, err)

	got, err := reopened.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, sess, got)
}

func TestFileRepositoryDeleteAndList(t *testing.T) {
	repo, err := NewFileSessionRepository(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "work", testSession()))
	require.NoError(t, repo.Save(ctx, "personal", testSession()))

	names, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"personal", "work"}, names)

	require.NoError(t, repo.Delete(ctx, "work"))
	require.NoError(t, repo.Delete(ctx, "work")) // deleting twice is fine

	names, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"personal"}, names)
}

func TestSessionCookieHeader(t *testing.T) {
	sess := testSession()

	header, err := sess.CookieHeader("https://api.zenlink.me/v1/message/send")
	require.NoError(t, err)
	assert.Equal(t, "zsid=abc123", header)
}
