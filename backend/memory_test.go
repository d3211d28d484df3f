package backend

import (
	"context"
	"testing"
	"time"

	"github.com/JerryLinyx/PressGO/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T, opts ...MemoryOption) *MemoryClient {
	t.Helper()
	c := NewMemoryClient(opts...)
	require.NoError(t, c.AddUser("admin@example.com", "pw"))
	return c
}

func TestMemoryClient_SignIn(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()

	_, err := c.SignInWithPassword(ctx, "admin@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", Message(err, ""))

	s, err := c.SignInWithPassword(ctx, "admin@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", s.User.Email)

	got, err := c.GetSession(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, s.AccessToken, got.AccessToken)
}

func TestMemoryClient_ExpiredSessionIsRefreshed(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestMemory(t, WithClock(func() time.Time { return now }), WithSessionTTL(time.Minute))
	ctx := context.Background()

	s, err := c.SignInWithPassword(ctx, "admin@example.com", "pw")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	refreshed, err := c.GetSession(ctx, s)
	require.NoError(t, err)
	assert.NotEqual(t, s.AccessToken, refreshed.AccessToken)
	assert.Equal(t, s.User, refreshed.User)

	_, err = c.RefreshSession(ctx, s)
	assert.ErrorIs(t, err, ErrUnauthorized, "refresh tokens are single use")
}

func TestMemoryClient_SignOutIsGlobal(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()
	events, cancel := c.Subscribe()
	defer cancel()

	tab1, err := c.SignInWithPassword(ctx, "admin@example.com", "pw")
	require.NoError(t, err)
	tab2, err := c.SignInWithPassword(ctx, "admin@example.com", "pw")
	require.NoError(t, err)
	<-events
	<-events

	require.NoError(t, c.SignOut(ctx, tab1))

	_, err = c.GetSession(ctx, tab2)
	assert.ErrorIs(t, err, ErrUnauthorized)

	ev := <-events
	assert.Equal(t, models.SignedOut, ev.Type)
	assert.Equal(t, tab1.User.ID, ev.UserID())
}

func TestMemoryClient_Articles(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()
	s, err := c.SignInWithPassword(ctx, "admin@example.com", "pw")
	require.NoError(t, err)

	_, err = c.InsertArticle(ctx, nil, models.ArticleInput{Title: "x"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.InsertArticle(ctx, s, models.ArticleInput{})
	assert.Error(t, err)

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		a, err := c.InsertArticle(ctx, s, models.ArticleInput{Title: title})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	all, err := c.ListArticles(ctx, ListQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].Title, all[1].Title, all[2].Title})

	limited, err := c.ListArticles(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, c.DeleteArticle(ctx, s, ids[2]))
	all, err = c.ListArticles(ctx, ListQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Title)
}

func TestMemoryClient_FindArticleByURL(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()
	s, err := c.SignInWithPassword(ctx, "admin@example.com", "pw")
	require.NoError(t, err)

	link := "https://example.com/a"
	_, err = c.InsertArticle(ctx, s, models.ArticleInput{Title: "linked", URL: &link})
	require.NoError(t, err)

	found, err := c.FindArticleByURL(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, "linked", found.Title)

	_, err = c.FindArticleByURL(ctx, "https://example.com/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryClient_GetArticle(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()
	s, err := c.SignInWithPassword(ctx, "admin@example.com", "pw")
	require.NoError(t, err)

	created, err := c.InsertArticle(ctx, s, models.ArticleInput{Title: "one"})
	require.NoError(t, err)

	got, err := c.GetArticle(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Title)

	require.NoError(t, c.DeleteArticle(ctx, s, created.ID))
	_, err = c.GetArticle(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
