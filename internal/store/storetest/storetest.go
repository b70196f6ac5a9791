// Package storetest holds the behavioural suite every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/bloglist/internal/model"
	"github.com/alphabot-ai/bloglist/internal/store"
)

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("BlogLifecycle", func(t *testing.T) { testBlogLifecycle(t, newStore(t)) })
	t.Run("ListOrder", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("UpdatePartial", func(t *testing.T) { testUpdatePartial(t, newStore(t)) })
	t.Run("MissingBlog", func(t *testing.T) { testMissingBlog(t, newStore(t)) })
	t.Run("DuplicateUsername", func(t *testing.T) { testDuplicateUsername(t, newStore(t)) })
	t.Run("UserBlogs", func(t *testing.T) { testUserBlogs(t, newStore(t)) })
}

func testBlogLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()

	blog := model.Blog{Title: "React patterns", Author: "Michael Chan", URL: "https://reactpatterns.com/", Likes: 7}
	require.NoError(t, st.CreateBlog(ctx, &blog))
	require.NotEmpty(t, blog.ID)

	got, err := st.GetBlog(ctx, blog.ID)
	require.NoError(t, err)
	assert.Equal(t, blog.Title, got.Title)
	assert.Equal(t, blog.Author, got.Author)
	assert.Equal(t, 7, got.Likes)
	assert.Nil(t, got.User)

	require.NoError(t, st.DeleteBlog(ctx, blog.ID))
	_, err = st.GetBlog(ctx, blog.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, st.DeleteBlog(ctx, blog.ID), store.ErrNotFound)
}

func testListOrder(t *testing.T, st store.Store) {
	ctx := context.Background()

	blogs, err := st.ListBlogs(ctx)
	require.NoError(t, err)
	assert.Empty(t, blogs)
	assert.NotNil(t, blogs)

	titles := []string{"first", "second", "third"}
	for _, title := range titles {
		b := model.Blog{Title: title, Author: "A", URL: "https://example.com/" + title}
		require.NoError(t, st.CreateBlog(ctx, &b))
	}

	blogs, err = st.ListBlogs(ctx)
	require.NoError(t, err)
	require.Len(t, blogs, len(titles))
	for i, b := range blogs {
		assert.Equal(t, titles[i], b.Title)
	}
}

func testUpdatePartial(t *testing.T, st store.Store) {
	ctx := context.Background()

	blog := model.Blog{Title: "Type wars", Author: "Robert C. Martin", URL: "http://blog.cleancoder.com/", Likes: 2}
	require.NoError(t, st.CreateBlog(ctx, &blog))

	likes := 69
	updated, err := st.UpdateBlog(ctx, blog.ID, model.BlogPatch{Likes: &likes})
	require.NoError(t, err)
	assert.Equal(t, 69, updated.Likes)
	assert.Equal(t, "Type wars", updated.Title)

	title := "Type wars, revisited"
	updated, err = st.UpdateBlog(ctx, blog.ID, model.BlogPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, 69, updated.Likes)

	got, err := st.GetBlog(ctx, blog.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Title, got.Title)
	assert.Equal(t, updated.Likes, got.Likes)
}

func testMissingBlog(t *testing.T, st store.Store) {
	ctx := context.Background()
	id := uuid.NewString()

	_, err := st.GetBlog(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	likes := 1
	_, err = st.UpdateBlog(ctx, id, model.BlogPatch{Likes: &likes})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.GetBlog(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDuplicateUsername(t *testing.T, st store.Store) {
	ctx := context.Background()

	u := model.User{Username: "root", Name: "Superuser", PasswordHash: "hash"}
	require.NoError(t, st.CreateUser(ctx, &u))

	dup := model.User{Username: "root", Name: "Other", PasswordHash: "hash"}
	assert.ErrorIs(t, st.CreateUser(ctx, &dup), store.ErrDuplicateUsername)

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testUserBlogs(t *testing.T, st store.Store) {
	ctx := context.Background()

	u := model.User{Username: "mluukkai", Name: "Matti Luukkainen", PasswordHash: "hash"}
	require.NoError(t, st.CreateUser(ctx, &u))

	blog := model.Blog{Title: "First class tests", Author: "Robert C. Martin", URL: "http://blog.cleancoder.com/", Likes: 10, UserID: u.ID}
	require.NoError(t, st.CreateBlog(ctx, &blog))

	got, err := st.GetBlog(ctx, blog.ID)
	require.NoError(t, err)
	require.NotNil(t, got.User)
	assert.Equal(t, u.ID, got.User.ID)
	assert.Equal(t, "mluukkai", got.User.Username)

	found, err := st.FindUserByUsername(ctx, "mluukkai")
	require.NoError(t, err)
	assert.Equal(t, "hash", found.PasswordHash)

	withBlogs, err := st.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, withBlogs.Blogs, 1)
	assert.Equal(t, blog.ID, withBlogs.Blogs[0].ID)

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Len(t, users[0].Blogs, 1)

	_, err = st.FindUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
