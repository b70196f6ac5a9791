package httpapp_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/bloglist/internal/auth"
	"github.com/alphabot-ai/bloglist/internal/client"
	"github.com/alphabot-ai/bloglist/internal/config"
	httpapp "github.com/alphabot-ai/bloglist/internal/http"
	"github.com/alphabot-ai/bloglist/internal/rate"
	"github.com/alphabot-ai/bloglist/internal/store/sqlite"
)

func TestEndToEndServer(t *testing.T) {
	st, err := sqlite.Open("file:e2e_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer st.Close()

	cfg := config.Config{
		Server: config.ServerConfig{Addr: ":0"},
		Auth: config.AuthConfig{
			Secret:     "e2e-secret-value",
			Signing:    "ES256K",
			TokenTTL:   time.Hour,
			BcryptCost: bcrypt.MinCost,
		},
		Rate: config.RateConfig{LoginPerMinute: 1000, WritePerMinute: 1000},
	}
	authSvc, err := auth.NewService(st, cfg.Auth)
	require.NoError(t, err)
	server := httpapp.NewServer(st, authSvc, rate.NewMemory(), cfg, "e2e")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	httpServer := &http.Server{Handler: server}
	go func() {
		_ = httpServer.Serve(listener)
	}()
	defer httpServer.Close()

	ctx := context.Background()
	c := client.New("http://" + listener.Addr().String())

	_, err = c.Register(ctx, "e2e-user", "End To End", "password")
	require.NoError(t, err)
	login, err := c.Login(ctx, "e2e-user", "password")
	require.NoError(t, err)
	assert.Equal(t, "End To End", login.Name)

	blog, err := c.CreateBlog(ctx, client.BlogInput{Title: "First", Author: "Ada", URL: "https://example.com/first"})
	require.NoError(t, err)
	_, err = c.CreateBlog(ctx, client.BlogInput{Title: "Second", Author: "Grace", URL: "https://example.com/second"})
	require.NoError(t, err)

	liked, err := c.LikeBlog(ctx, blog.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, liked.Likes)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.BlogCount)
	assert.Equal(t, 1, stats.TotalLikes)
	require.NotNil(t, stats.Favorite)
	assert.Equal(t, "First", stats.Favorite.Title)
	require.NotNil(t, stats.MostBlogs)
	assert.Equal(t, "Ada", stats.MostBlogs.Author, "ties go to the first author seen")

	require.NoError(t, c.DeleteBlog(ctx, blog.ID))
	blogs, err := c.ListBlogs(ctx)
	require.NoError(t, err)
	require.Len(t, blogs, 1)
	assert.Equal(t, "Second", blogs[0].Title)

	anon := client.New(c.BaseURL)
	err = anon.DeleteBlog(ctx, blogs[0].ID)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Len(t, users[0].Blogs, 1)
}
