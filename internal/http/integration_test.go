package httpapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/bloglist/internal/auth"
	"github.com/alphabot-ai/bloglist/internal/config"
	"github.com/alphabot-ai/bloglist/internal/model"
	"github.com/alphabot-ai/bloglist/internal/rate"
	"github.com/alphabot-ai/bloglist/internal/store/sqlite"
)

var initialBlogs = []model.Blog{
	{Title: "React patterns", Author: "Michael Chan", URL: "https://reactpatterns.com/", Likes: 7},
	{Title: "Go To Statement Considered Harmful", Author: "Edsger W. Dijkstra", URL: "http://www.u.arizona.edu/~rubinson/copyright_violations/Go_To_Considered_Harmful.html", Likes: 5},
	{Title: "Canonical string reduction", Author: "Edsger W. Dijkstra", URL: "http://www.cs.utexas.edu/~EWD/transcriptions/EWD08xx/EWD808.html", Likes: 12},
}

type testEnv struct {
	server *httptest.Server
	store  *sqlite.Store
	auth   *auth.Service
	root   model.User
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			Secret:     "test-secret-value",
			Signing:    "HS256",
			TokenTTL:   time.Hour,
			BcryptCost: bcrypt.MinCost,
		},
		Rate:    config.RateConfig{LoginPerMinute: 1000, WritePerMinute: 1000},
		CORS:    config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testConfig())
}

// newTestEnvWithConfig starts a server over a fresh in-memory store that
// holds the user root/sekret and initialBlogs owned by root.
func newTestEnvWithConfig(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	dsnName := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", dsnName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	authSvc, err := auth.NewService(st, cfg.Auth)
	require.NoError(t, err)

	ctx := context.Background()
	root, err := authSvc.Register(ctx, auth.NewUser{Username: "root", Name: "Superuser", Password: "sekret"})
	require.NoError(t, err)
	for _, b := range initialBlogs {
		b.UserID = root.ID
		b.CreatedAt = time.Now()
		require.NoError(t, st.CreateBlog(ctx, &b))
	}

	srv := httptest.NewServer(NewServer(st, authSvc, rate.NewMemory(), cfg, "test"))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, store: st, auth: authSvc, root: root}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	decode(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (e *testEnv) blogsInDB(t *testing.T) []model.Blog {
	t.Helper()
	blogs, err := e.store.ListBlogs(context.Background())
	require.NoError(t, err)
	return blogs
}

func decode(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	decode(t, resp, &out)
	return out.Error
}

func TestBlogsReturnedAsJSON(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/blogs", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var blogs []map[string]any
	decode(t, resp, &blogs)
	require.Len(t, blogs, len(initialBlogs))
	assert.NotEmpty(t, blogs[0]["id"], "blogs are identified by id")
	assert.NotContains(t, blogs[0], "_id")

	user, ok := blogs[0]["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "root", user["username"])
}

func TestGetBlog(t *testing.T) {
	env := newTestEnv(t)
	blog := env.blogsInDB(t)[0]

	resp := env.do(t, http.MethodGet, "/api/blogs/"+blog.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.Blog
	decode(t, resp, &got)
	assert.Equal(t, blog.Title, got.Title)

	resp = env.do(t, http.MethodGet, "/api/blogs/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateBlog(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "root", "sekret")

	likes := 8
	newBlog := map[string]any{
		"title":  "Testing httptest",
		"author": "Jhul Ochoa",
		"url":    "https://example.com/tests",
		"likes":  likes,
	}
	resp := env.do(t, http.MethodPost, "/api/blogs", token, newBlog)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var created model.Blog
	decode(t, resp, &created)
	assert.Equal(t, "Testing httptest", created.Title)
	assert.Equal(t, "Jhul Ochoa", created.Author)
	assert.Equal(t, likes, created.Likes)
	require.NotNil(t, created.User)
	assert.Equal(t, env.root.ID, created.User.ID)

	assert.Len(t, env.blogsInDB(t), len(initialBlogs)+1)

	root, err := env.store.GetUser(context.Background(), env.root.ID)
	require.NoError(t, err)
	assert.Len(t, root.Blogs, len(initialBlogs)+1)
}

func TestCreateBlogWithoutToken(t *testing.T) {
	env := newTestEnv(t)
	before := env.blogsInDB(t)

	newBlog := map[string]any{"title": "x", "author": "y", "url": "https://example.com"}
	for _, token := range []string{"", "null", "garbage"} {
		resp := env.do(t, http.MethodPost, "/api/blogs", token, newBlog)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "token %q", token)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	}
	assert.Equal(t, before, env.blogsInDB(t))
}

func TestCreateBlogLikesDefaultToZero(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "root", "sekret")

	resp := env.do(t, http.MethodPost, "/api/blogs", token, map[string]any{
		"title":  "No likes yet",
		"author": "Jhul Ochoa",
		"url":    "https://example.com/none",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.Blog
	decode(t, resp, &created)
	assert.Equal(t, 0, created.Likes)
}

func TestCreateBlogMissingFields(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "root", "sekret")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"author": "a", "url": "https://example.com"}},
		{"missing url", map[string]any{"title": "t", "author": "a"}},
		{"negative likes", map[string]any{"title": "t", "url": "https://example.com", "likes": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/blogs", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	assert.Len(t, env.blogsInDB(t), len(initialBlogs))
}

func TestDeleteBlog(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "root", "sekret")
	toDelete := env.blogsInDB(t)[0]

	resp := env.do(t, http.MethodDelete, "/api/blogs/"+toDelete.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	after := env.blogsInDB(t)
	assert.Len(t, after, len(initialBlogs)-1)
	for _, b := range after {
		assert.NotEqual(t, toDelete.ID, b.ID)
	}

	resp = env.do(t, http.MethodDelete, "/api/blogs/"+toDelete.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteBlogByOtherUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.Register(context.Background(), auth.NewUser{Username: "mluukkai", Password: "salainen"})
	require.NoError(t, err)
	token := env.login(t, "mluukkai", "salainen")
	blog := env.blogsInDB(t)[0]

	resp := env.do(t, http.MethodDelete, "/api/blogs/"+blog.ID, token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/blogs/"+blog.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Len(t, env.blogsInDB(t), len(initialBlogs))
}

func TestUpdateBlogLikes(t *testing.T) {
	env := newTestEnv(t)
	blog := env.blogsInDB(t)[0]

	resp := env.do(t, http.MethodPut, "/api/blogs/"+blog.ID, "", map[string]any{"likes": 69})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated model.Blog
	decode(t, resp, &updated)
	assert.Equal(t, 69, updated.Likes)
	assert.Equal(t, blog.Title, updated.Title)

	resp = env.do(t, http.MethodPut, "/api/blogs/"+blog.ID, "", map[string]any{"likes": -3})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/blogs/"+blog.ID, "", map[string]any{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/blogs/missing", "", map[string]any{"likes": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBlogStats(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/blogs/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats model.BlogStats
	decode(t, resp, &stats)

	assert.Equal(t, 3, stats.BlogCount)
	assert.Equal(t, 24, stats.TotalLikes)
	require.NotNil(t, stats.Favorite)
	assert.Equal(t, model.FavoriteBlog{Title: "Canonical string reduction", Author: "Edsger W. Dijkstra", Likes: 12}, *stats.Favorite)
	require.NotNil(t, stats.MostBlogs)
	assert.Equal(t, model.MostBlogs{Author: "Edsger W. Dijkstra", Blogs: 2}, *stats.MostBlogs)
	require.NotNil(t, stats.MostLikes)
	assert.Equal(t, model.MostLikes{Author: "Edsger W. Dijkstra", Likes: 17}, *stats.MostLikes)
}

func TestTopAuthor(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/authors/top?by=likes", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var likes map[string]any
	decode(t, resp, &likes)
	assert.Equal(t, map[string]any{"author": "Edsger W. Dijkstra", "likes": float64(17)}, likes)

	resp = env.do(t, http.MethodGet, "/api/authors/top", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var blogs map[string]any
	decode(t, resp, &blogs)
	assert.Equal(t, map[string]any{"author": "Edsger W. Dijkstra", "blogs": float64(2)}, blogs)

	resp = env.do(t, http.MethodGet, "/api/authors/top?by=words", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTopAuthorEmpty(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "root", "sekret")
	for _, b := range env.blogsInDB(t) {
		resp := env.do(t, http.MethodDelete, "/api/blogs/"+b.ID, token, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	resp := env.do(t, http.MethodGet, "/api/authors/top?by=blogs", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/blogs/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats map[string]any
	decode(t, resp, &stats)
	assert.Equal(t, float64(0), stats["total_likes"])
	assert.Nil(t, stats["favorite"])
	assert.Nil(t, stats["most_blogs"])
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"username": "mluukkai",
		"name":     "Matti Luukkainen",
		"password": "salainen",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var created map[string]any
	decode(t, resp, &created)
	assert.Equal(t, "mluukkai", created["username"])
	assert.Equal(t, []any{}, created["blogs"])
	assert.NotContains(t, created, "password")
	assert.NotContains(t, created, "PasswordHash")

	users, err := env.store.ListUsers(context.Background())
	require.NoError(t, err)
	usernames := make([]string, 0, len(users))
	for _, u := range users {
		usernames = append(usernames, u.Username)
	}
	assert.Contains(t, usernames, "mluukkai")
}

func TestCreateUserDuplicate(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"username": "root",
		"name":     "Superuser",
		"password": "salainen",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	assert.Contains(t, errorMessage(t, resp), "expected `username` to be unique")

	users, err := env.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateUserTooShort(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []map[string]string{
		{"username": "superuser", "name": "Superuser", "password": "sa"},
		{"username": "su", "name": "Superuser", "password": "salainen"},
	} {
		resp := env.do(t, http.MethodPost, "/api/users", "", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, errorMessage(t, resp), "at least 3")
	}

	users, err := env.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateUserPasswordTooLong(t *testing.T) {
	env := newTestEnv(t)

	for _, password := range []string{strings.Repeat("x", 80), strings.Repeat("ö", 40)} {
		body := map[string]string{"username": "longpass", "name": "Long", "password": password}
		resp := env.do(t, http.MethodPost, "/api/users", "", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, errorMessage(t, resp), "at most 72 bytes")
	}

	users, err := env.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/users", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []model.User
	decode(t, resp, &users)
	require.Len(t, users, 1)
	assert.Equal(t, "root", users[0].Username)
	assert.Len(t, users[0].Blogs, len(initialBlogs))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "root", "password": "sekret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	decode(t, resp, &out)
	assert.NotEmpty(t, out["token"])
	assert.Equal(t, "root", out["username"])
	assert.Equal(t, "Superuser", out["name"])

	resp = env.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "root", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid username or password", errorMessage(t, resp))
}

func TestLoginRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.LoginPerMinute = 2
	env := newTestEnvWithConfig(t, cfg)

	creds := map[string]string{"username": "root", "password": "wrong"}
	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodPost, "/api/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := env.do(t, http.MethodPost, "/api/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	decode(t, resp, &health)
	assert.Equal(t, "ok", health["status"])

	resp = env.do(t, http.MethodGet, "/api/version", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var version map[string]string
	decode(t, resp, &version)
	assert.Equal(t, "test", version["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/blogs", "", nil)

	resp := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `bloglist_http_requests_total{method="GET",route="/api/blogs`)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	env := newTestEnvWithConfig(t, cfg)

	resp := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "unknown endpoint", errorMessage(t, resp))
}
