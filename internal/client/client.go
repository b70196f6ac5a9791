// Package client provides a Go client for the bloglist API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alphabot-ai/bloglist/internal/model"
)

// Client is a bloglist API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	Username   string
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// New creates a new bloglist client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BlogInput is the body of a create request.
type BlogInput struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
	Likes  *int   `json:"likes,omitempty"`
}

// LoginResult is what the server returns on a successful login.
type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Register creates a new user. It does not log in.
func (c *Client) Register(ctx context.Context, username, name, password string) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodPost, "/api/users", map[string]string{
		"username": username,
		"name":     name,
		"password": password,
	}, http.StatusCreated, &user)
	return user, err
}

// Login exchanges credentials for a bearer token and keeps it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, http.MethodPost, "/api/login", map[string]string{
		"username": username,
		"password": password,
	}, http.StatusOK, &res)
	if err != nil {
		return LoginResult{}, err
	}
	c.Token = res.Token
	c.Username = res.Username
	return res, nil
}

func (c *Client) ListBlogs(ctx context.Context) ([]model.Blog, error) {
	var blogs []model.Blog
	err := c.do(ctx, http.MethodGet, "/api/blogs", nil, http.StatusOK, &blogs)
	return blogs, err
}

func (c *Client) GetBlog(ctx context.Context, id string) (model.Blog, error) {
	var blog model.Blog
	err := c.do(ctx, http.MethodGet, "/api/blogs/"+id, nil, http.StatusOK, &blog)
	return blog, err
}

// CreateBlog posts a new blog as the logged-in user.
func (c *Client) CreateBlog(ctx context.Context, in BlogInput) (model.Blog, error) {
	var blog model.Blog
	err := c.do(ctx, http.MethodPost, "/api/blogs", in, http.StatusCreated, &blog)
	return blog, err
}

func (c *Client) SetLikes(ctx context.Context, id string, likes int) (model.Blog, error) {
	var blog model.Blog
	err := c.do(ctx, http.MethodPut, "/api/blogs/"+id, map[string]int{"likes": likes}, http.StatusOK, &blog)
	return blog, err
}

// LikeBlog increments a blog's likes by one.
func (c *Client) LikeBlog(ctx context.Context, id string) (model.Blog, error) {
	blog, err := c.GetBlog(ctx, id)
	if err != nil {
		return model.Blog{}, err
	}
	return c.SetLikes(ctx, id, blog.Likes+1)
}

func (c *Client) DeleteBlog(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/blogs/"+id, nil, http.StatusNoContent, nil)
}

func (c *Client) Stats(ctx context.Context) (model.BlogStats, error) {
	var stats model.BlogStats
	err := c.do(ctx, http.MethodGet, "/api/blogs/stats", nil, http.StatusOK, &stats)
	return stats, err
}

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := c.do(ctx, http.MethodGet, "/api/users", nil, http.StatusOK, &users)
	return users, err
}

// do sends body as JSON and decodes the response into out when the
// status matches want.
func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
