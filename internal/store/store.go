package store

import (
	"context"
	"errors"

	"github.com/alphabot-ai/bloglist/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("expected `username` to be unique")
)

type Store interface {
	BlogStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

type BlogStore interface {
	CreateBlog(ctx context.Context, blog *model.Blog) error
	GetBlog(ctx context.Context, id string) (model.Blog, error)
	ListBlogs(ctx context.Context) ([]model.Blog, error)
	UpdateBlog(ctx context.Context, id string, patch model.BlogPatch) (model.Blog, error)
	DeleteBlog(ctx context.Context, id string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	FindUserByUsername(ctx context.Context, username string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Apply merges the set fields of patch into blog.
func Apply(blog *model.Blog, patch model.BlogPatch) {
	if patch.Title != nil {
		blog.Title = *patch.Title
	}
	if patch.Author != nil {
		blog.Author = *patch.Author
	}
	if patch.URL != nil {
		blog.URL = *patch.URL
	}
	if patch.Likes != nil {
		blog.Likes = *patch.Likes
	}
}
