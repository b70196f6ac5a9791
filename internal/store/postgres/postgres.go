// Package postgres implements store.Store on top of a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alphabot-ai/bloglist/internal/model"
	"github.com/alphabot-ai/bloglist/internal/store"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS blogs (
	id UUID PRIMARY KEY,
	seq BIGSERIAL,
	title TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL,
	likes INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
	user_id UUID REFERENCES users(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_blogs_user_id ON blogs(user_id);
`,
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var current int
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return err
	}
	for i := current; i < len(migrations); i++ {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, migrations[i]); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, i+1); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

const selectBlog = `
SELECT b.id::text, b.title, b.author, b.url, b.likes, b.user_id::text, b.created_at, u.username, u.name
FROM blogs b
LEFT JOIN users u ON u.id = b.user_id
`

func (s *Store) CreateBlog(ctx context.Context, blog *model.Blog) error {
	if blog.ID == "" {
		blog.ID = uuid.NewString()
	}
	if blog.CreatedAt.IsZero() {
		blog.CreatedAt = time.Now()
	}
	var userID *string
	if blog.UserID != "" {
		userID = &blog.UserID
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO blogs (id, title, author, url, likes, user_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, blog.ID, blog.Title, blog.Author, blog.URL, blog.Likes, userID, blog.CreatedAt)
	if err != nil {
		return fmt.Errorf("create blog: %w", err)
	}
	return nil
}

func (s *Store) GetBlog(ctx context.Context, id string) (model.Blog, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Blog{}, store.ErrNotFound
	}
	return scanBlog(s.pool.QueryRow(ctx, selectBlog+`WHERE b.id = $1`, id))
}

func (s *Store) ListBlogs(ctx context.Context) ([]model.Blog, error) {
	rows, err := s.pool.Query(ctx, selectBlog+`ORDER BY b.seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	defer rows.Close()

	blogs := []model.Blog{}
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, b)
	}
	return blogs, rows.Err()
}

func (s *Store) UpdateBlog(ctx context.Context, id string, patch model.BlogPatch) (model.Blog, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Blog{}, store.ErrNotFound
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Blog{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	blog, err := scanBlog(tx.QueryRow(ctx, selectBlog+`WHERE b.id = $1 FOR UPDATE OF b`, id))
	if err != nil {
		return model.Blog{}, err
	}
	store.Apply(&blog, patch)

	if _, err := tx.Exec(ctx, `
UPDATE blogs SET title = $1, author = $2, url = $3, likes = $4 WHERE id = $5
`, blog.Title, blog.Author, blog.URL, blog.Likes, id); err != nil {
		return model.Blog{}, fmt.Errorf("update blog: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Blog{}, err
	}
	return blog, nil
}

func (s *Store) DeleteBlog(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO users (id, username, name, password_hash, created_at)
VALUES ($1, $2, $3, $4, $5)
`, user.ID, user.Username, user.Name, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicateUsername
		}
		return fmt.Errorf("create user: %w", err)
	}
	user.Blogs = []model.BlogRef{}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.User{}, store.ErrNotFound
	}
	u, err := scanUser(s.pool.QueryRow(ctx, `
SELECT id::text, username, name, password_hash, created_at FROM users WHERE id = $1
`, id))
	if err != nil {
		return model.User{}, err
	}
	u.Blogs, err = s.blogRefs(ctx, u.ID)
	return u, err
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
SELECT id::text, username, name, password_hash, created_at FROM users WHERE username = $1
`, username))
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id::text, username, name, password_hash, created_at FROM users ORDER BY created_at ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	for i := range users {
		if users[i].Blogs, err = s.blogRefs(ctx, users[i].ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *Store) blogRefs(ctx context.Context, userID string) ([]model.BlogRef, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id::text, title, author, url, likes FROM blogs WHERE user_id = $1 ORDER BY seq ASC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []model.BlogRef{}
	for rows.Next() {
		var r model.BlogRef
		if err := rows.Scan(&r.ID, &r.Title, &r.Author, &r.URL, &r.Likes); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func scanBlog(row pgx.Row) (model.Blog, error) {
	var b model.Blog
	var userID, username, name *string
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.URL, &b.Likes, &userID, &b.CreatedAt, &username, &name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Blog{}, store.ErrNotFound
		}
		return model.Blog{}, fmt.Errorf("scan blog: %w", err)
	}
	if userID != nil {
		b.UserID = *userID
		ref := &model.UserRef{ID: *userID}
		if username != nil {
			ref.Username = *username
		}
		if name != nil {
			ref.Name = *name
		}
		b.User = ref
	}
	return b, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
