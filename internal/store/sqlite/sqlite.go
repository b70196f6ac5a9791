package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alphabot-ai/bloglist/internal/model"
	"github.com/alphabot-ai/bloglist/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", withForeignKeys(path))
	if err != nil {
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// withForeignKeys adds the foreign_keys pragma to the DSN so the driver
// applies it to every pooled connection.
func withForeignKeys(dsn string) string {
	const pragma = "_pragma=foreign_keys(1)"
	if strings.Contains(dsn, pragma) {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + pragma
	}
	return dsn + "?" + pragma
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	name TEXT,
	password_hash TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username);

CREATE TABLE IF NOT EXISTS blogs (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT,
	url TEXT NOT NULL,
	likes INTEGER NOT NULL DEFAULT 0,
	user_id TEXT,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_blogs_user_id ON blogs(user_id);
CREATE INDEX IF NOT EXISTS idx_blogs_author ON blogs(author);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

const selectBlog = `
SELECT b.id, b.title, b.author, b.url, b.likes, b.user_id, b.created_at, u.username, u.name
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
	_, err := s.db.ExecContext(ctx, `
INSERT INTO blogs (id, title, author, url, likes, user_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, blog.ID, blog.Title, nullIfEmpty(blog.Author), blog.URL, blog.Likes, nullIfEmpty(blog.UserID), blog.CreatedAt.Unix())
	return err
}

func (s *Store) GetBlog(ctx context.Context, id string) (model.Blog, error) {
	row := s.db.QueryRowContext(ctx, selectBlog+`WHERE b.id = ? LIMIT 1`, id)
	return scanBlog(row)
}

func (s *Store) ListBlogs(ctx context.Context) ([]model.Blog, error) {
	rows, err := s.db.QueryContext(ctx, selectBlog+`ORDER BY b.created_at ASC, b.rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blogs := []model.Blog{}
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, blog)
	}
	return blogs, rows.Err()
}

func (s *Store) UpdateBlog(ctx context.Context, id string, patch model.BlogPatch) (model.Blog, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Blog{}, err
	}
	defer func() { _ = tx.Rollback() }()

	blog, err := scanBlog(tx.QueryRowContext(ctx, selectBlog+`WHERE b.id = ? LIMIT 1`, id))
	if err != nil {
		return model.Blog{}, err
	}
	store.Apply(&blog, patch)

	if _, err := tx.ExecContext(ctx, `
UPDATE blogs SET title = ?, author = ?, url = ?, likes = ? WHERE id = ?
`, blog.Title, nullIfEmpty(blog.Author), blog.URL, blog.Likes, id); err != nil {
		return model.Blog{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Blog{}, err
	}
	return blog, nil
}

func (s *Store) DeleteBlog(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
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
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, username, name, password_hash, created_at)
VALUES (?, ?, ?, ?, ?)
`, user.ID, user.Username, nullIfEmpty(user.Name), user.PasswordHash, user.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateUsername
		}
		return err
	}
	user.Blogs = []model.BlogRef{}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, username, name, password_hash, created_at FROM users WHERE id = ?
`, id)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, err
	}
	u.Blogs, err = s.blogRefs(ctx, u.ID)
	return u, err
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, username, name, password_hash, created_at FROM users WHERE username = ?
`, username)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, username, name, password_hash, created_at FROM users ORDER BY created_at ASC, rowid ASC
`)
	if err != nil {
		return nil, err
	}
	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range users {
		refs, err := s.blogRefs(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].Blogs = refs
	}
	return users, nil
}

func (s *Store) blogRefs(ctx context.Context, userID string) ([]model.BlogRef, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, author, url, likes FROM blogs WHERE user_id = ? ORDER BY created_at ASC, rowid ASC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []model.BlogRef{}
	for rows.Next() {
		var r model.BlogRef
		var author sql.NullString
		if err := rows.Scan(&r.ID, &r.Title, &author, &r.URL, &r.Likes); err != nil {
			return nil, err
		}
		r.Author = author.String
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func scanBlog(scanner interface{ Scan(dest ...any) error }) (model.Blog, error) {
	var b model.Blog
	var author, userID, username, name sql.NullString
	var created int64
	if err := scanner.Scan(&b.ID, &b.Title, &author, &b.URL, &b.Likes, &userID, &created, &username, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Blog{}, store.ErrNotFound
		}
		return model.Blog{}, err
	}
	b.Author = author.String
	b.CreatedAt = time.Unix(created, 0)
	if userID.Valid {
		b.UserID = userID.String
		b.User = &model.UserRef{ID: userID.String, Username: username.String, Name: name.String}
	}
	return b, nil
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (model.User, error) {
	var u model.User
	var name sql.NullString
	var created int64
	if err := scanner.Scan(&u.ID, &u.Username, &name, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	u.Name = name.String
	u.CreatedAt = time.Unix(created, 0)
	return u, nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
