package model

import "time"

type Blog struct {
	ID        string    `json:"id" yaml:"id,omitempty"`
	Title     string    `json:"title" yaml:"title"`
	Author    string    `json:"author" yaml:"author"`
	URL       string    `json:"url" yaml:"url"`
	Likes     int       `json:"likes" yaml:"likes"`
	User      *UserRef  `json:"user,omitempty" yaml:"-"`
	UserID    string    `json:"-" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// BlogPatch carries the optional fields of a PUT /api/blogs/{id} body.
type BlogPatch struct {
	Title  *string
	Author *string
	URL    *string
	Likes  *int
}

type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type BlogRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
	Likes  int    `json:"likes"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Blogs        []BlogRef `json:"blogs"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Username: u.Username, Name: u.Name}
}

// FavoriteBlog is the title/author/likes projection of the most liked blog.
type FavoriteBlog struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Likes  int    `json:"likes"`
}

// AuthorSummary pairs an author with an aggregate. Count is a number of
// blogs or a like total depending on which helper produced it.
type AuthorSummary struct {
	Author string
	Count  int
}

// MostBlogs renders an AuthorSummary as {"author", "blogs"}.
type MostBlogs struct {
	Author string `json:"author"`
	Blogs  int    `json:"blogs"`
}

// MostLikes renders an AuthorSummary as {"author", "likes"}.
type MostLikes struct {
	Author string `json:"author"`
	Likes  int    `json:"likes"`
}

func (a AuthorSummary) AsBlogs() MostBlogs { return MostBlogs{Author: a.Author, Blogs: a.Count} }

func (a AuthorSummary) AsLikes() MostLikes { return MostLikes{Author: a.Author, Likes: a.Count} }

type BlogStats struct {
	BlogCount  int           `json:"blog_count"`
	TotalLikes int           `json:"total_likes"`
	Favorite   *FavoriteBlog `json:"favorite"`
	MostBlogs  *MostBlogs    `json:"most_blogs"`
	MostLikes  *MostLikes    `json:"most_likes"`
}

type Token struct {
	Token     string
	UserID    string
	Username  string
	ExpiresAt time.Time
}
