// Package listhelper computes aggregate statistics over a list of blogs.
//
// Every function only reads its input and may be called concurrently.
package listhelper

import (
	"errors"

	"github.com/alphabot-ai/bloglist/internal/model"
)

// ErrEmptyInput is returned by the helpers that select a single winner
// when there is nothing to select from.
var ErrEmptyInput = errors.New("listhelper: empty blog list")

// Dummy always returns 1.
func Dummy(_ []model.Blog) int {
	return 1
}

// TotalLikes sums the likes of every blog.
func TotalLikes(blogs []model.Blog) int {
	total := 0
	for _, b := range blogs {
		total += b.Likes
	}
	return total
}

// FavoriteBlog returns the blog with the most likes. Ties go to the
// earliest blog in the list.
func FavoriteBlog(blogs []model.Blog) (model.FavoriteBlog, error) {
	if len(blogs) == 0 {
		return model.FavoriteBlog{}, ErrEmptyInput
	}
	best := 0
	for i := 1; i < len(blogs); i++ {
		if blogs[i].Likes > blogs[best].Likes {
			best = i
		}
	}
	b := blogs[best]
	return model.FavoriteBlog{Title: b.Title, Author: b.Author, Likes: b.Likes}, nil
}

// MostBlogs returns the author with the most blogs.
func MostBlogs(blogs []model.Blog) (model.AuthorSummary, error) {
	return maxByAuthor(blogs, func(model.Blog) int { return 1 })
}

// MostLikes returns the author whose blogs have the most likes in total.
func MostLikes(blogs []model.Blog) (model.AuthorSummary, error) {
	return maxByAuthor(blogs, func(b model.Blog) int { return b.Likes })
}

// Summarize runs every helper over blogs. Summaries that need a winner
// are nil for an empty list.
func Summarize(blogs []model.Blog) model.BlogStats {
	stats := model.BlogStats{
		BlogCount:  len(blogs),
		TotalLikes: TotalLikes(blogs),
	}
	if fav, err := FavoriteBlog(blogs); err == nil {
		stats.Favorite = &fav
	}
	if top, err := MostBlogs(blogs); err == nil {
		mb := top.AsBlogs()
		stats.MostBlogs = &mb
	}
	if top, err := MostLikes(blogs); err == nil {
		ml := top.AsLikes()
		stats.MostLikes = &ml
	}
	return stats
}

// maxByAuthor folds weight(b) per author, keeping authors in the order
// they first appear, then picks the largest total. A strict comparison
// keeps the first-seen author on ties.
func maxByAuthor(blogs []model.Blog, weight func(model.Blog) int) (model.AuthorSummary, error) {
	if len(blogs) == 0 {
		return model.AuthorSummary{}, ErrEmptyInput
	}
	groups := groupByAuthor(blogs, weight)
	best := groups[0]
	for _, g := range groups[1:] {
		if g.Count > best.Count {
			best = g
		}
	}
	return best, nil
}

func groupByAuthor(blogs []model.Blog, weight func(model.Blog) int) []model.AuthorSummary {
	index := make(map[string]int, len(blogs))
	groups := make([]model.AuthorSummary, 0, len(blogs))
	for _, b := range blogs {
		i, ok := index[b.Author]
		if !ok {
			i = len(groups)
			index[b.Author] = i
			groups = append(groups, model.AuthorSummary{Author: b.Author})
		}
		groups[i].Count += weight(b)
	}
	return groups
}
