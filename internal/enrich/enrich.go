// Package enrich fetches a web page and extracts the title and author a
// new blog entry should be filed under.
package enrich

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const maxPageBytes = 5 << 20

var strict = bluemonday.StrictPolicy()

type Metadata struct {
	Title  string
	Author string
	URL    string
}

// FromURL downloads rawURL and extracts its metadata. The final URL after
// redirects is reported in Metadata.URL.
func FromURL(ctx context.Context, client *http.Client, rawURL string) (Metadata, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("User-Agent", "bloglist/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Metadata{}, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	return FromReader(io.LimitReader(resp.Body, maxPageBytes), resp.Request.URL)
}

// FromReader extracts metadata from an HTML document served at pageURL.
// go-readability is tried first; <title>, OpenGraph and author meta tags
// fill in whatever it leaves empty.
func FromReader(r io.Reader, pageURL *url.URL) (Metadata, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("read page: %w", err)
	}

	meta := Metadata{URL: pageURL.String()}
	parser := readability.NewParser()
	if article, err := parser.Parse(bytes.NewReader(raw), pageURL); err == nil {
		meta.Title = clean(article.Title)
		meta.Author = clean(article.Byline)
	}
	if meta.Title != "" && meta.Author != "" {
		return meta, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Metadata{}, fmt.Errorf("parse html: %w", err)
	}
	fb := fallback(doc)
	if meta.Title == "" {
		meta.Title = fb.Title
	}
	if meta.Author == "" {
		meta.Author = fb.Author
	}
	return meta, nil
}

func fallback(doc *goquery.Document) Metadata {
	var m Metadata
	m.Title = firstNonEmpty(
		attr(doc, `meta[property="og:title"]`, "content"),
		doc.Find("title").First().Text(),
		doc.Find("h1").First().Text(),
	)
	m.Author = firstNonEmpty(
		attr(doc, `meta[name="author"]`, "content"),
		attr(doc, `meta[property="article:author"]`, "content"),
		doc.Find(`[rel="author"]`).First().Text(),
		attr(doc, `meta[property="og:site_name"]`, "content"),
	)
	return m
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = clean(v); v != "" {
			return v
		}
	}
	return ""
}

// clean strips markup and collapses whitespace.
func clean(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
