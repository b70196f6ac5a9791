package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alphabot-ai/bloglist/internal/client"
)

//go:embed fixture.yaml
var defaultFixture []byte

type fixture struct {
	Users []struct {
		Username string `yaml:"username"`
		Name     string `yaml:"name"`
		Password string `yaml:"password"`
	} `yaml:"users"`
	Blogs []struct {
		User   string `yaml:"user"`
		Title  string `yaml:"title"`
		Author string `yaml:"author"`
		URL    string `yaml:"url"`
		Likes  int    `yaml:"likes"`
	} `yaml:"blogs"`
}

func parseFixture(data []byte) (fixture, error) {
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	known := make(map[string]bool, len(f.Users))
	for _, u := range f.Users {
		known[u.Username] = true
	}
	for _, b := range f.Blogs {
		if !known[b.User] {
			return fixture{}, fmt.Errorf("blog %q belongs to unknown user %q", b.Title, b.User)
		}
	}
	return f, nil
}

// seed registers every fixture user (existing ones are reused) and posts
// their blogs. It returns how many blogs were created.
func seed(ctx context.Context, baseURL string, f fixture) (int, error) {
	clients := make(map[string]*client.Client, len(f.Users))
	for _, u := range f.Users {
		c := client.New(baseURL)
		if _, err := c.Register(ctx, u.Username, u.Name, u.Password); err != nil {
			var apiErr *client.APIError
			if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
				return 0, fmt.Errorf("register %s: %w", u.Username, err)
			}
			log.Printf("- user %s already exists", u.Username)
		} else {
			log.Printf("✓ Registered user: %s", u.Username)
		}
		if _, err := c.Login(ctx, u.Username, u.Password); err != nil {
			return 0, fmt.Errorf("login %s: %w", u.Username, err)
		}
		clients[u.Username] = c
	}

	created := 0
	for _, b := range f.Blogs {
		likes := b.Likes
		blog, err := clients[b.User].CreateBlog(ctx, client.BlogInput{
			Title:  b.Title,
			Author: b.Author,
			URL:    b.URL,
			Likes:  &likes,
		})
		if err != nil {
			log.Printf("✗ Failed to add %q: %v", b.Title, err)
			continue
		}
		created++
		log.Printf("✓ Added %q (by %s)", blog.Title, b.User)
	}
	return created, nil
}

func main() {
	baseURL := flag.String("url", "http://localhost:3003", "bloglist server URL")
	path := flag.String("fixture", "", "YAML fixture (default: built-in list)")
	flag.Parse()

	data := defaultFixture
	if *path != "" {
		var err error
		if data, err = os.ReadFile(*path); err != nil {
			log.Fatalf("read fixture: %v", err)
		}
	}
	f, err := parseFixture(data)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Seeding %s...", *baseURL)
	created, err := seed(context.Background(), *baseURL, f)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Users: %d\n", len(f.Users))
	fmt.Printf("Blogs: %d\n", created)
	fmt.Println("\nView at:", *baseURL+"/api/blogs")
}
