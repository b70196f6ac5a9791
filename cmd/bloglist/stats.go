package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alphabot-ai/bloglist/internal/database"
	"github.com/alphabot-ai/bloglist/internal/listhelper"
	"github.com/alphabot-ai/bloglist/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize a list of blogs",
	Long: `Print total likes, the favorite blog and the top authors.

The blogs are read from one of:
  --file blogs.yaml   a YAML list of {title, author, url, likes}
  --api URL           a running server
  (default)           the configured database`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().String("file", "", "YAML file with a list of blogs")
	statsCmd.Flags().Bool("json", false, "print JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	stats, err := collectStats(cmd)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	return renderStats(os.Stdout, stats)
}

// collectStats summarizes a local file or the database, or asks a running
// server for its own summary.
func collectStats(cmd *cobra.Command) (model.BlogStats, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		blogs, err := loadBlogsFile(path)
		if err != nil {
			return model.BlogStats{}, err
		}
		return listhelper.Summarize(blogs), nil
	}
	if cmd.Flags().Changed("api") {
		return newClient(cmd).Stats(cmd.Context())
	}

	cfg, err := configFromContext(cmd.Context())
	if err != nil {
		return model.BlogStats{}, err
	}
	st, err := database.Connect(cmd.Context(), cfg.Database)
	if err != nil {
		return model.BlogStats{}, fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = st.Close() }()
	blogs, err := st.ListBlogs(cmd.Context())
	if err != nil {
		return model.BlogStats{}, err
	}
	return listhelper.Summarize(blogs), nil
}

func loadBlogsFile(path string) ([]model.Blog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var blogs []model.Blog
	if err := yaml.Unmarshal(data, &blogs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, b := range blogs {
		if b.Likes < 0 {
			return nil, fmt.Errorf("%s: blog %d (%q) has negative likes", path, i+1, b.Title)
		}
	}
	return blogs, nil
}

func renderStats(w io.Writer, s model.BlogStats) error {
	fmt.Fprintf(w, "blogs:        %d\n", s.BlogCount)
	fmt.Fprintf(w, "total likes:  %d\n", s.TotalLikes)
	if s.Favorite == nil {
		_, err := fmt.Fprintln(w, "favorite:     -")
		return err
	}
	fmt.Fprintf(w, "favorite:     %q by %s (%d likes)\n", s.Favorite.Title, s.Favorite.Author, s.Favorite.Likes)
	fmt.Fprintf(w, "most blogs:   %s (%d)\n", s.MostBlogs.Author, s.MostBlogs.Blogs)
	_, err := fmt.Fprintf(w, "most likes:   %s (%d)\n", s.MostLikes.Author, s.MostLikes.Likes)
	return err
}
