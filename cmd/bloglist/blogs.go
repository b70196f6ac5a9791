package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alphabot-ai/bloglist/internal/client"
	"github.com/alphabot-ai/bloglist/internal/enrich"
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a blog",
	Long: `Add a blog as the logged-in user.

With --fetch the page is downloaded and its title and author fill in
whatever --title and --author leave empty.

Examples:
  bloglist add https://reactpatterns.com/ --title "React patterns" --author "Michael Chan"
  bloglist add --fetch https://overreacted.io/a-complete-guide-to-useeffect/`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List blogs",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var likeCmd = &cobra.Command{
	Use:   "like <id>",
	Short: "Like a blog",
	Args:  cobra.ExactArgs(1),
	RunE:  runLike,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a blog you created",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

func init() {
	addCmd.Flags().String("title", "", "blog title")
	addCmd.Flags().String("author", "", "blog author")
	addCmd.Flags().Int("likes", 0, "initial likes")
	addCmd.Flags().Bool("fetch", false, "fetch the page to fill in title and author")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	c, err := authenticatedClient(cmd)
	if err != nil {
		return err
	}

	in := client.BlogInput{URL: args[0]}
	in.Title, _ = cmd.Flags().GetString("title")
	in.Author, _ = cmd.Flags().GetString("author")
	if cmd.Flags().Changed("likes") {
		likes, _ := cmd.Flags().GetInt("likes")
		in.Likes = &likes
	}

	if fetch, _ := cmd.Flags().GetBool("fetch"); fetch {
		meta, err := enrich.FromURL(cmd.Context(), nil, in.URL)
		if err != nil {
			return err
		}
		slog.Debug("fetched page metadata", "title", meta.Title, "author", meta.Author, "url", meta.URL)
		if in.Title == "" {
			in.Title = meta.Title
		}
		if in.Author == "" {
			in.Author = meta.Author
		}
	}

	blog, err := c.CreateBlog(cmd.Context(), in)
	if err != nil {
		return err
	}
	success("Added %q by %s (id %s)", blog.Title, blog.Author, blog.ID)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	blogs, err := newClient(cmd).ListBlogs(cmd.Context())
	if err != nil {
		return err
	}

	if len(blogs) == 0 {
		fmt.Println("No blogs yet.")
		return nil
	}

	rows := make([][]string, 0, len(blogs))
	for _, b := range blogs {
		addedBy := ""
		if b.User != nil {
			addedBy = b.User.Username
		}
		rows = append(rows, []string{b.ID, b.Title, b.Author, strconv.Itoa(b.Likes), addedBy})
	}
	table := newTable(os.Stdout)
	table.Header([]string{"ID", "Title", "Author", "Likes", "Added by"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func runLike(cmd *cobra.Command, args []string) error {
	blog, err := newClient(cmd).LikeBlog(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	success("%q now has %d likes", blog.Title, blog.Likes)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	c, err := authenticatedClient(cmd)
	if err != nil {
		return err
	}
	if err := c.DeleteBlog(cmd.Context(), args[0]); err != nil {
		return err
	}
	success("Deleted %s", args[0])
	return nil
}
