package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alphabot-ai/bloglist/internal/client"
)

const defaultServer = "http://localhost:3003"

var errNotLoggedIn = errors.New("not logged in - run 'bloglist login'")

// credentials is what `bloglist login` saves for later commands.
type credentials struct {
	Server   string `json:"server"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Token    string `json:"token"`
}

func credentialsPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".bloglist", "credentials.json")
}

func loadCredentials(path string) (credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return credentials{}, errNotLoggedIn
		}
		return credentials{}, err
	}
	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return credentials{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return creds, nil
}

func saveCredentials(path string, creds credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// serverURL resolves the API base URL: --api, then the saved login, then
// the default.
func serverURL(cmd *cobra.Command) string {
	if s, _ := cmd.Flags().GetString("api"); s != "" {
		return s
	}
	if creds, err := loadCredentials(credentialsPath()); err == nil && creds.Server != "" {
		return creds.Server
	}
	return defaultServer
}

func newClient(cmd *cobra.Command) *client.Client {
	return client.New(serverURL(cmd))
}

// authenticatedClient returns a client carrying the saved token.
func authenticatedClient(cmd *cobra.Command) (*client.Client, error) {
	creds, err := loadCredentials(credentialsPath())
	if err != nil {
		return nil, err
	}
	if creds.Token == "" {
		return nil, errNotLoggedIn
	}
	c := newClient(cmd)
	c.Token = creds.Token
	c.Username = creds.Username
	return c, nil
}
