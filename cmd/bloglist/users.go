package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and save the bearer token",
	Long: `Log in and save the bearer token to ~/.bloglist/credentials.json.

The password is prompted for unless --password is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	registerCmd.Flags().String("name", "", "display name")
	registerCmd.Flags().String("password", "", "password (prompted when empty)")
	loginCmd.Flags().String("password", "", "password (prompted when empty)")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	password, err := passwordFromFlagOrPrompt(cmd)
	if err != nil {
		return err
	}

	user, err := newClient(cmd).Register(cmd.Context(), args[0], name, password)
	if err != nil {
		return err
	}
	success("Registered %s (id %s)", user.Username, user.ID)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := passwordFromFlagOrPrompt(cmd)
	if err != nil {
		return err
	}

	c := newClient(cmd)
	res, err := c.Login(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}
	creds := credentials{Server: c.BaseURL, Username: res.Username, Name: res.Name, Token: res.Token}
	if err := saveCredentials(credentialsPath(), creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	success("Logged in as %s", bold(res.Username))
	return nil
}

func passwordFromFlagOrPrompt(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		return p, nil
	}
	prompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < 3 {
				return errors.New("password must be at least 3 characters long")
			}
			return nil
		},
	}
	return prompt.Run()
}
