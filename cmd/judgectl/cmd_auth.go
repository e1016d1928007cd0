package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mahawthada/legal-assistant/internal/types"
)

var (
	loginEmail  string
	signupName  string
	signupEmail string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the chat backend",
	Long: `Checks your credentials with the chat backend and saves the account
locally so later commands run as you. The password is prompted for.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE:  runSignup,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.Clear(); err != nil {
			return err
		}
		out.info("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, ok := store.CurrentUser()
		if !ok {
			return fmt.Errorf("not logged in")
		}
		fmt.Printf("%s <%s> (id %d)\n", user.Username, user.Email, user.ID)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
	signupCmd.Flags().StringVarP(&signupName, "name", "n", "", "display name")
	signupCmd.Flags().StringVarP(&signupEmail, "email", "e", "", "account email")
}

func runLogin(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(os.Stdin)

	email := strings.TrimSpace(loginEmail)
	if email == "" {
		var err error
		if email, err = prompt(in, "Email: "); err != nil {
			return err
		}
	}
	password, err := readPassword(in, "Password: ")
	if err != nil {
		return err
	}
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	user, err := client.Login(cmd.Context(), email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := store.Save(user); err != nil {
		return err
	}
	out.info("Logged in as %s.", user.Username)
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(os.Stdin)

	req := types.SignupRequest{
		Name:  strings.TrimSpace(signupName),
		Email: strings.TrimSpace(signupEmail),
	}
	var err error
	if req.Name == "" {
		if req.Name, err = prompt(in, "Name: "); err != nil {
			return err
		}
	}
	if req.Email == "" {
		if req.Email, err = prompt(in, "Email: "); err != nil {
			return err
		}
	}
	if req.Password, err = readPassword(in, "Password: "); err != nil {
		return err
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return fmt.Errorf("All fields are required.")
	}

	if err := client.Signup(cmd.Context(), &req); err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}
	out.info("Account created. Run 'judgectl login' to sign in.")
	return nil
}
