package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bookden/internal/api"
)

func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if username == "" {
				username = prompt("Username: ")
			}
			if password == "" {
				password = prompt("Password: ")
			}

			if err := a.session.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			state := a.session.Snapshot()
			fmt.Printf("Signed in as %s\n", state.User.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when omitted)")
	return cmd
}

func registerCmd() *cobra.Command {
	var data api.RegisterData

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if data.Username == "" {
				data.Username = prompt("Username: ")
			}
			if data.Email == "" {
				data.Email = prompt("Email: ")
			}
			if data.Password == "" {
				data.Password = prompt("Password: ")
			}

			if err := a.session.Register(cmd.Context(), data); err != nil {
				return err
			}
			fmt.Printf("Welcome, %s\n", data.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&data.Username, "username", "", "account username")
	cmd.Flags().StringVar(&data.Email, "email", "", "account email")
	cmd.Flags().StringVar(&data.Password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&data.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&data.LastName, "last-name", "", "last name")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user's profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}

			if err := a.session.GetProfile(cmd.Context()); err != nil {
				return err
			}
			user := a.session.Snapshot().User
			fmt.Printf("%s <%s>\n", user.Username, user.Email)
			if user.FullName != "" {
				fmt.Printf("Name:    %s\n", user.FullName)
			}
			fmt.Printf("Read:    %d books\n", user.BooksReadCount)
			fmt.Printf("Reviews: %d (average rating %.1f)\n", user.ReviewsCount, user.AverageRating)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session state without touching it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			a.gate.Boot(cmd.Context())

			fmt.Printf("Environment: %s\n", a.cfg.Env)
			fmt.Printf("API:         %s\n", a.cfg.APIBaseURL)
			fmt.Printf("Session:     %s\n", a.gate.Decide())
			if user := a.session.Snapshot().User; user != nil {
				fmt.Printf("User:        %s\n", user.Username)
			}
			return nil
		},
	}
}

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}
