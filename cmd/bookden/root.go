package main

import (
	"context"

	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookden",
		Short: "Terminal client for the BookDen book-review platform",
		Long: `bookden talks to a BookDen API server. Sign in with "bookden login";
the session is persisted locally and refreshed automatically until you
log out or the refresh token expires.

Configuration comes from the environment (optionally via .env):
  BOOKDEN_ENV               development | staging | production
  BOOKDEN_API_URL           API root, e.g. https://api.bookden.example/api/v1/
  BOOKDEN_CREDENTIALS_PATH  where the credential bundle is stored`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		loginCmd(),
		registerCmd(),
		logoutCmd(),
		whoamiCmd(),
		statusCmd(),
		booksCmd(),
		genresCmd(),
		reviewsCmd(),
		readingListCmd(),
	)
	return cmd
}

// requireSession boots the guard and refuses to run protected commands
// without a live session.
func requireSession(ctx context.Context, a *app) error {
	a.gate.Boot(ctx)
	return a.gate.Require(ctx)
}
