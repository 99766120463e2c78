package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"bookden/internal/api"
)

func booksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and manage the book catalog",
	}
	cmd.AddCommand(booksListCmd(), booksShowCmd(), booksAddCmd(), booksCoverCmd())
	return cmd
}

func booksListCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}

			query := url.Values{}
			if search != "" {
				query.Set("search", search)
			}
			page, err := a.api.Books.List(cmd.Context(), query)
			if err != nil {
				return err
			}
			for _, b := range page.Objects {
				fmt.Printf("%4d  %-40s  %-24s  %.1f (%d reviews)\n",
					b.ID, b.Title, b.Author, b.AverageRating, b.ReviewsCount)
			}
			fmt.Printf("%d of %d books\n", len(page.Objects), page.Count)
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "filter by title or author")
	return cmd
}

func booksShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one book with its reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid book id %q", args[0])
			}

			book, err := a.api.Books.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("%s by %s\n", book.Title, book.Author)
			if book.Description != "" {
				fmt.Println(book.Description)
			}
			fmt.Printf("Rating: %.1f across %d reviews\n", book.AverageRating, book.ReviewsCount)
			for _, r := range book.Reviews {
				fmt.Printf("  [%d/5] %s\n", r.Rating, r.Body)
			}
			return nil
		},
	}
}

func booksAddCmd() *cobra.Command {
	var book api.Book

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}

			created, err := a.api.Books.Create(cmd.Context(), book)
			if err != nil {
				return err
			}
			fmt.Printf("Added %q as book %d\n", created.Title, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&book.Title, "title", "", "book title")
	cmd.Flags().StringVar(&book.Author, "author", "", "book author")
	cmd.Flags().StringVar(&book.Description, "description", "", "description")
	cmd.Flags().StringVar(&book.ISBN, "isbn", "", "ISBN")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("author")
	return cmd
}

func booksCoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cover <id> <file>",
		Short: "Upload a cover image for a book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid book id %q", args[0])
			}

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			book, err := a.api.UploadBookCover(cmd.Context(), id, filepath.Base(args[1]), f)
			if err != nil {
				return err
			}
			fmt.Printf("Cover set for %q\n", book.Title)
			return nil
		},
	}
}

func genresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List genres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}

			page, err := a.api.Genres.List(cmd.Context(), nil)
			if err != nil {
				return err
			}
			for _, g := range page.Objects {
				fmt.Printf("%4d  %s\n", g.ID, g.Name)
			}
			return nil
		},
	}
}

func reviewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Browse and write reviews",
	}
	cmd.AddCommand(reviewsListCmd(), reviewsAddCmd())
	return cmd
}

func reviewsListCmd() *cobra.Command {
	var bookID int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reviews, optionally for one book",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}

			query := url.Values{}
			if bookID > 0 {
				query.Set("book", strconv.Itoa(bookID))
			}
			page, err := a.api.Reviews.List(cmd.Context(), query)
			if err != nil {
				return err
			}
			for _, r := range page.Objects {
				fmt.Printf("%4d  book %d  [%d/5]  %s\n", r.ID, r.Book, r.Rating, r.Body)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&bookID, "book", 0, "limit to one book id")
	return cmd
}

func reviewsAddCmd() *cobra.Command {
	var review api.Review

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Review a book",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}

			created, err := a.api.Reviews.Create(cmd.Context(), review)
			if err != nil {
				return err
			}
			fmt.Printf("Review %d recorded\n", created.ID)
			return nil
		},
	}

	cmd.Flags().IntVar(&review.Book, "book", 0, "book id")
	cmd.Flags().IntVar(&review.Rating, "rating", 0, "rating 1-5")
	cmd.Flags().StringVar(&review.Body, "body", "", "review text")
	_ = cmd.MarkFlagRequired("book")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func readingListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reading-list",
		Short: "Manage your reading list",
	}
	cmd.AddCommand(readingListShowCmd(), readingListAddCmd())
	return cmd
}

func readingListShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your reading list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}

			page, err := a.api.ReadingList.List(cmd.Context(), nil)
			if err != nil {
				return err
			}
			for _, e := range page.Objects {
				title := strconv.Itoa(e.Book)
				if e.BookDetails != nil {
					title = e.BookDetails.Title
				}
				fmt.Printf("%-40s  %s\n", title, e.Status)
			}
			return nil
		},
	}
}

func readingListAddCmd() *cobra.Command {
	var entry api.ReadingListEntry

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to your reading list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}

			created, err := a.api.ReadingList.Create(cmd.Context(), entry)
			if err != nil {
				return err
			}
			fmt.Printf("Added book %d (%s)\n", created.Book, created.Status)
			return nil
		},
	}

	cmd.Flags().IntVar(&entry.Book, "book", 0, "book id")
	cmd.Flags().StringVar(&entry.Status, "status", api.StatusWantToRead,
		"want_to_read | currently_reading | read")
	_ = cmd.MarkFlagRequired("book")
	return cmd
}
