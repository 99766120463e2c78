package api

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"bookden/internal/apiclient"
)

// Resource is a generic CRUD client for one REST collection with the
// standard list envelope. Each platform collection (books, genres, reviews,
// reading list, users) is an instantiation.
type Resource[T any] struct {
	client *apiclient.Client
	base   string
}

// NewResource builds a resource client rooted at base, e.g. "/book/".
func NewResource[T any](client *apiclient.Client, base string) *Resource[T] {
	return &Resource[T]{client: client, base: base}
}

// List fetches one page of the collection.
func (r *Resource[T]) List(ctx context.Context, query url.Values) (*Page[T], error) {
	var page Page[T]
	if err := r.client.Get(ctx, r.base, query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get fetches a single entity by id.
func (r *Resource[T]) Get(ctx context.Context, id int) (*T, error) {
	var out T
	if err := r.client.Get(ctx, r.item(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create posts a new entity and returns the server's representation.
func (r *Resource[T]) Create(ctx context.Context, in any) (*T, error) {
	var out T
	if err := r.client.Post(ctx, r.base, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces an entity and returns the server's representation.
func (r *Resource[T]) Update(ctx context.Context, id int, in any) (*T, error) {
	var out T
	if err := r.client.Put(ctx, r.item(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an entity.
func (r *Resource[T]) Delete(ctx context.Context, id int) error {
	return r.client.Delete(ctx, r.item(id), nil, nil)
}

func (r *Resource[T]) item(id int) string {
	return fmt.Sprintf("%s%d/", r.base, id)
}

// Client bundles every typed resource over one shared HTTP client.
type Client struct {
	Account     *AccountClient
	Books       *Resource[Book]
	Genres      *Resource[Genre]
	Reviews     *Resource[Review]
	ReadingList *Resource[ReadingListEntry]
	Users       *Resource[User]

	http *apiclient.Client
}

// NewClient wires the typed clients.
func NewClient(client *apiclient.Client) *Client {
	return &Client{
		Account:     NewAccountClient(client),
		Books:       NewResource[Book](client, "/book/"),
		Genres:      NewResource[Genre](client, "/book/genre/"),
		Reviews:     NewResource[Review](client, "/review/"),
		ReadingList: NewResource[ReadingListEntry](client, "/account/reading-list/"),
		Users:       NewResource[User](client, "/account/users/"),
		http:        client,
	}
}

// UploadBookCover replaces a book's cover image.
func (c *Client) UploadBookCover(ctx context.Context, bookID int, filename string, content io.Reader) (*Book, error) {
	var book Book
	path := fmt.Sprintf("/book/%d/cover/", bookID)
	if err := c.http.PostFile(ctx, path, "cover_image", filename, content, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// ReviewComments lists the comments under a review.
func (c *Client) ReviewComments(ctx context.Context, reviewID int) (*Page[Comment], error) {
	var page Page[Comment]
	path := fmt.Sprintf("/review/%d/comments/", reviewID)
	if err := c.http.Get(ctx, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
