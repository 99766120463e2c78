// Package stub is a self-contained in-memory rendition of the book-review
// API, used for local development and end-to-end exercising of the client.
// It implements the same endpoint table and envelopes as the production
// upstream, nothing more.
package stub

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bookden/internal/api"
	"bookden/pkg/platform/sentinel"
)

// account pairs the public user record with its password hash.
type account struct {
	user         api.User
	passwordHash []byte
}

// Store holds all stub data behind one lock. Error contract follows the
// usual store pattern: sentinel.ErrNotFound for absent entities,
// sentinel.ErrConflict for duplicates, nil on success.
type Store struct {
	mu          sync.RWMutex
	nextID      int
	byUsername  map[string]*account
	byEmail     map[string]*account
	genres      []api.Genre
	books       map[int]*api.Book
	reviews     map[int]*api.Review
	comments    map[int][]api.Comment
	readingList map[int]*api.ReadingListEntry
}

// NewStore builds an empty store with the default genre taxonomy.
func NewStore() *Store {
	s := &Store{
		nextID:      1,
		byUsername:  make(map[string]*account),
		byEmail:     make(map[string]*account),
		books:       make(map[int]*api.Book),
		reviews:     make(map[int]*api.Review),
		comments:    make(map[int][]api.Comment),
		readingList: make(map[int]*api.ReadingListEntry),
	}
	for _, name := range []string{"Fiction", "Non-fiction", "Science Fiction", "Fantasy", "Mystery", "Biography"} {
		s.genres = append(s.genres, api.Genre{ID: s.nextID, Name: name})
		s.nextID++
	}
	return s
}

func (s *Store) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}

// CreateUser registers a new account. Duplicate emails conflict, matching
// the upstream's 409 behavior.
func (s *Store) CreateUser(data api.RegisterData) (*api.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[data.Email]; exists {
		return nil, fmt.Errorf("user %q already exists: %w", data.Email, sentinel.ErrConflict)
	}
	if _, exists := s.byUsername[data.Username]; exists {
		return nil, fmt.Errorf("username %q already taken: %w", data.Username, sentinel.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(data.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	acct := &account{
		user: api.User{
			ID:         s.allocID(),
			Username:   data.Username,
			FirstName:  data.FirstName,
			LastName:   data.LastName,
			FullName:   data.FirstName + " " + data.LastName,
			Email:      data.Email,
			DateJoined: time.Now().UTC().Format(time.RFC3339),
		},
		passwordHash: hash,
	}
	s.byUsername[data.Username] = acct
	s.byEmail[data.Email] = acct

	user := acct.user
	return &user, nil
}

// Authenticate checks a username/password pair.
func (s *Store) Authenticate(username, password string) (*api.User, error) {
	s.mu.RLock()
	acct, ok := s.byUsername[username]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, sentinel.ErrNotFound)
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return nil, fmt.Errorf("password mismatch: %w", sentinel.ErrInvalidState)
	}
	user := acct.user
	return &user, nil
}

// UserByEmail resolves the subject of a verified token.
func (s *Store) UserByEmail(email string) (*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", email, sentinel.ErrNotFound)
	}
	user := acct.user
	return &user, nil
}

// Genres lists the taxonomy.
func (s *Store) Genres() []api.Genre {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Genre, len(s.genres))
	copy(out, s.genres)
	return out
}

// CreateBook adds a catalog entry.
func (s *Store) CreateBook(book api.Book) *api.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	book.ID = s.allocID()
	now := time.Now().UTC().Format(time.RFC3339)
	book.CreatedAt = now
	book.UpdatedAt = now
	s.books[book.ID] = &book
	copied := book
	return &copied
}

// Books lists the catalog ordered by id.
func (s *Store) Books() []api.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Book fetches one catalog entry.
func (s *Store) Book(id int) (*api.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return nil, fmt.Errorf("book %d: %w", id, sentinel.ErrNotFound)
	}
	copied := *b
	return &copied, nil
}

// UpdateBook replaces a catalog entry.
func (s *Store) UpdateBook(id int, book api.Book) (*api.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.books[id]
	if !ok {
		return nil, fmt.Errorf("book %d: %w", id, sentinel.ErrNotFound)
	}
	book.ID = id
	book.CreatedAt = existing.CreatedAt
	book.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	s.books[id] = &book
	copied := book
	return &copied, nil
}

// DeleteBook removes a catalog entry.
func (s *Store) DeleteBook(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return fmt.Errorf("book %d: %w", id, sentinel.ErrNotFound)
	}
	delete(s.books, id)
	return nil
}

// CreateReview records a review and refreshes the book's aggregates.
func (s *Store) CreateReview(review api.Review) (*api.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[review.Book]; !ok {
		return nil, fmt.Errorf("book %d: %w", review.Book, sentinel.ErrNotFound)
	}
	review.ID = s.allocID()
	now := time.Now().UTC().Format(time.RFC3339)
	review.CreatedAt = now
	review.UpdatedAt = now
	s.reviews[review.ID] = &review
	s.recalculateBookStats(review.Book)
	copied := review
	return &copied, nil
}

// Reviews lists reviews, optionally filtered by book id (0 means all).
func (s *Store) Reviews(bookID int) []api.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		if bookID != 0 && r.Book != bookID {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteReview removes a review and refreshes the book's aggregates.
func (s *Store) DeleteReview(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	review, ok := s.reviews[id]
	if !ok {
		return fmt.Errorf("review %d: %w", id, sentinel.ErrNotFound)
	}
	delete(s.reviews, id)
	s.recalculateBookStats(review.Book)
	return nil
}

// Comments lists the comments under a review.
func (s *Store) Comments(reviewID int) []api.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Comment, len(s.comments[reviewID]))
	copy(out, s.comments[reviewID])
	return out
}

// AddComment appends a comment to a review.
func (s *Store) AddComment(comment api.Comment) (*api.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[comment.Review]; !ok {
		return nil, fmt.Errorf("review %d: %w", comment.Review, sentinel.ErrNotFound)
	}
	comment.ID = s.allocID()
	comment.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	s.comments[comment.Review] = append(s.comments[comment.Review], comment)
	copied := comment
	return &copied, nil
}

// AddReadingListEntry puts a book on a user's reading list.
func (s *Store) AddReadingListEntry(entry api.ReadingListEntry) (*api.ReadingListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[entry.Book]; !ok {
		return nil, fmt.Errorf("book %d: %w", entry.Book, sentinel.ErrNotFound)
	}
	if entry.Status == "" {
		entry.Status = api.StatusWantToRead
	}
	entry.ID = s.allocID()
	entry.DateAdded = time.Now().UTC().Format(time.RFC3339)
	s.readingList[entry.ID] = &entry
	copied := entry
	return &copied, nil
}

// ReadingList lists a user's entries (0 means all users).
func (s *Store) ReadingList(userID int) []api.ReadingListEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.ReadingListEntry, 0, len(s.readingList))
	for _, e := range s.readingList {
		if userID != 0 && e.User != userID {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// recalculateBookStats keeps a book's review aggregates current.
// Callers must hold the write lock.
func (s *Store) recalculateBookStats(bookID int) {
	book, ok := s.books[bookID]
	if !ok {
		return
	}
	var count int
	var sum float64
	for _, r := range s.reviews {
		if r.Book == bookID {
			count++
			sum += float64(r.Rating)
		}
	}
	book.ReviewsCount = count
	if count > 0 {
		book.AverageRating = sum / float64(count)
	} else {
		book.AverageRating = 0
	}
}
