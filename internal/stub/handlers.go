package stub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookden/internal/api"
	"bookden/pkg/platform/sentinel"
)

// Server is the stub API's HTTP layer. Handlers delegate to the store and
// token manager; transport concerns stay here.
type Server struct {
	store  *Store
	tokens *TokenManager
	logger *slog.Logger
}

// NewServer wires the stub's HTTP surface.
func NewServer(store *Store, tokens *TokenManager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{store: store, tokens: tokens, logger: logger}
}

type contextKeyUser struct{}

// Router assembles the endpoint table the client targets, all under
// trailing-slash paths like the production upstream.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/account", func(r chi.Router) {
		r.Post("/authenticate/", s.handleAuthenticate)
		r.Post("/registration/", s.handleRegistration)
		r.Post("/logout/", s.handleLogout)
		r.Post("/verify-token/", s.handleVerifyToken)
		r.Post("/refresh-token/", s.handleRefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/users/profile/", s.handleProfile)
			r.Get("/reading-list/", s.handleReadingList)
			r.Post("/reading-list/", s.handleAddReadingListEntry)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/book/", s.handleListBooks)
		r.Post("/book/", s.handleCreateBook)
		r.Get("/book/genre/", s.handleGenres)
		r.Get("/book/{id}/", s.handleGetBook)
		r.Post("/book/{id}/cover/", s.handleBookCover)
		r.Put("/book/{id}/", s.handleUpdateBook)
		r.Delete("/book/{id}/", s.handleDeleteBook)
		r.Get("/review/", s.handleListReviews)
		r.Post("/review/", s.handleCreateReview)
		r.Delete("/review/{id}/", s.handleDeleteReview)
		r.Get("/review/{id}/comments/", s.handleReviewComments)
		r.Post("/review/{id}/comments/", s.handleAddComment)
	})

	return r
}

// requireAuth validates the bearer token and resolves its subject.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const bearerPrefix = "Bearer "
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, bearerPrefix)
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Missing or invalid Authorization header"})
			return
		}

		email, err := s.tokens.VerifyAccess(token)
		if err != nil {
			s.logger.Warn("rejected bearer token", "error", err)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
			return
		}
		user, err := s.store.UserByEmail(email)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unknown token subject"})
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyUser{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(ctx context.Context) *api.User {
	user, _ := ctx.Value(contextKeyUser{}).(*api.User)
	return user
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := s.store.Authenticate(req.Username, req.Password)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Failed Authentication: Incorrect Credentials"})
		return
	}
	s.writeAuthPayload(w, user)
}

func (s *Server) handleRegistration(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username, email and password are required"})
		return
	}

	user, err := s.store.CreateUser(req)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "User already exists"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		return
	}
	s.writeAuthPayload(w, user)
}

// writeAuthPayload issues the token pair plus user record both login and
// registration return.
func (s *Server) writeAuthPayload(w http.ResponseWriter, user *api.User) {
	access, err := s.tokens.Access(user.Email)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "minting access token"})
		return
	}
	refresh, err := s.tokens.Refresh(user.Email)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "minting refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, api.AuthPayload{Token: access, Refresh: refresh, User: *user})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	// Stateless tokens; teardown happens client-side.
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	email, err := s.tokens.VerifyAccess(req.Token)
	if err != nil {
		if errors.Is(err, sentinel.ErrExpired) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false, "message": "Token has expired"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false, "message": "Invalid token"})
		return
	}
	if req.Email != "" && req.Email != email {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false, "message": "Token subject mismatch"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "message": "Token is valid"})
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh is required"})
		return
	}

	email, err := s.tokens.VerifyRefresh(req.Refresh)
	if err != nil {
		if errors.Is(err, sentinel.ErrExpired) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Refresh token has expired"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
		return
	}

	access, err := s.tokens.Access(email)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "minting access token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r.Context()))
}

func (s *Server) handleListBooks(w http.ResponseWriter, _ *http.Request) {
	books := s.store.Books()
	writeJSON(w, http.StatusOK, api.Page[api.Book]{Objects: books, Count: len(books)})
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var book api.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if book.Title == "" || book.Author == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and author are required"})
		return
	}
	user := currentUser(r.Context())
	book.CreatedBy = user
	writeJSON(w, http.StatusCreated, s.store.CreateBook(book))
}

func (s *Server) handleGenres(w http.ResponseWriter, _ *http.Request) {
	genres := s.store.Genres()
	writeJSON(w, http.StatusOK, api.Page[api.Genre]{Objects: genres, Count: len(genres)})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	book, err := s.store.Book(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleBookCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	file, header, err := r.FormFile("cover_image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cover_image file is required"})
		return
	}
	defer file.Close()

	book, err := s.store.Book(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	// The stub keeps no media storage; the filename stands in for the URL.
	book.CoverImage = "/media/covers/" + header.Filename
	updated, err := s.store.UpdateBook(id, *book)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var book api.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	updated, err := s.store.UpdateBook(id, book)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteBook(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	bookID, _ := strconv.Atoi(r.URL.Query().Get("book"))
	reviews := s.store.Reviews(bookID)
	writeJSON(w, http.StatusOK, api.Page[api.Review]{Objects: reviews, Count: len(reviews)})
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var review api.Review
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if review.Rating < 1 || review.Rating > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rating must be between 1 and 5"})
		return
	}
	review.User = currentUser(r.Context()).ID
	created, err := s.store.CreateReview(review)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteReview(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReviewComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	comments := s.store.Comments(id)
	writeJSON(w, http.StatusOK, api.Page[api.Comment]{Objects: comments, Count: len(comments)})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var comment api.Comment
	if err := json.NewDecoder(r.Body).Decode(&comment); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	comment.Review = id
	comment.User = currentUser(r.Context()).ID
	created, err := s.store.AddComment(comment)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleReadingList(w http.ResponseWriter, r *http.Request) {
	entries := s.store.ReadingList(currentUser(r.Context()).ID)
	writeJSON(w, http.StatusOK, api.Page[api.ReadingListEntry]{Objects: entries, Count: len(entries)})
}

func (s *Server) handleAddReadingListEntry(w http.ResponseWriter, r *http.Request) {
	var entry api.ReadingListEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	entry.User = currentUser(r.Context()).ID
	created, err := s.store.AddReadingListEntry(entry)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, sentinel.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
