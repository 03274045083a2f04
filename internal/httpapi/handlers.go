package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lepinkainen/bookhaven/internal/book"
	"github.com/lepinkainen/bookhaven/internal/library"
	"github.com/lepinkainen/bookhaven/internal/reviews"
)

// Search paging defaults; Google Books caps maxResults at 40.
const (
	defaultSearchLimit = 10
	maxSearchLimit     = 40
)

var (
	errMissingUser  = errors.New("missing " + UserHeader + " header")
	errMissingQuery = errors.New("missing search query")
)

// badRequestError marks client input errors that have no sentinel of their own.
type badRequestError struct {
	msg string
}

func (e badRequestError) Error() string { return e.msg }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, r, errMissingQuery)
		return
	}

	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", defaultSearchLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if offset < 0 || limit < 1 || limit > maxSearchLimit {
		writeError(w, r, badRequestError{msg: fmt.Sprintf("offset must be >= 0 and limit between 1 and %d", maxSearchLimit)})
		return
	}

	writeJSON(w, http.StatusOK, s.catalog.SearchAndCache(r.Context(), query, offset, limit))
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	rec, err := s.catalog.Resolve(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	related, err := s.catalog.Related(r.Context(), chi.URLParam(r, "key"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, related)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.reviews.ListForBook(r.Context(), chi.URLParam(r, "key"), r.Header.Get(UserHeader), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleReviewStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reviews.Stats(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type postReviewRequest struct {
	Rating int    `json:"rating"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

func (s *Server) handlePostReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req postReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	review, err := s.reviews.Post(r.Context(), userID, chi.URLParam(r, "key"), req.Rating, req.Title, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.reviews.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.reviews.Like(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.reviews.Unlike(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	entries, err := s.library.List(r.Context(), userID, library.Status(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLibraryStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	counts, err := s.library.Counts(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

type addToLibraryRequest struct {
	BookKey string `json:"book_key"`
}

func (s *Server) handleAddToLibrary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req addToLibraryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.BookKey == "" {
		writeError(w, r, badRequestError{msg: "book_key is required"})
		return
	}

	entry, created, err := s.library.Add(r.Context(), userID, req.BookKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, entry)
}

func (s *Server) handleGetLibraryEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	entry, err := s.library.Get(r.Context(), userID, chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type updateLibraryRequest struct {
	Status   *string `json:"status"`
	Progress *int    `json:"progress"`
}

func (s *Server) handleUpdateLibraryEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req updateLibraryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == nil && req.Progress == nil {
		writeError(w, r, badRequestError{msg: "status or progress is required"})
		return
	}

	// Validate both fields first so a bad progress leaves the status untouched.
	var status library.Status
	if req.Status != nil {
		parsed, err := library.ParseStatus(*req.Status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		status = parsed
	}
	if req.Progress != nil && (*req.Progress < 0 || *req.Progress > 100) {
		writeError(w, r, fmt.Errorf("%w: %d", library.ErrInvalidProgress, *req.Progress))
		return
	}

	key := chi.URLParam(r, "key")
	var (
		entry *library.Entry
		err   error
	)
	if req.Status != nil {
		entry, err = s.library.UpdateStatus(r.Context(), userID, key, status)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Progress != nil {
		entry, err = s.library.UpdateProgress(r.Context(), userID, key, *req.Progress)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleRemoveFromLibrary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.library.Remove(r.Context(), userID, chi.URLParam(r, "key")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(UserHeader))
	if userID == "" {
		writeError(w, r, errMissingUser)
		return "", false
	}
	return userID, true
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequestError{msg: fmt.Sprintf("invalid %s %q", name, raw)}
	}
	return value, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, r, badRequestError{msg: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func statusFor(err error) int {
	var badRequest badRequestError
	switch {
	case errors.Is(err, book.ErrNotFound),
		errors.Is(err, library.ErrEntryNotFound),
		errors.Is(err, reviews.ErrReviewNotFound):
		return http.StatusNotFound
	case errors.Is(err, errMissingUser),
		errors.Is(err, library.ErrMissingUser),
		errors.Is(err, reviews.ErrMissingUser):
		return http.StatusUnauthorized
	case errors.Is(err, reviews.ErrNotAuthor):
		return http.StatusForbidden
	case errors.Is(err, errMissingQuery),
		errors.Is(err, library.ErrInvalidStatus),
		errors.Is(err, library.ErrInvalidProgress),
		errors.Is(err, reviews.ErrInvalidRating),
		errors.As(err, &badRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
