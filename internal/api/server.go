// Package api exposes the catalog as a JSON HTTP API for a browser frontend.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/vadimtrunov/CineScroll/internal/config"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

// PageSource resolves listing pages, typically a feed.PageCache.
type PageSource interface {
	Page(ctx context.Context, req query.Request) (*tmdb.MoviePage, error)
}

// Catalog provides detail lookups.
type Catalog interface {
	Movie(ctx context.Context, id int) (*tmdb.MovieDetails, error)
	Credits(ctx context.Context, id int) (*tmdb.Credits, error)
	Similar(ctx context.Context, id int) (*tmdb.MoviePage, error)
	Reviews(ctx context.Context, id, page int) (*tmdb.ReviewPage, error)
	Genres(ctx context.Context) ([]tmdb.Genre, error)
}

// Deps holds the server's collaborators.
type Deps struct {
	Pages     PageSource
	Catalog   Catalog
	ImageSize tmdb.ImageSize
}

// Server serves the JSON API.
type Server struct {
	pages     PageSource
	catalog   Catalog
	imageSize tmdb.ImageSize
	validator *validator.Validate
	logger    *slog.Logger
}

// NewServer creates a Server.
func NewServer(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	size := deps.ImageSize
	if size == "" {
		size = tmdb.DefaultImageSize
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name, _, _ := strings.Cut(fld.Tag.Get("query"), ","); name != "" {
			return name
		}
		return fld.Name
	})
	return &Server{
		pages:     deps.Pages,
		catalog:   deps.Catalog,
		imageSize: size,
		validator: v,
		logger:    logger.With(slog.String("component", "api")),
	}
}

// Routes returns the HTTP handler with all routes mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverPanic)

	r.NotFound(s.notFoundResponse)
	r.MethodNotAllowed(s.methodNotAllowedResponse)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/genres", s.handleGenres)
		r.Route("/movies", func(r chi.Router) {
			r.Get("/", s.handleMovies)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleMovie)
				r.Get("/credits", s.handleCredits)
				r.Get("/similar", s.handleSimilar)
				r.Get("/reviews", s.handleReviews)
			})
		})
	})

	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

// requestLogger attaches a request-scoped logger and logs each request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.With(slog.String("request_id", middleware.GetReqID(r.Context())))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(config.ContextWithLogger(r.Context(), logger)))

		logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				w.Header().Set("Connection", "close")
				s.serverErrorResponse(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
