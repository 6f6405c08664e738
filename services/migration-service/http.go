package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"graph-db-migrater/sdk/errs"
	"graph-db-migrater/sdk/plan"
)

// Router builds the peripheral HTTP surface. The bus is the primary
// interface; these endpoints exist for inspection and manual runs.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Post("/add", s.handleAdd)
	r.Post("/apply", s.handleApply)

	r.Route("/migrations", func(r chi.Router) {
		r.Get("/", s.handleGetLatest)
		r.Get("/{guid}", s.handleGetByGUID)
	})
	return r
}

func (s *Service) handleAdd(w http.ResponseWriter, r *http.Request) {
	var in MigrationIn
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		renderError(w, r, fmt.Errorf("%w: %v", errs.ErrInvalidMigrationRequest, err))
		return
	}
	added, err := s.Add(r.Context(), in)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"guid": added.GUID})
}

type applyIn struct {
	DBSource string `json:"db_source,omitempty"`
	plan.Pattern
}

func (s *Service) handleApply(w http.ResponseWriter, r *http.Request) {
	var in applyIn
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		renderError(w, r, fmt.Errorf("%w: %v", errs.ErrInvalidMigrationRequest, err))
		return
	}
	guid, err := s.Apply(r.Context(), in.DBSource, in.Pattern)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{
		"message": fmt.Sprintf("migration with guid %s has been applied", guid),
	})
}

func (s *Service) handleGetLatest(w http.ResponseWriter, r *http.Request) {
	out, err := s.Get(r.Context(), "")
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, out)
}

func (s *Service) handleGetByGUID(w http.ResponseWriter, r *http.Request) {
	out, err := s.Get(r.Context(), chi.URLParam(r, "guid"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, out)
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrMigrationNotFound):
		status = http.StatusNotFound
	case errs.IsClient(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	} else {
		log.WithError(err).Warn("request rejected")
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"message": err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		entry := log.WithFields(map[string]interface{}{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  ww.Status(),
			"elapsed": time.Since(start).String(),
		})
		if ww.Status() < http.StatusBadRequest {
			entry.Info("request")
		} else {
			entry.Warn("request")
		}
	})
}
