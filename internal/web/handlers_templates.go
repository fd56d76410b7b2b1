package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sldstore/internal/core"
)

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q is not an integer", core.ErrInvalidRequest, raw)
	}
	return id, nil
}

// wantContent reports whether ?content= asks for raw template content.
func wantContent(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("content"))
	return v
}

// decodeBody decodes a JSON body limited to maxBytes and validates it. An
// oversized body surfaces as *http.MaxBytesError.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	return validateRequest(v)
}

type ingestRequest struct {
	Name    string `json:"name" validate:"max=255"`
	Content string `json:"content"`
	Lines   string `json:"lines"` // flat parser output, one record per line
}

// handleIngestTemplate stores a template and its flat hierarchy.
func (s *Server) handleIngestTemplate(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeBody(w, r, s.cfg.Ingest.MaxBodySize, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.service.IngestTemplate(r.Context(), req.Name, req.Content, req.Lines)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/templates/%d", result.TemplateID))
	writeJSON(w, http.StatusCreated, result)
}

// handleListTemplates returns every template.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.service.ListTemplates(r.Context(), wantContent(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// handleGetTemplate returns one template. A non-positive id lists all
// templates instead.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if id <= 0 {
		s.handleListTemplates(w, r)
		return
	}

	template, err := s.service.GetTemplate(r.Context(), id, wantContent(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, template)
}

// handleGetFeatureTypes returns the feature types of a template.
func (s *Server) handleGetFeatureTypes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	fts, err := s.service.GetFeatureTypes(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fts)
}

// handleGetTemplateTree returns a template with its full hierarchy.
func (s *Server) handleGetTemplateTree(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	tree, err := s.service.GetTemplateTree(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}
