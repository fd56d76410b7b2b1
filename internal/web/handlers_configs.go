package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sldstore/internal/core"
	"github.com/JonMunkholm/sldstore/internal/store"
)

// OwnerHeader carries a config's ownership token.
const OwnerHeader = "X-Config-Owner"

// maxConfigBody caps create-config requests, which carry only names.
const maxConfigBody = 64 * 1024

// ownerToken parses the ownership header. A missing or malformed token
// yields core.ErrInvalidOwner.
func ownerToken(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if raw == "" {
		return uuid.Nil, core.ErrInvalidOwner
	}
	owner, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", core.ErrInvalidOwner, err)
	}
	return owner, nil
}

type createConfigRequest struct {
	Name       string `json:"name" validate:"max=255"`
	OutputPath string `json:"outputPath" validate:"max=1024"`
}

// handleCreateConfig creates a config for a template. The response carries
// the ownership token, which clients must keep.
func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	templateID, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req createConfigRequest
	if err := decodeBody(w, r, maxConfigBody, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	cfg, err := s.service.CreateConfig(r.Context(), templateID, req.Name, req.OutputPath)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/configs/%d/values", cfg.ID))
	writeJSON(w, http.StatusCreated, cfg)
}

type configValuesBody struct {
	Values []store.ConfigValue `json:"values"`
}

type valueRequest struct {
	ParamID int64  `json:"paramId" validate:"gt=0"`
	Value   string `json:"value"`
}

type replaceValuesRequest struct {
	Values []valueRequest `json:"values" validate:"dive"`
}

// handleGetConfigValues returns the current value set of a config.
func (s *Server) handleGetConfigValues(w http.ResponseWriter, r *http.Request) {
	configID, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	owner, err := ownerToken(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	values, err := s.service.GetConfigValues(r.Context(), configID, owner)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if values == nil {
		values = []store.ConfigValue{}
	}
	writeJSON(w, http.StatusOK, configValuesBody{Values: values})
}

// handleReplaceConfigValues makes the request's values the complete value
// set of a config.
func (s *Server) handleReplaceConfigValues(w http.ResponseWriter, r *http.Request) {
	configID, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	owner, err := ownerToken(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req replaceValuesRequest
	if err := decodeBody(w, r, s.cfg.Ingest.MaxBodySize, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	values := make([]store.ConfigValue, len(req.Values))
	for i, v := range req.Values {
		values[i] = store.ConfigValue{ParamID: v.ParamID, Value: v.Value}
	}

	if err := s.service.ReplaceConfigValues(r.Context(), configID, owner, values); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configValuesBody{Values: values})
}
