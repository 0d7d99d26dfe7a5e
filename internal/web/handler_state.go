package web

import (
	"encoding/json"
	"net/http"

	"github.com/vbonduro/gallery/internal/domain"
	"github.com/vbonduro/gallery/internal/service"
)

type viewResponse struct {
	State  service.ViewState `json:"state"`
	Photos []*domain.Photo   `json:"photos"`
	Total  int               `json:"total"`
}

func (s *Server) writeView(w http.ResponseWriter) {
	photos := s.service.DerivedView()
	writeJSON(w, http.StatusOK, viewResponse{
		State:  s.service.State(),
		Photos: photos,
		Total:  len(photos),
	}, s.logger)
}

func (s *Server) handleGetView(w http.ResponseWriter, _ *http.Request) {
	s.writeView(w)
}

func (s *Server) handlePatchView(w http.ResponseWriter, r *http.Request) {
	var u service.StateUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "request body must be a JSON object")
		return
	}
	if _, err := s.service.ApplyState(u); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeView(w)
}

type openLightboxRequest struct {
	ID string `json:"id"`
}

type navigateRequest struct {
	Direction int `json:"direction"`
}

func (s *Server) handleGetLightbox(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Lightbox(), s.logger)
}

func (s *Server) handleOpenLightbox(w http.ResponseWriter, r *http.Request) {
	var req openLightboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "id is required")
		return
	}
	st, ok := s.service.OpenLightboxAt(req.ID)
	if !ok {
		writeAPIError(w, http.StatusNotFound, "not_found", "photo is not in the current view")
		return
	}
	writeJSON(w, http.StatusOK, st, s.logger)
}

func (s *Server) handleNavigateLightbox(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "direction is required")
		return
	}
	if req.Direction != 1 && req.Direction != -1 {
		writeAPIError(w, http.StatusBadRequest, "invalid_direction", "direction must be 1 or -1")
		return
	}
	st, ok := s.service.NavigateLightbox(req.Direction)
	if !ok {
		writeAPIError(w, http.StatusConflict, "lightbox_closed", "lightbox is not open")
		return
	}
	writeJSON(w, http.StatusOK, st, s.logger)
}

func (s *Server) handleCloseLightbox(w http.ResponseWriter, _ *http.Request) {
	s.service.CloseLightbox()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Stats(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"tier":   s.service.Tier(),
	}, s.logger)
}
