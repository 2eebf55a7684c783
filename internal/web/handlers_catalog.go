package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/JonMunkholm/catalog/internal/dedup"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxJSONBody bounds the JSON bodies of the maintenance routes.
const maxJSONBody = 1 << 20

type sectorResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Position    int       `json:"position"`
	IsActive    bool      `json:"isActive"`
}

type duplicatesRequest struct {
	Names    []string   `json:"names"`
	SectorID *uuid.UUID `json:"sectorId"`
}

type duplicatesResponse struct {
	Pairs    []dedup.Pair    `json:"pairs,omitempty"`
	Findings []dedup.Finding `json:"findings,omitempty"`
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

type relocateRequest struct {
	SectorID uuid.UUID `json:"sectorId"`
}

type deletedResponse struct {
	Deleted taxonomy.Counts `json:"deleted"`
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest("%s %q is not a valid id", name, raw)
	}
	return id, nil
}

// handleCounts returns the number of records per level.
func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.service.GetCounts(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"counts": counts,
		"total":  counts.Total(),
	})
}

func (s *Server) handleListSectors(w http.ResponseWriter, r *http.Request) {
	sectors, err := s.service.ListSectors(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out := make([]sectorResponse, len(sectors))
	for i, sec := range sectors {
		out[i] = sectorResponse{
			ID:          sec.ID,
			Name:        sec.Name,
			Description: sec.Description,
			Position:    sec.Position,
			IsActive:    sec.IsActive,
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"sectors": out})
}

// handleDuplicates compares either a flat list of names or every sibling
// set stored under one sector.
func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	var req duplicatesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	switch {
	case req.SectorID != nil && len(req.Names) > 0:
		s.respondError(w, r, badRequest("send either names or sectorId, not both"))
	case req.SectorID != nil:
		findings, err := s.service.FindSectorDuplicates(r.Context(), *req.SectorID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, duplicatesResponse{Findings: findings})
	case len(req.Names) > 0:
		writeJSON(w, r, http.StatusOK, duplicatesResponse{Pairs: s.service.FindDuplicateNames(req.Names)})
	default:
		s.respondError(w, r, badRequest("names or sectorId is required"))
	}
}

// handleReset deletes the whole catalog. The body must be {"confirm": true}.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if !req.Confirm {
		s.respondError(w, r, badRequest("reset requires \"confirm\": true"))
		return
	}

	deleted, err := s.service.ResetAll(withRequestMetadata(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, deletedResponse{Deleted: deleted})
}

// handleRelocateCategory moves a category and its subtree to another sector.
func (s *Server) handleRelocateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uuidParam(r, "categoryID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req relocateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.SectorID == uuid.Nil {
		s.respondError(w, r, badRequest("sectorId is required"))
		return
	}

	if err := s.service.RelocateCategory(withRequestMetadata(r), categoryID, req.SectorID); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{
		"categoryId": categoryID.String(),
		"sectorId":   req.SectorID.String(),
	})
}

// handleDelete returns the cascade delete handler of one level.
func (s *Server) handleDelete(level taxonomy.Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		ctx := withRequestMetadata(r)
		a := s.service.Admin()
		var deleted taxonomy.Counts
		switch level {
		case taxonomy.LevelSector:
			deleted, err = a.DeleteSector(ctx, id)
		case taxonomy.LevelCategory:
			deleted, err = a.DeleteCategory(ctx, id)
		case taxonomy.LevelSubcategory:
			deleted, err = a.DeleteSubcategory(ctx, id)
		case taxonomy.LevelJob:
			if err = a.DeleteJob(ctx, id); err == nil {
				deleted.Jobs = 1
			}
		}
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, deletedResponse{Deleted: deleted})
	}
}

// handleHealth reports liveness, and readiness of the store when a health
// check is configured.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	limiter := s.service.LimiterStatus()
	body := map[string]any{
		"status":  "ok",
		"imports": limiter,
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			body["status"] = "unavailable"
			body["store"] = "unreachable"
			writeJSON(w, r, http.StatusServiceUnavailable, body)
			return
		}
		body["store"] = "ok"
	}
	writeJSON(w, r, http.StatusOK, body)
}
