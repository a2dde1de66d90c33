package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"propwise/apperr"
	"propwise/identity"
	"propwise/services"
)

func uuidVar(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func int64Var(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==================== Listings ====================

func (s *Server) searchListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	listings, err := s.svc.Listings.Search(r.Context(), q, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.svc.Listings.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) markSold(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.svc.Listings.MarkSold(r.Context(), identity.FromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ==================== Map & area insights ====================

func (s *Server) mapListings(w http.ResponseWriter, r *http.Request) {
	pins, err := s.svc.Insights.MapPins(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pins)
}

func (s *Server) nearbyAmenities(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	markers, err := s.svc.Insights.NearbyAmenities(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markers)
}

func (s *Server) areaAmenities(w http.ResponseWriter, r *http.Request) {
	id, err := int64Var(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	markers, err := s.svc.Insights.AreaAmenities(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markers)
}

func (s *Server) priceTrend(w http.ResponseWriter, r *http.Request) {
	id, err := int64Var(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	trend, err := s.svc.Insights.PriceTrend(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

// ==================== Saved searches ====================

func (s *Server) listSavedSearches(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.SavedSearches.List(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// createSavedSearch accepts the search page's query string plus a "name"
// field, either as a form body or in the URL.
func (s *Server) createSavedSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, apperr.Validation("invalid form"))
		return
	}
	ss, err := s.svc.SavedSearches.Create(r.Context(), identity.FromContext(r.Context()), r.Form.Get("name"), r.Form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ss)
}

func (s *Server) updateSavedSearch(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		IsActive *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsActive == nil {
		writeError(w, r, apperr.Validation("is_active is required"))
		return
	}
	if err := s.svc.SavedSearches.SetActive(r.Context(), identity.FromContext(r.Context()), id, *body.IsActive); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteSavedSearch(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.SavedSearches.Delete(r.Context(), identity.FromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ==================== Notifications ====================

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	list, err := s.svc.Notifications.List(r.Context(), identity.FromContext(r.Context()), unread)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Notifications.MarkRead(r.Context(), identity.FromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ==================== Compare ====================

func (s *Server) compareListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.svc.Compare.Listings(r.Context(), sessionID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) compareAdd(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ids, err := s.svc.Compare.Add(r.Context(), sessionID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

func (s *Server) compareRemove(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ids, err := s.svc.Compare.Remove(r.Context(), sessionID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

// ==================== AI description ====================

func (s *Server) describe(w http.ResponseWriter, r *http.Request) {
	var facts services.ListingFacts
	if err := json.NewDecoder(r.Body).Decode(&facts); err != nil {
		writeError(w, r, apperr.Validation("invalid request body"))
		return
	}
	text, err := s.svc.Describer.Describe(r.Context(), identity.FromContext(r.Context()), facts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"description": text})
}
