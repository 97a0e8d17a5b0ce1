package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

func (s *Server) handleGetSleep(w http.ResponseWriter, r *http.Request) {
	win, err := s.svc.Settings.SleepWindow(r.Context(), userID(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, win)
}

func (s *Server) handlePutSleep(w http.ResponseWriter, r *http.Request) {
	var win domain.SleepWindow
	if err := decodeJSON(w, r, &win); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := win.Validate(); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.svc.Settings.SaveSleepWindow(r.Context(), userID(r), win); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, win)
}

// ─── Notifications ──────────────────────────────────────────────────────────

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	list, err := s.svc.Inbox.List(r.Context(), userID(r), unread, queryInt(r, "limit", 50))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ok, err := s.svc.Inbox.MarkRead(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}
