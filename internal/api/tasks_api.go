package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dayplanner-app/dayplanner/internal/app/reschedule"
	"github.com/dayplanner-app/dayplanner/internal/app/scoring"
	"github.com/dayplanner-app/dayplanner/internal/app/tasks"
	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// taskRequest is the body of POST /api/tasks.
type taskRequest struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Date           time.Time         `json:"date"`
	StartTime      time.Time         `json:"startTime"`
	EndTime        time.Time         `json:"endTime"`
	Type           domain.TaskType   `json:"type"`
	RecurrenceRule []time.Weekday    `json:"recurrenceRule"`
	Status         domain.TaskStatus `json:"status"`
	Category       domain.Category   `json:"category"`
	Priority       domain.Priority   `json:"priority"`
}

func (req taskRequest) task() domain.Task {
	return domain.Task{
		Name:           req.Name,
		Description:    req.Description,
		Date:           req.Date,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Type:           req.Type,
		RecurrenceRule: req.RecurrenceRule,
		Status:         req.Status,
		Category:       req.Category,
		Priority:       req.Priority,
	}
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	task, err := s.svc.Tasks.Create(r.Context(), userID(r), req.task())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	loc := s.svc.Tasks.Location()
	from, err := queryTime(r, "from", loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
		return
	}
	to, err := queryTime(r, "to", loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
		return
	}

	list, err := s.svc.Tasks.List(r.Context(), userID(r), tasks.ListOptions{
		Status: domain.TaskStatus(r.URL.Query().Get("status")),
		From:   from,
		To:     to,
		Limit:  queryInt(r, "limit", 0),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.Tasks.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleUpdateTask applies a partial edit; omitted fields are kept.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch tasks.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	task, err := s.svc.Tasks.Update(r.Context(), userID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Tasks.Delete(r.Context(), userID(r), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

type statusRequest struct {
	Status domain.TaskStatus `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	task, err := s.svc.Tasks.SetStatus(r.Context(), userID(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.Tasks.Complete(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ─── Rescheduling ───────────────────────────────────────────────────────────

// handleReschedule runs one attempt and returns its Result as the body.
func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	var strategy scoring.Strategy
	if name := r.URL.Query().Get("strategy"); name != "" {
		st, err := scoring.Lookup(name)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		strategy = st
	}

	task, err := s.svc.Tasks.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	res := s.svc.Reschedule.RescheduleWith(r.Context(), task, strategy)
	writeJSON(w, resultStatus(res), res)
}

// resultStatus picks the HTTP status for a reschedule Result.
func resultStatus(res reschedule.Result) int {
	switch {
	case res.Success:
		return http.StatusOK
	case res.Reason == reschedule.ReasonNotFound:
		return http.StatusNotFound
	case res.Reason == reschedule.ReasonConflict:
		return http.StatusConflict
	case res.Reason == reschedule.ReasonPersistence:
		return http.StatusInternalServerError
	default:
		// no_slot, invalid_state and invalid_duration are answers, not faults.
		return http.StatusOK
	}
}

type bulkRequest struct {
	TaskIDs []string `json:"taskIds"`
}

func (s *Server) handleBulkReschedule(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.TaskIDs) == 0 {
		writeError(w, http.StatusBadRequest, "taskIds must be a non-empty array")
		return
	}

	results := s.svc.Reschedule.RescheduleMany(r.Context(), userID(r), req.TaskIDs)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Bulk reschedule completed",
		"results": results,
	})
}

func (s *Server) handleGenerateRecurring(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Recurring.Generate(r.Context(), userID(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Tasks.WeeklySummary(r.Context(), userID(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
