package http

import (
	"net/http"

	"expensetracker/internal/core"
)

type recurringRequest struct {
	Title          string     `json:"title" validate:"required,max=200"`
	Amount         core.Money `json:"amount"`
	Category       string     `json:"category" validate:"required,max=50"`
	Frequency      string     `json:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	NextOccurrence core.Date  `json:"next_occurrence"`
	// Active defaults to true when omitted.
	Active *bool `json:"active"`
}

func (req recurringRequest) recurring() core.RecurringExpense {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return core.RecurringExpense{
		Title:          sanitizeInput(req.Title),
		Amount:         req.Amount,
		Category:       sanitizeInput(req.Category),
		Frequency:      core.Frequency(req.Frequency),
		NextOccurrence: req.NextOccurrence,
		Active:         active,
	}
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Recurring.List(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.RecurringExpense{}
	}
	OK(items).Write(w, r)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	re, err := s.svc.Recurring.Create(r.Context(), currentUser(r), req.recurring())
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(re).Header("Location", "/api/recurring/"+re.ID).Write(w, r)
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	re, err := s.svc.Recurring.Get(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(re).Write(w, r)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	re, err := s.svc.Recurring.Update(r.Context(), currentUser(r), r.PathValue("id"), req.recurring())
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(re).Write(w, r)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.Recurring.Delete(r.Context(), currentUser(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	OK(map[string]string{"id": id}).Write(w, r)
}

func (s *Server) handleSetRecurringActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		re, err := s.svc.Recurring.SetActive(r.Context(), currentUser(r), r.PathValue("id"), active)
		if err != nil {
			writeError(w, r, err)
			return
		}
		OK(re).Write(w, r)
	}
}
