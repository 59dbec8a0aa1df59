package http

import (
	"net/http"

	"expensetracker/internal/core"
)

type expenseRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category" validate:"required,max=50"`
	Date        core.Date  `json:"date"`
	Description string     `json:"description" validate:"max=500"`
}

func (req expenseRequest) expense() core.Expense {
	return core.Expense{
		Title:       sanitizeInput(req.Title),
		Amount:      req.Amount,
		Category:    sanitizeInput(req.Category),
		Date:        req.Date,
		Description: sanitizeInput(req.Description),
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseExpenseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.svc.Expenses.List(r.Context(), currentUser(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(page).Write(w, r)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Expenses.Create(r.Context(), currentUser(r), req.expense())
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(e).Header("Location", "/api/expenses/"+e.ID).Write(w, r)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Expenses.Get(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(e).Write(w, r)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Expenses.Update(r.Context(), currentUser(r), r.PathValue("id"), req.expense())
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(e).Write(w, r)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.Expenses.Delete(r.Context(), currentUser(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	OK(map[string]string{"id": id}).Write(w, r)
}
