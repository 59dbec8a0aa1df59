package http

import (
	"net/http"

	"expensetracker/internal/core"
)

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	mp, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Budget.Get(r.Context(), currentUser(r), mp.Year, mp.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(b).Write(w, r)
}

type budgetRequest struct {
	MonthlyBudget core.Money `json:"monthly_budget"`
	// AlertThreshold is a percentage of the budget; omitted means 80.
	AlertThreshold *int `json:"alert_threshold" validate:"omitempty,min=1,max=100"`
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	threshold := core.DefaultAlertPercent
	if req.AlertThreshold != nil {
		threshold = *req.AlertThreshold
	}
	b, err := s.svc.Budget.Update(r.Context(), currentUser(r), req.MonthlyBudget, threshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(b).Write(w, r)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	mp, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	overview, err := s.svc.Reports.MonthOverview(r.Context(), currentUser(r), mp.Year, mp.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(overview).Write(w, r)
}

func (s *Server) handleTrendReport(w http.ResponseWriter, r *http.Request) {
	tp, err := ParseTrendParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	points, err := s.svc.Reports.Trend(r.Context(), currentUser(r), tp.Year, tp.Month, tp.Months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(points).Write(w, r)
}

func (s *Server) handleSummaryReport(w http.ResponseWriter, r *http.Request) {
	mp, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.svc.Reports.Summary(r.Context(), currentUser(r), mp.Year, mp.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(summary).Write(w, r)
}

// NotificationList is the body of GET /api/notifications.
type NotificationList struct {
	Items       []core.Notification `json:"items"`
	UnreadCount int                 `json:"unread_count"`
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	items, err := s.svc.Notifications.List(r.Context(), userID, boolParam(r.URL.Query(), "unread"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	unread, err := s.svc.Notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Notification{}
	}
	OK(NotificationList{Items: items, UnreadCount: unread}).Write(w, r)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.Notifications.MarkRead(r.Context(), currentUser(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	OK(map[string]string{"id": id}).Write(w, r)
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Notifications.MarkAllRead(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(map[string]int{"updated": n}).Write(w, r)
}
