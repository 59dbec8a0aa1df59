package services

import (
	"context"
	"fmt"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// RecurringService manages recurring expense templates.
type RecurringService struct {
	store  RecurringStore
	logger *log.Logger
	now    func() time.Time
}

func NewRecurringService(store RecurringStore, logger *log.Logger) *RecurringService {
	return &RecurringService{store: store, logger: logger.WithComponent(log.ComponentRecurring), now: time.Now}
}

func (s *RecurringService) Create(ctx context.Context, userID string, re core.RecurringExpense) (core.RecurringExpense, error) {
	re.ID = ""
	re.UserID = userID
	re.AnchorDay = 0
	re.Normalize()
	if err := re.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}
	created, err := s.store.CreateRecurring(ctx, re)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("create recurring: %w", err)
	}
	s.logger.InfoContext(ctx, "Recurring expense created",
		log.FieldUserID, userID,
		log.FieldRecurringID, created.ID,
		"frequency", created.Frequency)
	return created, nil
}

func (s *RecurringService) Get(ctx context.Context, userID, id string) (core.RecurringExpense, error) {
	return s.store.GetRecurring(ctx, userID, id)
}

func (s *RecurringService) List(ctx context.Context, userID string) ([]core.RecurringExpense, error) {
	return s.store.ListRecurring(ctx, userID)
}

// Update replaces the template. Moving NextOccurrence re-anchors monthly and
// yearly schedules on the new day.
func (s *RecurringService) Update(ctx context.Context, userID, id string, re core.RecurringExpense) (core.RecurringExpense, error) {
	existing, err := s.store.GetRecurring(ctx, userID, id)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	re.ID = id
	re.UserID = userID
	re.CreatedAt = existing.CreatedAt
	if re.NextOccurrence.Equal(existing.NextOccurrence.Time) {
		re.AnchorDay = existing.AnchorDay
	} else {
		re.AnchorDay = 0
	}
	re.Normalize()
	if err := re.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}
	return s.store.UpdateRecurring(ctx, re)
}

// SetActive pauses or resumes a template. Resuming skips the occurrences
// that fell inside the pause, so the next one is today or later.
func (s *RecurringService) SetActive(ctx context.Context, userID, id string, active bool) (core.RecurringExpense, error) {
	re, err := s.store.GetRecurring(ctx, userID, id)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	if active && !re.Active {
		checker, err := GetDuenessChecker(re.Frequency)
		if err != nil {
			return core.RecurringExpense{}, err
		}
		skipped := re.NextOccurrence
		re.NextOccurrence = skipPast(checker, re, core.DateOf(s.now()))
		if !re.NextOccurrence.Equal(skipped.Time) {
			s.logger.InfoContext(ctx, "Skipped occurrences missed while paused",
				log.FieldUserID, userID,
				log.FieldRecurringID, id,
				"from", skipped.String(),
				"next_occurrence", re.NextOccurrence.String())
		}
	}
	re.Active = active
	return s.store.UpdateRecurring(ctx, re)
}

func (s *RecurringService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteRecurring(ctx, userID, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Recurring expense deleted", log.FieldUserID, userID, log.FieldRecurringID, id)
	return nil
}
