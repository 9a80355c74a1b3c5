package app

import (
	"fmt"
	"time"

	"learninghelper/internal/util"
	"learninghelper/pkg/domain"
)

// CreateScheduleEntry plans a study block for one of the user's subjects.
func (a *App) CreateScheduleEntry(user domain.User, subjectID string, start, end time.Time, note string) (domain.ScheduleEntry, error) {
	if start.IsZero() || end.IsZero() {
		return domain.ScheduleEntry{}, ErrScheduleTimesRequired
	}
	if !end.After(start) {
		return domain.ScheduleEntry{}, ErrScheduleTimeOrder
	}
	subject, ok, err := a.store.GetSubject(subjectID)
	if err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("fetch subject: %w", err)
	}
	if !ok || subject.UserID != user.ID {
		return domain.ScheduleEntry{}, ErrSubjectNotFound
	}
	now := time.Now().UTC()
	entry := domain.ScheduleEntry{
		ID:          util.NewID(),
		UserID:      user.ID,
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		StartTime:   start.UTC(),
		EndTime:     end.UTC(),
		Note:        note,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.CreateScheduleEntry(entry); err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("create schedule entry: %w", err)
	}
	return entry, nil
}

// ListSchedule returns the user's schedule for one day ("2006-01-02"),
// earliest first.
func (a *App) ListSchedule(user domain.User, day string) ([]domain.ScheduleEntry, error) {
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return nil, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return a.store.ListScheduleForDay(user.ID, day)
}

// UpdateScheduleEntry rewrites an entry the user owns.
func (a *App) UpdateScheduleEntry(user domain.User, entryID, subjectID string, start, end time.Time, note string) (domain.ScheduleEntry, error) {
	if start.IsZero() || end.IsZero() {
		return domain.ScheduleEntry{}, ErrScheduleTimesRequired
	}
	if !end.After(start) {
		return domain.ScheduleEntry{}, ErrScheduleTimeOrder
	}
	subject, ok, err := a.store.GetSubject(subjectID)
	if err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("fetch subject: %w", err)
	}
	if !ok || subject.UserID != user.ID {
		return domain.ScheduleEntry{}, ErrSubjectNotFound
	}
	entry := domain.ScheduleEntry{
		ID:          entryID,
		UserID:      user.ID,
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		StartTime:   start.UTC(),
		EndTime:     end.UTC(),
		Note:        note,
		UpdatedAt:   time.Now().UTC(),
	}
	updated, err := a.store.UpdateScheduleEntry(entry)
	if err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("update schedule entry: %w", err)
	}
	if !updated {
		return domain.ScheduleEntry{}, ErrScheduleEntryNotFound
	}
	return entry, nil
}

// DeleteScheduleEntry removes an entry the user owns.
func (a *App) DeleteScheduleEntry(user domain.User, entryID string) error {
	deleted, err := a.store.DeleteScheduleEntry(entryID, user.ID)
	if err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	if !deleted {
		return ErrScheduleEntryNotFound
	}
	return nil
}
