package app

import (
	"fmt"
	"strings"
	"time"

	"learninghelper/internal/util"
	"learninghelper/pkg/domain"
)

// CreateSubject adds a study subject for the user.
func (a *App) CreateSubject(user domain.User, name string) (domain.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Subject{}, ErrSubjectNameRequired
	}
	subject := domain.Subject{
		ID:        util.NewID(),
		UserID:    user.ID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateSubject(subject); err != nil {
		return domain.Subject{}, fmt.Errorf("create subject: %w", err)
	}
	return subject, nil
}

// ListSubjects returns the user's subjects, oldest first.
func (a *App) ListSubjects(user domain.User) ([]domain.Subject, error) {
	return a.store.ListSubjectsByUser(user.ID)
}

// CreateStudyRecord logs study time against one of the user's subjects.
func (a *App) CreateStudyRecord(user domain.User, subjectID string, durationMinutes int) (domain.StudyRecord, error) {
	if durationMinutes <= 0 {
		return domain.StudyRecord{}, ErrDurationRequired
	}
	subject, ok, err := a.store.GetSubject(subjectID)
	if err != nil {
		return domain.StudyRecord{}, fmt.Errorf("fetch subject: %w", err)
	}
	if !ok || subject.UserID != user.ID {
		return domain.StudyRecord{}, ErrSubjectNotFound
	}
	record := domain.StudyRecord{
		ID:              util.NewID(),
		UserID:          user.ID,
		SubjectID:       subject.ID,
		SubjectName:     subject.Name,
		DurationMinutes: durationMinutes,
		CreatedAt:       time.Now().UTC(),
	}
	if err := a.store.CreateStudyRecord(record); err != nil {
		return domain.StudyRecord{}, fmt.Errorf("create study record: %w", err)
	}
	return record, nil
}

// ListStudyRecords returns the user's study records, newest first.
func (a *App) ListStudyRecords(user domain.User) ([]domain.StudyRecord, error) {
	return a.store.ListStudyRecordsByUser(user.ID)
}
