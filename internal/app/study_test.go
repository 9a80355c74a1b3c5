package app

import (
	"errors"
	"testing"
	"time"
)

func TestCreateStudyRecordRequiresOwnSubject(t *testing.T) {
	a, _, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	bob := registerUser(t, a, "bob")

	math, err := a.CreateSubject(alice, "Math")
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}

	record, err := a.CreateStudyRecord(alice, math.ID, 45)
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	if record.SubjectName != "Math" || record.DurationMinutes != 45 {
		t.Fatalf("unexpected record: %+v", record)
	}

	if _, err := a.CreateStudyRecord(bob, math.ID, 30); !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("expected foreign subject to be invisible, got %v", err)
	}
	if _, err := a.CreateStudyRecord(alice, math.ID, 0); !errors.Is(err, ErrDurationRequired) {
		t.Fatalf("expected ErrDurationRequired, got %v", err)
	}
}

func TestListStudyRecordsNewestFirst(t *testing.T) {
	a, _, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	math, _ := a.CreateSubject(alice, "Math")

	for _, minutes := range []int{10, 20, 30} {
		if _, err := a.CreateStudyRecord(alice, math.ID, minutes); err != nil {
			t.Fatalf("create record: %v", err)
		}
	}
	records, err := a.ListStudyRecords(alice)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
}

func TestScheduleLifecycle(t *testing.T) {
	a, _, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	math, _ := a.CreateSubject(alice, "Math")

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	entry, err := a.CreateScheduleEntry(alice, math.ID, start, start.Add(time.Hour), "algebra review")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	day, err := a.ListSchedule(alice, "2026-03-14")
	if err != nil {
		t.Fatalf("list schedule: %v", err)
	}
	if len(day) != 1 || day[0].ID != entry.ID {
		t.Fatalf("unexpected schedule: %+v", day)
	}
	if day[0].SubjectName != "Math" {
		t.Fatalf("expected subject name to be joined in, got %q", day[0].SubjectName)
	}

	otherDay, err := a.ListSchedule(alice, "2026-03-15")
	if err != nil {
		t.Fatalf("list other day: %v", err)
	}
	if len(otherDay) != 0 {
		t.Fatalf("expected empty schedule for other day")
	}

	updated, err := a.UpdateScheduleEntry(alice, entry.ID, math.ID, start.Add(time.Hour), start.Add(2*time.Hour), "moved")
	if err != nil {
		t.Fatalf("update entry: %v", err)
	}
	if updated.Note != "moved" {
		t.Fatalf("unexpected note %q", updated.Note)
	}

	if err := a.DeleteScheduleEntry(alice, entry.ID); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	if err := a.DeleteScheduleEntry(alice, entry.ID); !errors.Is(err, ErrScheduleEntryNotFound) {
		t.Fatalf("expected ErrScheduleEntryNotFound, got %v", err)
	}
}

func TestScheduleValidation(t *testing.T) {
	a, _, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	math, _ := a.CreateSubject(alice, "Math")

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	if _, err := a.CreateScheduleEntry(alice, math.ID, start, start, ""); !errors.Is(err, ErrScheduleTimeOrder) {
		t.Fatalf("expected ErrScheduleTimeOrder, got %v", err)
	}
	if _, err := a.CreateScheduleEntry(alice, math.ID, time.Time{}, start, ""); !errors.Is(err, ErrScheduleTimesRequired) {
		t.Fatalf("expected ErrScheduleTimesRequired, got %v", err)
	}
	if _, err := a.ListSchedule(alice, "14-03-2026"); err == nil {
		t.Fatalf("expected invalid day format to fail")
	}
}

func TestTranscriptionHistory(t *testing.T) {
	a, _, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")

	saved, err := a.SaveTranscription(alice, "lecture notes", "audio", "en", "web", map[string]string{"filename": "lecture.mp3"})
	if err != nil {
		t.Fatalf("save transcription: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected assigned id")
	}

	items, err := a.ListTranscriptions(alice)
	if err != nil {
		t.Fatalf("list transcriptions: %v", err)
	}
	if len(items) != 1 || items[0].Text != "lecture notes" {
		t.Fatalf("unexpected history: %+v", items)
	}

	if _, err := a.SaveTranscription(alice, "   ", "audio", "", "", nil); err == nil {
		t.Fatalf("expected empty transcription to fail")
	}
}
