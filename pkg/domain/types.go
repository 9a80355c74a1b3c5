package domain

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarKey    string    `json:"-"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Room is a named shared study session owned by its creator.
// Status is caller-defined; the backend stores and returns it unchanged.
type Room struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatorID   string    `json:"creatorId"`
	CreatorName string    `json:"creatorName"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Membership is the (room, user) pairing denoting a user's current room.
// At most one membership exists per user at any time.
type Membership struct {
	RoomID   string    `json:"roomId"`
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Subject struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type StudyRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	SubjectID       string    `json:"subjectId"`
	SubjectName     string    `json:"subjectName,omitempty"`
	DurationMinutes int       `json:"durationMinutes"`
	CreatedAt       time.Time `json:"createdAt"`
}

type ScheduleEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	SubjectID   string    `json:"subjectId"`
	SubjectName string    `json:"subjectName,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Transcription struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Text      string            `json:"transcription"`
	Source    string            `json:"source"`
	Language  string            `json:"language"`
	Device    string            `json:"deviceUsed,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
