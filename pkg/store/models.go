package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Table names follow the wire schema
// rather than GORM defaults.

type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string `gorm:"not null"`
	AvatarKey    string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type RoomModel struct {
	ID          string    `gorm:"primaryKey"`
	Name        string    `gorm:"not null"`
	CreatorID   string    `gorm:"not null;index"`
	CreatorName string    `gorm:"not null"`
	Status      string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

func (RoomModel) TableName() string { return "rooms" }

// RoomMemberModel keys on user_id: the primary key doubles as the
// uniqueness constraint that enforces at most one membership per user.
type RoomMemberModel struct {
	UserID   string    `gorm:"primaryKey"`
	RoomID   string    `gorm:"not null;index"`
	JoinedAt time.Time `gorm:"not null"`
}

func (RoomMemberModel) TableName() string { return "room_members" }

type SubjectModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (SubjectModel) TableName() string { return "subjects" }

type StudyRecordModel struct {
	ID              string    `gorm:"primaryKey"`
	UserID          string    `gorm:"not null;index"`
	SubjectID       string    `gorm:"not null;index"`
	DurationMinutes int       `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (StudyRecordModel) TableName() string { return "study_records" }

type ScheduleEntryModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	SubjectID string    `gorm:"not null"`
	StartTime time.Time `gorm:"not null;index"`
	EndTime   time.Time `gorm:"not null"`
	Note      string
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

func (ScheduleEntryModel) TableName() string { return "study_schedule" }

type TranscriptionModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	Text      string `gorm:"type:text;not null"`
	Source    string `gorm:"not null"`
	Language  string
	Device    string
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null;index"`
}

func (TranscriptionModel) TableName() string { return "transcriptions" }
