package store

import (
	"errors"
	"time"

	"learninghelper/pkg/domain"
)

// ErrDuplicateKey is returned when a write violates a uniqueness constraint.
// For room_members this is the authoritative guard for the one-room-per-user
// invariant: the delete-then-insert performed by callers is cleanup, not the
// real protection.
var ErrDuplicateKey = errors.New("duplicate key")

// RoomStore holds rooms and memberships. Every mutating method is a single
// atomic write; multi-write sequences are composed through RoomTx.
type RoomStore interface {
	InsertRoom(room domain.Room) (domain.Room, error)
	GetRoom(id string) (domain.Room, bool, error)
	DeleteRoom(id string) error
	ListRooms() ([]domain.Room, error)
	ListRoomsByCreator(creatorID string) ([]domain.Room, error)

	InsertMembership(roomID, userID string) error
	DeleteMembership(roomID, userID string) error
	DeleteMembershipsForUser(userID string) error
	DeleteMembershipsInRoom(roomID string) error
	MembershipsForUser(userID string) ([]domain.Membership, error)

	RoomsJoinedBy(userID string) ([]domain.Room, error)
	CurrentRoomFor(userID string) (domain.Room, bool, error)
}

// Store defines persistence for the whole backend.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	HasUsername(username string) (bool, error)
	HasEmail(email string) (bool, error)

	// subjects & study records
	CreateSubject(domain.Subject) error
	ListSubjectsByUser(userID string) ([]domain.Subject, error)
	GetSubject(id string) (domain.Subject, bool, error)
	CreateStudyRecord(domain.StudyRecord) error
	ListStudyRecordsByUser(userID string) ([]domain.StudyRecord, error)

	// schedule
	CreateScheduleEntry(domain.ScheduleEntry) error
	ListScheduleForDay(userID string, day string) ([]domain.ScheduleEntry, error)
	UpdateScheduleEntry(domain.ScheduleEntry) (bool, error)
	DeleteScheduleEntry(id, userID string) (bool, error)

	// transcriptions
	SaveTranscription(domain.Transcription) error
	ListTranscriptionsByUser(userID string) ([]domain.Transcription, error)

	// rooms
	RoomStore

	// RoomTx runs fn against a transactional view of the room store. All
	// writes made inside fn become visible atomically on commit; any error
	// rolls every write back and is returned unchanged.
	RoomTx(fn func(RoomStore) error) error
}

// SessionStore issues and validates session credentials.
type SessionStore interface {
	NewSession(userID string, ttl time.Duration) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
