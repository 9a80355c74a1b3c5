package app

import "errors"

var (
	// ErrInvalidCredentials deliberately covers both unknown usernames and
	// wrong passwords so responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("incorrect username or password")

	ErrRegistrationFieldsRequired = errors.New("username, name, email, and password are required")
	ErrUsernameTaken              = errors.New("username already taken")
	ErrEmailTaken                 = errors.New("email already registered")
	ErrEmailRequired              = errors.New("email required")
	ErrInvalidResetToken          = errors.New("invalid or expired reset token")

	ErrRoomNameRequired   = errors.New("room name required")
	ErrRoomStatusRequired = errors.New("room status required")
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotRoomCreator     = errors.New("only the room creator can delete the room")
	ErrNotInAnyRoom       = errors.New("not currently in any room")
	ErrAlreadyInRoom      = errors.New("already joined a room")

	ErrSubjectNameRequired = errors.New("subject name required")
	ErrSubjectNotFound     = errors.New("subject not found")
	ErrDurationRequired    = errors.New("duration must be a positive number of minutes")

	ErrScheduleEntryNotFound = errors.New("schedule entry not found")
	ErrScheduleTimesRequired = errors.New("start and end times are required")
	ErrScheduleTimeOrder     = errors.New("end time must be after start time")
)
