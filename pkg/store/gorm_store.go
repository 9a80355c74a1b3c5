package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"learninghelper/internal/util"
	"learninghelper/pkg/domain"
)

const migrateLockID int64 = 52915291

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&UserModel{},
			&RoomModel{},
			&RoomMemberModel{},
			&SubjectModel{},
			&StudyRecordModel{},
			&ScheduleEntryModel{},
			&TranscriptionModel{},
		)
	}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

// users

func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return translateErr(s.db.Save(&model).Error)
}

func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	return s.findUser("username = ?", username)
}

func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	return s.findUser("email = ?", email)
}

func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	return s.findUser("id = ?", id)
}

func (s *GormStore) findUser(query string, arg any) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

func (s *GormStore) HasUsername(username string) (bool, error) {
	return s.countUsers("username = ?", username)
}

func (s *GormStore) HasEmail(email string) (bool, error) {
	return s.countUsers("email = ?", email)
}

func (s *GormStore) countUsers(query string, arg any) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where(query, arg).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// subjects & study records

func (s *GormStore) CreateSubject(subject domain.Subject) error {
	model := SubjectModel{
		ID:        subject.ID,
		UserID:    subject.UserID,
		Name:      subject.Name,
		CreatedAt: subject.CreatedAt,
	}
	return translateErr(s.db.Create(&model).Error)
}

func (s *GormStore) ListSubjectsByUser(userID string) ([]domain.Subject, error) {
	var models []SubjectModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	subjects := make([]domain.Subject, 0, len(models))
	for _, m := range models {
		subjects = append(subjects, domain.Subject{ID: m.ID, UserID: m.UserID, Name: m.Name, CreatedAt: m.CreatedAt})
	}
	return subjects, nil
}

func (s *GormStore) GetSubject(id string) (domain.Subject, bool, error) {
	var model SubjectModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Subject{}, false, nil
		}
		return domain.Subject{}, false, err
	}
	return domain.Subject{ID: model.ID, UserID: model.UserID, Name: model.Name, CreatedAt: model.CreatedAt}, true, nil
}

func (s *GormStore) CreateStudyRecord(record domain.StudyRecord) error {
	model := StudyRecordModel{
		ID:              record.ID,
		UserID:          record.UserID,
		SubjectID:       record.SubjectID,
		DurationMinutes: record.DurationMinutes,
		CreatedAt:       record.CreatedAt,
	}
	return translateErr(s.db.Create(&model).Error)
}

type studyRecordRow struct {
	StudyRecordModel
	SubjectName string
}

func (s *GormStore) ListStudyRecordsByUser(userID string) ([]domain.StudyRecord, error) {
	var rows []studyRecordRow
	err := s.db.Table("study_records").
		Select("study_records.*, subjects.name AS subject_name").
		Joins("JOIN subjects ON subjects.id = study_records.subject_id").
		Where("study_records.user_id = ?", userID).
		Order("study_records.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	records := make([]domain.StudyRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, domain.StudyRecord{
			ID:              r.ID,
			UserID:          r.UserID,
			SubjectID:       r.SubjectID,
			SubjectName:     r.SubjectName,
			DurationMinutes: r.DurationMinutes,
			CreatedAt:       r.CreatedAt,
		})
	}
	return records, nil
}

// schedule

func (s *GormStore) CreateScheduleEntry(entry domain.ScheduleEntry) error {
	model := scheduleToModel(entry)
	return translateErr(s.db.Create(&model).Error)
}

type scheduleRow struct {
	ScheduleEntryModel
	SubjectName string
}

func (s *GormStore) ListScheduleForDay(userID string, day string) ([]domain.ScheduleEntry, error) {
	var rows []scheduleRow
	err := s.db.Table("study_schedule").
		Select("study_schedule.*, subjects.name AS subject_name").
		Joins("JOIN subjects ON subjects.id = study_schedule.subject_id").
		Where("study_schedule.user_id = ? AND DATE(study_schedule.start_time) = ?", userID, day).
		Order("study_schedule.start_time ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	entries := make([]domain.ScheduleEntry, 0, len(rows))
	for _, r := range rows {
		entry := scheduleFromModel(r.ScheduleEntryModel)
		entry.SubjectName = r.SubjectName
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *GormStore) UpdateScheduleEntry(entry domain.ScheduleEntry) (bool, error) {
	res := s.db.Model(&ScheduleEntryModel{}).
		Where("id = ? AND user_id = ?", entry.ID, entry.UserID).
		Updates(map[string]any{
			"subject_id": entry.SubjectID,
			"start_time": entry.StartTime,
			"end_time":   entry.EndTime,
			"note":       entry.Note,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) DeleteScheduleEntry(id, userID string) (bool, error) {
	res := s.db.Delete(&ScheduleEntryModel{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// transcriptions

func (s *GormStore) SaveTranscription(t domain.Transcription) error {
	model := TranscriptionModel{
		ID:        t.ID,
		UserID:    t.UserID,
		Text:      t.Text,
		Source:    t.Source,
		Language:  t.Language,
		Device:    t.Device,
		CreatedAt: t.CreatedAt,
	}
	if len(t.Metadata) > 0 {
		raw, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("marshal transcription metadata: %w", err)
		}
		model.Metadata = raw
	}
	return translateErr(s.db.Create(&model).Error)
}

func (s *GormStore) ListTranscriptionsByUser(userID string) ([]domain.Transcription, error) {
	var models []TranscriptionModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Transcription, 0, len(models))
	for _, m := range models {
		items = append(items, transcriptionFromModel(m))
	}
	return items, nil
}

// rooms

func (s *GormStore) InsertRoom(room domain.Room) (domain.Room, error) {
	if room.ID == "" {
		room.ID = util.NewID()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	model := roomToModel(room)
	if err := translateErr(s.db.Create(&model).Error); err != nil {
		return domain.Room{}, err
	}
	return roomFromModel(model), nil
}

func (s *GormStore) GetRoom(id string) (domain.Room, bool, error) {
	var model RoomModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Room{}, false, nil
		}
		return domain.Room{}, false, err
	}
	return roomFromModel(model), true, nil
}

func (s *GormStore) DeleteRoom(id string) error {
	return s.db.Delete(&RoomModel{}, "id = ?", id).Error
}

func (s *GormStore) ListRooms() ([]domain.Room, error) {
	return s.listRooms("")
}

func (s *GormStore) ListRoomsByCreator(creatorID string) ([]domain.Room, error) {
	return s.listRooms("creator_id = ?", creatorID)
}

func (s *GormStore) listRooms(query string, args ...any) ([]domain.Room, error) {
	tx := s.db.Order("created_at DESC")
	if query != "" {
		tx = tx.Where(query, args...)
	}
	var models []RoomModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	rooms := make([]domain.Room, 0, len(models))
	for _, m := range models {
		rooms = append(rooms, roomFromModel(m))
	}
	return rooms, nil
}

func (s *GormStore) InsertMembership(roomID, userID string) error {
	model := RoomMemberModel{
		UserID:   userID,
		RoomID:   roomID,
		JoinedAt: time.Now().UTC(),
	}
	return translateErr(s.db.Create(&model).Error)
}

func (s *GormStore) DeleteMembership(roomID, userID string) error {
	return s.db.Delete(&RoomMemberModel{}, "room_id = ? AND user_id = ?", roomID, userID).Error
}

func (s *GormStore) DeleteMembershipsForUser(userID string) error {
	return s.db.Delete(&RoomMemberModel{}, "user_id = ?", userID).Error
}

func (s *GormStore) DeleteMembershipsInRoom(roomID string) error {
	return s.db.Delete(&RoomMemberModel{}, "room_id = ?", roomID).Error
}

func (s *GormStore) MembershipsForUser(userID string) ([]domain.Membership, error) {
	var models []RoomMemberModel
	if err := s.db.Where("user_id = ?", userID).Order("joined_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	memberships := make([]domain.Membership, 0, len(models))
	for _, m := range models {
		memberships = append(memberships, domain.Membership{RoomID: m.RoomID, UserID: m.UserID, JoinedAt: m.JoinedAt})
	}
	return memberships, nil
}

func (s *GormStore) RoomsJoinedBy(userID string) ([]domain.Room, error) {
	var models []RoomModel
	err := s.db.Table("rooms").
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	rooms := make([]domain.Room, 0, len(models))
	for _, m := range models {
		rooms = append(rooms, roomFromModel(m))
	}
	return rooms, nil
}

func (s *GormStore) CurrentRoomFor(userID string) (domain.Room, bool, error) {
	var model RoomModel
	err := s.db.Table("rooms").
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("room_members.joined_at DESC").
		Limit(1).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Room{}, false, nil
		}
		return domain.Room{}, false, err
	}
	return roomFromModel(model), true, nil
}

// RoomTx runs fn inside a database transaction; fn sees a store bound to
// that transaction, so every room/membership write commits or rolls back
// as one unit.
func (s *GormStore) RoomTx(fn func(RoomStore) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// model mapping

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		AvatarKey:    u.AvatarKey,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Name:         m.Name,
		AvatarKey:    m.AvatarKey,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func roomToModel(r domain.Room) RoomModel {
	return RoomModel{
		ID:          r.ID,
		Name:        r.Name,
		CreatorID:   r.CreatorID,
		CreatorName: r.CreatorName,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
	}
}

func roomFromModel(m RoomModel) domain.Room {
	return domain.Room{
		ID:          m.ID,
		Name:        m.Name,
		CreatorID:   m.CreatorID,
		CreatorName: m.CreatorName,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
	}
}

func scheduleToModel(e domain.ScheduleEntry) ScheduleEntryModel {
	return ScheduleEntryModel{
		ID:        e.ID,
		UserID:    e.UserID,
		SubjectID: e.SubjectID,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func scheduleFromModel(m ScheduleEntryModel) domain.ScheduleEntry {
	return domain.ScheduleEntry{
		ID:        m.ID,
		UserID:    m.UserID,
		SubjectID: m.SubjectID,
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func transcriptionFromModel(m TranscriptionModel) domain.Transcription {
	var meta map[string]string
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return domain.Transcription{
		ID:        m.ID,
		UserID:    m.UserID,
		Text:      m.Text,
		Source:    m.Source,
		Language:  m.Language,
		Device:    m.Device,
		Metadata:  meta,
		CreatedAt: m.CreatedAt,
	}
}
