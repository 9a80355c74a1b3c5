package store

import (
	"sort"
	"sync"
	"time"

	"learninghelper/internal/util"
	"learninghelper/pkg/domain"
)

// MemoryStore keeps everything in-process. It is used by tests and by the
// server when no database URL is configured.
type MemoryStore struct {
	mu             sync.RWMutex
	users          map[string]domain.User // key: user ID
	username       map[string]string      // username -> user ID
	email          map[string]string      // email -> user ID
	subjects       map[string]domain.Subject
	records        []domain.StudyRecord
	schedule       map[string]domain.ScheduleEntry
	transcriptions []domain.Transcription
	rooms          map[string]domain.Room
	members        map[string]domain.Membership // key: user ID, mirrors the DB primary key

	// FailOp, when set, is consulted before every room/membership write.
	// Tests use it to simulate storage faults mid-transaction.
	FailOp func(op string) error
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		username: make(map[string]string),
		email:    make(map[string]string),
		subjects: make(map[string]domain.Subject),
		schedule: make(map[string]domain.ScheduleEntry),
		rooms:    make(map[string]domain.Room),
		members:  make(map[string]domain.Membership),
	}
}

func (m *MemoryStore) failOp(op string) error {
	if m.FailOp != nil {
		return m.FailOp(op)
	}
	return nil
}

// users

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok {
		delete(m.username, prev.Username)
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.username[u.Username] = u.ID
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.username[username]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) HasUsername(username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.username[username]
	return ok, nil
}

func (m *MemoryStore) HasEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// subjects & study records

func (m *MemoryStore) CreateSubject(s domain.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects[s.ID] = s
	return nil
}

func (m *MemoryStore) ListSubjectsByUser(userID string) ([]domain.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Subject, 0)
	for _, s := range m.subjects {
		if s.UserID == userID {
			res = append(res, s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) GetSubject(id string) (domain.Subject, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subjects[id]
	return s, ok, nil
}

func (m *MemoryStore) CreateStudyRecord(r domain.StudyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *MemoryStore) ListStudyRecordsByUser(userID string) ([]domain.StudyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.StudyRecord, 0)
	for _, r := range m.records {
		if r.UserID != userID {
			continue
		}
		if s, ok := m.subjects[r.SubjectID]; ok {
			r.SubjectName = s.Name
		}
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// schedule

func (m *MemoryStore) CreateScheduleEntry(e domain.ScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedule[e.ID] = e
	return nil
}

func (m *MemoryStore) ListScheduleForDay(userID string, day string) ([]domain.ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.ScheduleEntry, 0)
	for _, e := range m.schedule {
		if e.UserID != userID || e.StartTime.Format("2006-01-02") != day {
			continue
		}
		if s, ok := m.subjects[e.SubjectID]; ok {
			e.SubjectName = s.Name
		}
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StartTime.Before(res[j].StartTime) })
	return res, nil
}

func (m *MemoryStore) UpdateScheduleEntry(entry domain.ScheduleEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.schedule[entry.ID]
	if !ok || existing.UserID != entry.UserID {
		return false, nil
	}
	existing.SubjectID = entry.SubjectID
	existing.StartTime = entry.StartTime
	existing.EndTime = entry.EndTime
	existing.Note = entry.Note
	existing.UpdatedAt = time.Now().UTC()
	m.schedule[entry.ID] = existing
	return true, nil
}

func (m *MemoryStore) DeleteScheduleEntry(id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.schedule[id]
	if !ok || existing.UserID != userID {
		return false, nil
	}
	delete(m.schedule, id)
	return true, nil
}

// transcriptions

func (m *MemoryStore) SaveTranscription(t domain.Transcription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcriptions = append(m.transcriptions, t)
	return nil
}

func (m *MemoryStore) ListTranscriptionsByUser(userID string) ([]domain.Transcription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Transcription, 0)
	for _, t := range m.transcriptions {
		if t.UserID == userID {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// rooms

func (m *MemoryStore) InsertRoom(room domain.Room) (domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertRoomLocked(room)
}

func (m *MemoryStore) insertRoomLocked(room domain.Room) (domain.Room, error) {
	if err := m.failOp("InsertRoom"); err != nil {
		return domain.Room{}, err
	}
	if room.ID == "" {
		room.ID = util.NewID()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	m.rooms[room.ID] = room
	return room, nil
}

func (m *MemoryStore) GetRoom(id string) (domain.Room, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRoomLocked(id)
}

func (m *MemoryStore) getRoomLocked(id string) (domain.Room, bool, error) {
	r, ok := m.rooms[id]
	return r, ok, nil
}

func (m *MemoryStore) DeleteRoom(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteRoomLocked(id)
}

func (m *MemoryStore) deleteRoomLocked(id string) error {
	if err := m.failOp("DeleteRoom"); err != nil {
		return err
	}
	delete(m.rooms, id)
	return nil
}

func (m *MemoryStore) ListRooms() ([]domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRoomsLocked(func(domain.Room) bool { return true })
}

func (m *MemoryStore) ListRoomsByCreator(creatorID string) ([]domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRoomsLocked(func(r domain.Room) bool { return r.CreatorID == creatorID })
}

func (m *MemoryStore) listRoomsLocked(keep func(domain.Room) bool) ([]domain.Room, error) {
	res := make([]domain.Room, 0)
	for _, r := range m.rooms {
		if keep(r) {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (m *MemoryStore) InsertMembership(roomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertMembershipLocked(roomID, userID)
}

func (m *MemoryStore) insertMembershipLocked(roomID, userID string) error {
	if err := m.failOp("InsertMembership"); err != nil {
		return err
	}
	if _, exists := m.members[userID]; exists {
		return ErrDuplicateKey
	}
	m.members[userID] = domain.Membership{
		RoomID:   roomID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	}
	return nil
}

func (m *MemoryStore) DeleteMembership(roomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteMembershipLocked(roomID, userID)
}

func (m *MemoryStore) deleteMembershipLocked(roomID, userID string) error {
	if err := m.failOp("DeleteMembership"); err != nil {
		return err
	}
	if mem, ok := m.members[userID]; ok && mem.RoomID == roomID {
		delete(m.members, userID)
	}
	return nil
}

func (m *MemoryStore) DeleteMembershipsForUser(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteMembershipsForUserLocked(userID)
}

func (m *MemoryStore) deleteMembershipsForUserLocked(userID string) error {
	if err := m.failOp("DeleteMembershipsForUser"); err != nil {
		return err
	}
	delete(m.members, userID)
	return nil
}

func (m *MemoryStore) DeleteMembershipsInRoom(roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteMembershipsInRoomLocked(roomID)
}

func (m *MemoryStore) deleteMembershipsInRoomLocked(roomID string) error {
	if err := m.failOp("DeleteMembershipsInRoom"); err != nil {
		return err
	}
	for userID, mem := range m.members {
		if mem.RoomID == roomID {
			delete(m.members, userID)
		}
	}
	return nil
}

func (m *MemoryStore) MembershipsForUser(userID string) ([]domain.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.membershipsForUserLocked(userID)
}

func (m *MemoryStore) membershipsForUserLocked(userID string) ([]domain.Membership, error) {
	if mem, ok := m.members[userID]; ok {
		return []domain.Membership{mem}, nil
	}
	return []domain.Membership{}, nil
}

func (m *MemoryStore) RoomsJoinedBy(userID string) ([]domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[userID]
	if !ok {
		return []domain.Room{}, nil
	}
	if r, exists := m.rooms[mem.RoomID]; exists {
		return []domain.Room{r}, nil
	}
	return []domain.Room{}, nil
}

func (m *MemoryStore) CurrentRoomFor(userID string) (domain.Room, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[userID]
	if !ok {
		return domain.Room{}, false, nil
	}
	r, exists := m.rooms[mem.RoomID]
	return r, exists, nil
}

// RoomTx runs fn against a view that mutates under a single lock hold.
// On error the room and membership state is restored from a snapshot, so
// partial writes never become visible.
func (m *MemoryStore) RoomTx(fn func(RoomStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomsSnap := make(map[string]domain.Room, len(m.rooms))
	for k, v := range m.rooms {
		roomsSnap[k] = v
	}
	membersSnap := make(map[string]domain.Membership, len(m.members))
	for k, v := range m.members {
		membersSnap[k] = v
	}

	if err := fn(&memoryTxView{m: m}); err != nil {
		m.rooms = roomsSnap
		m.members = membersSnap
		return err
	}
	return nil
}

// memoryTxView exposes the room operations without re-acquiring the lock
// already held by RoomTx.
type memoryTxView struct {
	m *MemoryStore
}

func (v *memoryTxView) InsertRoom(room domain.Room) (domain.Room, error) {
	return v.m.insertRoomLocked(room)
}

func (v *memoryTxView) GetRoom(id string) (domain.Room, bool, error) {
	return v.m.getRoomLocked(id)
}

func (v *memoryTxView) DeleteRoom(id string) error {
	return v.m.deleteRoomLocked(id)
}

func (v *memoryTxView) ListRooms() ([]domain.Room, error) {
	return v.m.listRoomsLocked(func(domain.Room) bool { return true })
}

func (v *memoryTxView) ListRoomsByCreator(creatorID string) ([]domain.Room, error) {
	return v.m.listRoomsLocked(func(r domain.Room) bool { return r.CreatorID == creatorID })
}

func (v *memoryTxView) InsertMembership(roomID, userID string) error {
	return v.m.insertMembershipLocked(roomID, userID)
}

func (v *memoryTxView) DeleteMembership(roomID, userID string) error {
	return v.m.deleteMembershipLocked(roomID, userID)
}

func (v *memoryTxView) DeleteMembershipsForUser(userID string) error {
	return v.m.deleteMembershipsForUserLocked(userID)
}

func (v *memoryTxView) DeleteMembershipsInRoom(roomID string) error {
	return v.m.deleteMembershipsInRoomLocked(roomID)
}

func (v *memoryTxView) MembershipsForUser(userID string) ([]domain.Membership, error) {
	return v.m.membershipsForUserLocked(userID)
}

func (v *memoryTxView) RoomsJoinedBy(userID string) ([]domain.Room, error) {
	mem, ok := v.m.members[userID]
	if !ok {
		return []domain.Room{}, nil
	}
	if r, exists := v.m.rooms[mem.RoomID]; exists {
		return []domain.Room{r}, nil
	}
	return []domain.Room{}, nil
}

func (v *memoryTxView) CurrentRoomFor(userID string) (domain.Room, bool, error) {
	mem, ok := v.m.members[userID]
	if !ok {
		return domain.Room{}, false, nil
	}
	r, exists := v.m.rooms[mem.RoomID]
	return r, exists, nil
}
