// Package storetest provides an in-memory store for service and handler tests.
package storetest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"neurocare-api/internal/model"
	"neurocare-api/internal/store"
)

type connectRow struct {
	cu    model.ConnectUser
	touch int64
}

type state struct {
	seq        int64
	users      map[int64]model.User
	counselors map[int64]model.Counselor
	slots      map[int64]model.Slot
	appts      map[int64]model.Appointment
	convs      map[int64]model.Conversation
	msgs       map[int64]model.Message
	connect    map[int64]connectRow
}

func (s *state) clone() *state {
	return &state{
		seq:        s.seq,
		users:      maps.Clone(s.users),
		counselors: maps.Clone(s.counselors),
		slots:      maps.Clone(s.slots),
		appts:      maps.Clone(s.appts),
		convs:      maps.Clone(s.convs),
		msgs:       maps.Clone(s.msgs),
		connect:    maps.Clone(s.connect),
	}
}

// Memory implements store.Querier plus Atomic. Atomic calls are serialised
// and roll back every write made by fn when it returns an error.
type Memory struct {
	// Fail, when set, is consulted at the start of every method; a non-nil
	// return is handed back to the caller as that method's error.
	Fail func(op string) error

	txMu sync.Mutex
	mu   sync.Mutex
	st   *state
}

var _ store.Querier = (*Memory)(nil)

func New() *Memory {
	return &Memory{st: &state{
		users:      map[int64]model.User{},
		counselors: map[int64]model.Counselor{},
		slots:      map[int64]model.Slot{},
		appts:      map[int64]model.Appointment{},
		convs:      map[int64]model.Conversation{},
		msgs:       map[int64]model.Message{},
		connect:    map[int64]connectRow{},
	}}
}

func (m *Memory) Atomic(ctx context.Context, fn func(q store.Querier) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := m.st.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.st = snap
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return m.fail("Ping")
}

func (m *Memory) fail(op string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op)
}

func (m *Memory) next() int64 {
	m.st.seq++
	return m.st.seq
}

// ----- seeding helpers -----

// SeedUser inserts a user directly, bypassing password hashing.
func (m *Memory) SeedUser(name, email string, role model.Role) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := model.User{ID: m.next(), Name: name, Email: email, Role: role, PasswordHash: "x"}
	m.st.users[u.ID] = u
	return u
}

// SeedCounselor inserts a counselor user together with its profile row.
func (m *Memory) SeedCounselor(name, email string) (model.User, model.Counselor) {
	u := m.SeedUser(name, email, model.RoleCounselor)
	m.mu.Lock()
	defer m.mu.Unlock()
	c := model.Counselor{ID: m.next(), UserID: u.ID, Name: u.Name, Email: u.Email}
	m.st.counselors[c.ID] = c
	return u, c
}

// SeedSlot inserts a slot without the overlap check.
func (m *Memory) SeedSlot(counselorID int64, start, end time.Time) model.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Slot{ID: m.next(), CounselorID: counselorID, StartTime: start, EndTime: end}
	m.st.slots[s.ID] = s
	return s
}

func (m *Memory) Slot(id int64) (model.Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.st.slots[id]
	return s, ok
}

func (m *Memory) Appointments() []model.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Collect(maps.Values(m.st.appts))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Message(id int64) (model.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.st.msgs[id]
	return msg, ok
}

func (m *Memory) ConnectUsers() []model.ConnectUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ConnectUser
	for _, r := range m.st.connect {
		out = append(out, r.cu)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ----- users -----

func (m *Memory) CreateUser(ctx context.Context, u *model.User) error {
	if err := m.fail("CreateUser"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.users {
		if existing.Email == u.Email {
			return fmt.Errorf("create user: %w: users_email_key", store.ErrConflict)
		}
	}
	u.ID = m.next()
	m.st.users[u.ID] = *u
	return nil
}

func (m *Memory) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := m.fail("UserByEmail"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) UserByID(ctx context.Context, id int64) (*model.User, error) {
	if err := m.fail("UserByID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) CreateCounselor(ctx context.Context, c *model.Counselor) error {
	if err := m.fail("CreateCounselor"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.counselors {
		if existing.UserID == c.UserID {
			return fmt.Errorf("create counselor: %w: counselors_user_id_key", store.ErrConflict)
		}
	}
	c.ID = m.next()
	m.st.counselors[c.ID] = *c
	return nil
}

// counselorView fills name and email from the owning user; callers hold mu.
func (m *Memory) counselorView(c model.Counselor) (model.Counselor, bool) {
	u, ok := m.st.users[c.UserID]
	if !ok || u.Role != model.RoleCounselor {
		return c, false
	}
	c.Name, c.Email = u.Name, u.Email
	return c, true
}

func (m *Memory) ListCounselors(ctx context.Context) ([]model.Counselor, error) {
	if err := m.fail("ListCounselors"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Counselor
	for _, c := range m.st.counselors {
		if v, ok := m.counselorView(c); ok {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CounselorByID(ctx context.Context, id int64) (*model.Counselor, error) {
	if err := m.fail("CounselorByID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var byID *model.Counselor
	for _, c := range m.st.counselors {
		v, ok := m.counselorView(c)
		if !ok {
			continue
		}
		if v.UserID == id {
			return &v, nil
		}
		if v.ID == id {
			byID = &v
		}
	}
	if byID == nil {
		return nil, store.ErrNotFound
	}
	return byID, nil
}

func (m *Memory) CounselorIDByUser(ctx context.Context, userID int64) (int64, error) {
	if err := m.fail("CounselorIDByUser"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.st.counselors {
		if c.UserID == userID {
			return c.ID, nil
		}
	}
	return 0, store.ErrNotFound
}

func (m *Memory) LockCounselor(ctx context.Context, userID int64) (int64, error) {
	if err := m.fail("LockCounselor"); err != nil {
		return 0, err
	}
	return m.CounselorIDByUser(ctx, userID)
}

// ----- slots -----

func (m *Memory) HasOverlappingSlot(ctx context.Context, counselorID int64, start, end time.Time) (bool, error) {
	if err := m.fail("HasOverlappingSlot"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.st.slots {
		if s.CounselorID == counselorID && s.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CreateSlot(ctx context.Context, s *model.Slot) error {
	if err := m.fail("CreateSlot"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.next()
	s.IsBooked = false
	m.st.slots[s.ID] = *s
	return nil
}

func (m *Memory) ListOpenSlots(ctx context.Context, counselorID int64, after time.Time) ([]model.Slot, error) {
	if err := m.fail("ListOpenSlots"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Slot
	for _, s := range m.st.slots {
		if s.CounselorID == counselorID && !s.IsBooked && s.StartTime.After(after) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) LockSlot(ctx context.Context, slotID, counselorID int64) (*model.Slot, error) {
	if err := m.fail("LockSlot"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.st.slots[slotID]
	if !ok || s.CounselorID != counselorID {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (m *Memory) SetSlotBooked(ctx context.Context, slotID int64, booked bool) (bool, error) {
	if err := m.fail("SetSlotBooked"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.st.slots[slotID]
	if !ok || s.IsBooked == booked {
		return false, nil
	}
	s.IsBooked = booked
	m.st.slots[slotID] = s
	return true, nil
}

func (m *Memory) ReleaseSlotAt(ctx context.Context, counselorID int64, start time.Time) (int64, error) {
	if err := m.fail("ReleaseSlotAt"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.st.slots {
		if s.CounselorID == counselorID && s.StartTime.Equal(start) && s.IsBooked {
			s.IsBooked = false
			m.st.slots[id] = s
			n++
		}
	}
	return n, nil
}

// ----- appointments -----

func (m *Memory) HasActiveAppointment(ctx context.Context, studentID, counselorID int64, at time.Time) (bool, error) {
	if err := m.fail("HasActiveAppointment"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasActive(studentID, counselorID, at), nil
}

func (m *Memory) hasActive(studentID, counselorID int64, at time.Time) bool {
	for _, a := range m.st.appts {
		if a.StudentID == studentID && a.CounselorID == counselorID &&
			a.AppointmentTime.Equal(at) && a.Status != model.StatusCancelled {
			return true
		}
	}
	return false
}

func (m *Memory) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	if err := m.fail("CreateAppointment"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Status == "" {
		a.Status = model.StatusScheduled
	}
	if m.hasActive(a.StudentID, a.CounselorID, a.AppointmentTime) {
		return fmt.Errorf("create appointment: %w: appointments_active_uq", store.ErrConflict)
	}
	a.ID = m.next()
	m.st.appts[a.ID] = *a
	return nil
}

func (m *Memory) LockAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	if err := m.fail("LockAppointment"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.st.appts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if c, ok := m.st.counselors[a.CounselorID]; ok {
		a.CounselorUserID = c.UserID
	}
	return &a, nil
}

func (m *Memory) SetAppointmentStatus(ctx context.Context, id int64, status model.AppointmentStatus) error {
	if err := m.fail("SetAppointmentStatus"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.st.appts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = status
	m.st.appts[id] = a
	return nil
}

func (m *Memory) ListStudentAppointments(ctx context.Context, studentID int64) ([]model.AppointmentView, error) {
	if err := m.fail("ListStudentAppointments"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AppointmentView
	for _, a := range m.st.appts {
		if a.StudentID != studentID {
			continue
		}
		c := m.st.counselors[a.CounselorID]
		out = append(out, model.AppointmentView{
			ID: a.ID, AppointmentTime: a.AppointmentTime, Status: a.Status,
			CounselorName: m.st.users[c.UserID].Name, Specialization: c.Specialization,
		})
	}
	sortViews(out)
	return out, nil
}

func (m *Memory) ListCounselorAppointments(ctx context.Context, counselorID int64) ([]model.AppointmentView, error) {
	if err := m.fail("ListCounselorAppointments"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AppointmentView
	for _, a := range m.st.appts {
		if a.CounselorID != counselorID {
			continue
		}
		u := m.st.users[a.StudentID]
		out = append(out, model.AppointmentView{
			ID: a.ID, AppointmentTime: a.AppointmentTime, Status: a.Status,
			StudentName: u.Name, StudentEmail: u.Email,
		})
	}
	sortViews(out)
	return out, nil
}

func sortViews(v []model.AppointmentView) {
	sort.Slice(v, func(i, j int) bool { return v[i].AppointmentTime.After(v[j].AppointmentTime) })
}

// ----- chat -----

func (m *Memory) CreateConversation(ctx context.Context, c *model.Conversation) error {
	if err := m.fail("CreateConversation"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.next()
	c.StartedAt = time.Now()
	m.st.convs[c.ID] = *c
	return nil
}

func (m *Memory) ConversationByID(ctx context.Context, id int64) (*model.Conversation, error) {
	if err := m.fail("ConversationByID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.st.convs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (m *Memory) ListConversations(ctx context.Context, userID int64) ([]model.Conversation, error) {
	if err := m.fail("ListConversations"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Conversation
	for _, c := range m.st.convs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) CreateMessage(ctx context.Context, msg *model.Message) error {
	if err := m.fail("CreateMessage"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.convs[msg.ConversationID]; !ok {
		return fmt.Errorf("create message: conversation %d missing", msg.ConversationID)
	}
	if msg.Category == "" {
		msg.Category = model.CategoryOther
	}
	msg.ID = m.next()
	msg.CreatedAt = time.Now()
	m.st.msgs[msg.ID] = *msg
	return nil
}

func (m *Memory) messages(keep func(model.Message) bool) []model.Message {
	var out []model.Message
	for _, msg := range m.st.msgs {
		if keep(msg) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error) {
	if err := m.fail("ListMessages"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages(func(msg model.Message) bool { return msg.ConversationID == conversationID }), nil
}

func (m *Memory) UserMessagesByIDs(ctx context.Context, ids []int64) ([]model.Message, error) {
	if err := m.fail("UserMessagesByIDs"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages(func(msg model.Message) bool {
		return msg.Sender == model.SenderUser && slices.Contains(ids, msg.ID)
	}), nil
}

func (m *Memory) PendingUserMessages(ctx context.Context) ([]model.Message, error) {
	if err := m.fail("PendingUserMessages"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages(func(msg model.Message) bool {
		return msg.Sender == model.SenderUser && msg.Category == model.CategoryOther
	}), nil
}

func (m *Memory) SetMessageCategory(ctx context.Context, id int64, c model.MessageCategory, batch uuid.UUID) error {
	if err := m.fail("SetMessageCategory"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.st.msgs[id]
	if !ok {
		return store.ErrNotFound
	}
	msg.Category = c
	msg.Batch = &batch
	m.st.msgs[id] = msg
	return nil
}

func (m *Memory) CategoryCounts(ctx context.Context) ([]model.CategoryCount, error) {
	if err := m.fail("CategoryCounts"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[model.MessageCategory]int64{}
	for _, msg := range m.st.msgs {
		if msg.Sender == model.SenderUser {
			counts[msg.Category]++
		}
	}
	var out []model.CategoryCount
	for c, n := range counts {
		out = append(out, model.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// ----- connect -----

func (m *Memory) UpsertConnectUser(ctx context.Context, cu *model.ConnectUser) error {
	if err := m.fail("UpsertConnectUser"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	row, ok := m.st.connect[cu.UserID]
	if ok {
		row.cu.IssueDescription = cu.IssueDescription
		row.cu.StressCategory = cu.StressCategory
		row.cu.UpdatedAt = now
	} else {
		row.cu = *cu
		row.cu.ID = m.next()
		row.cu.CreatedAt, row.cu.UpdatedAt = now, now
	}
	row.touch = m.next()
	m.st.connect[cu.UserID] = row
	*cu = row.cu
	return nil
}

func (m *Memory) PeerMatches(ctx context.Context, c model.StressCategory, excludeUserID int64, limit int) ([]model.PeerMatch, error) {
	if err := m.fail("PeerMatches"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []connectRow
	for uid, r := range m.st.connect {
		if uid != excludeUserID && r.cu.StressCategory == c {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].touch > rows[j].touch })
	out := []model.PeerMatch{}
	for _, r := range rows {
		if len(out) == limit {
			break
		}
		u := m.st.users[r.cu.UserID]
		out = append(out, model.PeerMatch{Name: u.Name, Email: u.Email})
	}
	return out, nil
}
