package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"neurocare-api/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is every read/write the services perform. Methods run on whatever
// connection or transaction the implementation was built over.
type Querier interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id int64) (*model.User, error)
	CreateCounselor(ctx context.Context, c *model.Counselor) error
	ListCounselors(ctx context.Context) ([]model.Counselor, error)
	CounselorByID(ctx context.Context, id int64) (*model.Counselor, error)
	CounselorIDByUser(ctx context.Context, userID int64) (int64, error)
	LockCounselor(ctx context.Context, userID int64) (int64, error)

	HasOverlappingSlot(ctx context.Context, counselorID int64, start, end time.Time) (bool, error)
	CreateSlot(ctx context.Context, s *model.Slot) error
	ListOpenSlots(ctx context.Context, counselorID int64, after time.Time) ([]model.Slot, error)
	LockSlot(ctx context.Context, slotID, counselorID int64) (*model.Slot, error)
	SetSlotBooked(ctx context.Context, slotID int64, booked bool) (bool, error)
	ReleaseSlotAt(ctx context.Context, counselorID int64, start time.Time) (int64, error)

	HasActiveAppointment(ctx context.Context, studentID, counselorID int64, at time.Time) (bool, error)
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	LockAppointment(ctx context.Context, id int64) (*model.Appointment, error)
	SetAppointmentStatus(ctx context.Context, id int64, status model.AppointmentStatus) error
	ListStudentAppointments(ctx context.Context, studentID int64) ([]model.AppointmentView, error)
	ListCounselorAppointments(ctx context.Context, counselorID int64) ([]model.AppointmentView, error)

	CreateConversation(ctx context.Context, c *model.Conversation) error
	ConversationByID(ctx context.Context, id int64) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]model.Conversation, error)
	CreateMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error)
	UserMessagesByIDs(ctx context.Context, ids []int64) ([]model.Message, error)
	PendingUserMessages(ctx context.Context) ([]model.Message, error)
	SetMessageCategory(ctx context.Context, id int64, c model.MessageCategory, batch uuid.UUID) error
	CategoryCounts(ctx context.Context) ([]model.CategoryCount, error)

	UpsertConnectUser(ctx context.Context, cu *model.ConnectUser) error
	PeerMatches(ctx context.Context, c model.StressCategory, excludeUserID int64, limit int) ([]model.PeerMatch, error)
}

type Queries struct {
	db DBTX
}

var _ Querier = (*Queries)(nil)

type Store struct {
	*Queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Queries: &Queries{db: pool}, pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Atomic runs fn inside one transaction on one pooled connection. Any error
// (or panic) from fn rolls back; the connection is released on every path.
func (s *Store) Atomic(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", mapErr(err))
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23P01": // unique_violation, exclusion_violation
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}
