package store

import (
	"context"
	"fmt"
	"time"

	"neurocare-api/internal/model"
)

// HasOverlappingSlot uses half-open ranges; a slot ending exactly at start does not clash.
func (q *Queries) HasOverlappingSlot(ctx context.Context, counselorID int64, start, end time.Time) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM availability
			WHERE counselor_id = $1
			  AND start_time < $3
			  AND end_time > $2)`,
		counselorID, start, end,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("overlap check: %w", err)
	}
	return exists, nil
}

func (q *Queries) CreateSlot(ctx context.Context, s *model.Slot) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO availability (counselor_id, start_time, end_time, is_booked)
		 VALUES ($1,$2,$3,false) RETURNING id`,
		s.CounselorID, s.StartTime, s.EndTime,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("create slot: %w", mapErr(err))
	}
	s.IsBooked = false
	return nil
}

func (q *Queries) ListOpenSlots(ctx context.Context, counselorID int64, after time.Time) ([]model.Slot, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, counselor_id, start_time, end_time, is_booked
		 FROM availability
		 WHERE counselor_id = $1
		   AND is_booked = false
		   AND start_time > $2
		 ORDER BY start_time`, counselorID, after,
	)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []model.Slot
	for rows.Next() {
		var s model.Slot
		if err := rows.Scan(&s.ID, &s.CounselorID, &s.StartTime, &s.EndTime, &s.IsBooked); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LockSlot reads the slot under a row lock. Concurrent bookers of the same
// slot queue here until the holder commits or rolls back.
func (q *Queries) LockSlot(ctx context.Context, slotID, counselorID int64) (*model.Slot, error) {
	s := &model.Slot{}
	err := q.db.QueryRow(ctx,
		`SELECT id, counselor_id, start_time, end_time, is_booked
		 FROM availability
		 WHERE id = $1 AND counselor_id = $2
		 FOR UPDATE`, slotID, counselorID,
	).Scan(&s.ID, &s.CounselorID, &s.StartTime, &s.EndTime, &s.IsBooked)
	if err != nil {
		return nil, fmt.Errorf("lock slot: %w", mapErr(err))
	}
	return s, nil
}

// SetSlotBooked flips the flag and reports whether the row actually changed.
func (q *Queries) SetSlotBooked(ctx context.Context, slotID int64, booked bool) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE availability SET is_booked = $2 WHERE id = $1 AND is_booked <> $2`,
		slotID, booked,
	)
	if err != nil {
		return false, fmt.Errorf("set slot booked: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseSlotAt frees the counselor's slot starting at start. Used for
// appointments that predate the slot_id column.
func (q *Queries) ReleaseSlotAt(ctx context.Context, counselorID int64, start time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE availability SET is_booked = false
		 WHERE counselor_id = $1 AND start_time = $2 AND is_booked = true`,
		counselorID, start,
	)
	if err != nil {
		return 0, fmt.Errorf("release slot: %w", err)
	}
	return tag.RowsAffected(), nil
}
