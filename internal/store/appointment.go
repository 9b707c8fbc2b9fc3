package store

import (
	"context"
	"fmt"
	"time"

	"neurocare-api/internal/model"
)

func (q *Queries) HasActiveAppointment(ctx context.Context, studentID, counselorID int64, at time.Time) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE student_id = $1
			  AND counselor_id = $2
			  AND appointment_time = $3
			  AND status <> 'cancelled')`,
		studentID, counselorID, at,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("active appointment check: %w", err)
	}
	return exists, nil
}

func (q *Queries) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	if a.Status == "" {
		a.Status = model.StatusScheduled
	}
	err := q.db.QueryRow(ctx,
		`INSERT INTO appointments (student_id, counselor_id, slot_id, appointment_time, status)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		a.StudentID, a.CounselorID, a.SlotID, a.AppointmentTime, a.Status,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("create appointment: %w", mapErr(err))
	}
	return nil
}

// LockAppointment loads the appointment with its counselor's user id and
// holds the row until the transaction ends.
func (q *Queries) LockAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := q.db.QueryRow(ctx,
		`SELECT a.id, a.student_id, a.counselor_id, a.slot_id, a.appointment_time, a.status, c.user_id
		 FROM appointments a
		 JOIN counselors c ON c.id = a.counselor_id
		 WHERE a.id = $1
		 FOR UPDATE OF a`, id,
	).Scan(&a.ID, &a.StudentID, &a.CounselorID, &a.SlotID, &a.AppointmentTime, &a.Status, &a.CounselorUserID)
	if err != nil {
		return nil, fmt.Errorf("lock appointment: %w", mapErr(err))
	}
	return a, nil
}

func (q *Queries) SetAppointmentStatus(ctx context.Context, id int64, status model.AppointmentStatus) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`, id, status,
	)
	if err != nil {
		return fmt.Errorf("set appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) ListStudentAppointments(ctx context.Context, studentID int64) ([]model.AppointmentView, error) {
	rows, err := q.db.Query(ctx,
		`SELECT a.id, a.appointment_time, a.status, u.name, c.specialization
		 FROM appointments a
		 JOIN counselors c ON c.id = a.counselor_id
		 JOIN users u ON u.id = c.user_id
		 WHERE a.student_id = $1
		 ORDER BY a.appointment_time DESC`, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list student appointments: %w", err)
	}
	defer rows.Close()

	var out []model.AppointmentView
	for rows.Next() {
		var v model.AppointmentView
		if err := rows.Scan(&v.ID, &v.AppointmentTime, &v.Status, &v.CounselorName, &v.Specialization); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (q *Queries) ListCounselorAppointments(ctx context.Context, counselorID int64) ([]model.AppointmentView, error) {
	rows, err := q.db.Query(ctx,
		`SELECT a.id, a.appointment_time, a.status, u.name, u.email
		 FROM appointments a
		 JOIN users u ON u.id = a.student_id
		 WHERE a.counselor_id = $1
		 ORDER BY a.appointment_time DESC`, counselorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list counselor appointments: %w", err)
	}
	defer rows.Close()

	var out []model.AppointmentView
	for rows.Next() {
		var v model.AppointmentView
		if err := rows.Scan(&v.ID, &v.AppointmentTime, &v.Status, &v.StudentName, &v.StudentEmail); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
