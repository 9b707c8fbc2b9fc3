package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"neurocare-api/internal/model"
	"neurocare-api/internal/notify"
	"neurocare-api/internal/store"
)

type Booking struct {
	st       TxStore
	notifier notify.Notifier
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewBooking(st TxStore, n notify.Notifier, loc *time.Location, log *zap.Logger) *Booking {
	if n == nil {
		n = notify.Nop{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Booking{st: st, notifier: n, log: log, loc: loc, now: time.Now}
}

// SetClock overrides the time source used for past-slot checks.
func (b *Booking) SetClock(now func() time.Time) { b.now = now }

type SlotInput struct {
	Date      string
	StartTime string
	EndTime   string
}

var timeLayouts = []string{"15:04", "15:04:05"}

// slotTime combines a YYYY-MM-DD date with an HH:MM[:SS] time of day in loc.
func slotTime(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, err
	}
	clock = strings.TrimSpace(clock)
	for _, layout := range timeLayouts {
		if c, err := time.Parse(layout, clock); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc), nil
		}
	}
	return time.Time{}, errors.New("bad time of day")
}

func (b *Booking) AddSlot(ctx context.Context, p model.Principal, in SlotInput) (*model.Slot, error) {
	if strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.StartTime) == "" || strings.TrimSpace(in.EndTime) == "" {
		return nil, status.Error(codes.InvalidArgument, "Please provide date, startTime and endTime")
	}
	start, err := slotTime(in.Date, in.StartTime, b.loc)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "Invalid date or time format")
	}
	end, err := slotTime(in.Date, in.EndTime, b.loc)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "Invalid date or time format")
	}
	if !end.After(start) {
		return nil, status.Error(codes.InvalidArgument, "End time must be after start time")
	}

	slot := &model.Slot{StartTime: start, EndTime: end}
	err = b.st.Atomic(ctx, func(q store.Querier) error {
		// the counselor row lock serialises concurrent AddSlot calls so the
		// overlap check and insert act as one step
		cid, err := q.LockCounselor(ctx, p.ID)
		if err != nil {
			return notFound(err, "Counselor not found")
		}
		clash, err := q.HasOverlappingSlot(ctx, cid, start, end)
		if err != nil {
			return err
		}
		if clash {
			return status.Error(codes.AlreadyExists, "Slot clashes with existing availability")
		}
		slot.CounselorID = cid
		return q.CreateSlot(ctx, slot)
	})
	if err != nil {
		return nil, err
	}

	b.log.Info("slot added",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("counselor_id", slot.CounselorID),
		zap.Time("start", slot.StartTime),
	)
	return slot, nil
}

func (b *Booking) ListAvailableSlots(ctx context.Context, counselorUserID int64) ([]model.Slot, error) {
	cid, err := b.st.CounselorIDByUser(ctx, counselorUserID)
	if err != nil {
		return nil, notFound(err, "Counselor not found")
	}
	slots, err := b.st.ListOpenSlots(ctx, cid, b.now())
	if err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	return slots, nil
}

func (b *Booking) BookAppointment(ctx context.Context, p model.Principal, counselorUserID, slotID int64) (*model.Appointment, error) {
	if counselorUserID <= 0 || slotID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "Please provide counselorUserId and slotId")
	}

	var appt *model.Appointment
	err := b.st.Atomic(ctx, func(q store.Querier) error {
		cid, err := q.CounselorIDByUser(ctx, counselorUserID)
		if err != nil {
			return notFound(err, "Counselor not found")
		}

		// row lock: a concurrent booker of the same slot waits here and then
		// sees is_booked = true
		slot, err := q.LockSlot(ctx, slotID, cid)
		if err != nil {
			return notFound(err, "Slot not found")
		}
		if slot.IsBooked {
			return status.Error(codes.AlreadyExists, "This slot has already been booked")
		}
		if !slot.StartTime.After(b.now()) {
			return status.Error(codes.FailedPrecondition, "Cannot book a slot in the past")
		}

		dup, err := q.HasActiveAppointment(ctx, p.ID, cid, slot.StartTime)
		if err != nil {
			return err
		}
		if dup {
			return status.Error(codes.AlreadyExists, "You already have an appointment at this time")
		}

		flipped, err := q.SetSlotBooked(ctx, slot.ID, true)
		if err != nil {
			return err
		}
		if !flipped {
			return status.Error(codes.AlreadyExists, "This slot has already been booked")
		}

		a := &model.Appointment{
			StudentID:       p.ID,
			CounselorID:     cid,
			SlotID:          &slot.ID,
			AppointmentTime: slot.StartTime,
			Status:          model.StatusScheduled,
		}
		if err := q.CreateAppointment(ctx, a); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return status.Error(codes.AlreadyExists, "You already have an appointment at this time")
			}
			return err
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.log.Info("appointment booked",
		zap.Int64("appointment_id", appt.ID),
		zap.Int64("student_id", appt.StudentID),
		zap.Int64("slot_id", slotID),
	)
	b.publish(ctx, notify.Event{Kind: notify.KindBooked, Appointment: *appt, Actor: p})
	return appt, nil
}

// ListUserAppointments returns the caller's appointments and the role the
// listing was resolved for. The role is re-read from the store.
func (b *Booking) ListUserAppointments(ctx context.Context, p model.Principal) ([]model.AppointmentView, model.Role, error) {
	u, err := b.st.UserByID(ctx, p.ID)
	if err != nil {
		return nil, "", notFound(err, "User not found")
	}

	var out []model.AppointmentView
	switch u.Role {
	case model.RoleStudent:
		out, err = b.st.ListStudentAppointments(ctx, u.ID)
	case model.RoleCounselor:
		cid, cerr := b.st.CounselorIDByUser(ctx, u.ID)
		if cerr != nil {
			return nil, "", notFound(cerr, "Counselor profile not found")
		}
		out, err = b.st.ListCounselorAppointments(ctx, cid)
	default:
		// admins have no appointment list
		return nil, "", status.Error(codes.InvalidArgument, "Invalid user role")
	}
	if err != nil {
		return nil, "", err
	}
	if out == nil {
		out = []model.AppointmentView{}
	}
	return out, u.Role, nil
}

func (b *Booking) CancelAppointment(ctx context.Context, p model.Principal, appointmentID int64) (*model.Appointment, error) {
	var appt *model.Appointment
	err := b.st.Atomic(ctx, func(q store.Querier) error {
		a, err := q.LockAppointment(ctx, appointmentID)
		if err != nil {
			return notFound(err, "Appointment not found")
		}
		if p.ID != a.StudentID && p.ID != a.CounselorUserID {
			return status.Error(codes.PermissionDenied, "Not authorized to cancel this appointment")
		}
		switch a.Status {
		case model.StatusCancelled:
			return status.Error(codes.FailedPrecondition, "Appointment is already cancelled")
		case model.StatusCompleted:
			return status.Error(codes.FailedPrecondition, "Appointment is already completed")
		case model.StatusScheduled:
		}

		if err := q.SetAppointmentStatus(ctx, a.ID, model.StatusCancelled); err != nil {
			return err
		}
		a.Status = model.StatusCancelled

		if a.SlotID != nil {
			if _, err := q.SetSlotBooked(ctx, *a.SlotID, false); err != nil {
				return err
			}
		} else if _, err := q.ReleaseSlotAt(ctx, a.CounselorID, a.AppointmentTime); err != nil {
			return err
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.log.Info("appointment cancelled",
		zap.Int64("appointment_id", appt.ID),
		zap.Int64("by", p.ID),
		zap.String("role", string(p.Role)),
	)
	b.publish(ctx, notify.Event{Kind: notify.KindCancelled, Appointment: *appt, Actor: p})
	return appt, nil
}

func (b *Booking) publish(ctx context.Context, ev notify.Event) {
	if err := b.notifier.Notify(ctx, ev); err != nil {
		b.log.Warn("notify failed",
			zap.String("kind", string(ev.Kind)),
			zap.Int64("appointment_id", ev.Appointment.ID),
			zap.Error(err),
		)
	}
}
