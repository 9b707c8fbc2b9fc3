package handler

import (
	"net/http"

	"neurocare-api/internal/model"
	"neurocare-api/internal/service"
)

// validation of these fields lives in the booking service so the
// messages match across callers
type addSlotRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type bookRequest struct {
	CounselorUserID int64 `json:"counselorUserId"`
	SlotID          int64 `json:"slotId"`
}

func (h *Handler) AddSlot(w http.ResponseWriter, r *http.Request) {
	var req addSlotRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	slot, err := h.booking.AddSlot(r.Context(), principal(r), service.SlotInput{
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message string      `json:"message"`
		Slot    *model.Slot `json:"slot"`
	}{"Slot added successfully", slot})
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "counselorUserId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slots, err := h.booking.ListAvailableSlots(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.booking.BookAppointment(r.Context(), principal(r), req.CounselorUserID, req.SlotID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message     string             `json:"message"`
		Appointment *model.Appointment `json:"appointment"`
	}{"Appointment booked successfully", a})
}

func (h *Handler) ListUserAppointments(w http.ResponseWriter, r *http.Request) {
	out, role, err := h.booking.ListUserAppointments(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Appointments []model.AppointmentView `json:"appointments"`
		Role         model.Role              `json:"role"`
	}{out, role})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "appointmentId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.booking.CancelAppointment(r.Context(), principal(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message     string             `json:"message"`
		Appointment *model.Appointment `json:"appointment"`
	}{"Appointment cancelled successfully", a})
}
