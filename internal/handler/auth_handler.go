package handler

import (
	"net/http"

	"neurocare-api/internal/model"
	"neurocare-api/internal/service"
)

type signupRequest struct {
	Name              string `json:"name" validate:"required,max=100"`
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,min=8,max=72"`
	Role              string `json:"role"`
	Specialization    string `json:"specialization" validate:"max=200"`
	Bio               string `json:"bio" validate:"max=2000"`
	YearsOfExperience int    `json:"yearsOfExperience" validate:"gte=0"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.accounts.Signup(r.Context(), service.SignupInput{
		Name:              req.Name,
		Email:             req.Email,
		Password:          req.Password,
		Role:              req.Role,
		Specialization:    req.Specialization,
		Bio:               req.Bio,
		YearsOfExperience: req.YearsOfExperience,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message string      `json:"message"`
		User    *model.User `json:"user"`
	}{"User created successfully", u})
}

func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tok, u, err := h.accounts.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string      `json:"message"`
		Token   string      `json:"token"`
		User    *model.User `json:"user"`
	}{"Signed in successfully", tok, u})
}

func (h *Handler) ListCounselors(w http.ResponseWriter, r *http.Request) {
	out, err := h.accounts.ListCounselors(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counselors": out})
}

func (h *Handler) GetCounselor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.accounts.GetCounselor(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
