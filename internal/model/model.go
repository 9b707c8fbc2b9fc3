package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent   Role = "student"
	RoleCounselor Role = "counselor"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleStudent, RoleCounselor, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

type Counselor struct {
	ID                int64  `json:"counselor_id"`
	UserID            int64  `json:"user_id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Specialization    string `json:"specialization"`
	Bio               string `json:"bio"`
	YearsOfExperience int    `json:"years_of_experience"`
}

type Slot struct {
	ID          int64     `json:"id"`
	CounselorID int64     `json:"counselor_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsBooked    bool      `json:"is_booked"`
}

// Overlaps reports whether the half-open ranges [s.Start, s.End) and [start, end) intersect.
func (s Slot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && s.EndTime.After(start)
}

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Terminal statuses never transition again.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Appointment struct {
	ID              int64             `json:"id"`
	StudentID       int64             `json:"student_id"`
	CounselorID     int64             `json:"counselor_id"`
	SlotID          *int64            `json:"slot_id,omitempty"`
	AppointmentTime time.Time         `json:"appointment_time"`
	Status          AppointmentStatus `json:"status"`

	// owning user of CounselorID, filled by joins
	CounselorUserID int64 `json:"-"`
}

// AppointmentView is an appointment joined with the other party's details.
type AppointmentView struct {
	ID              int64             `json:"id"`
	AppointmentTime time.Time         `json:"appointment_time"`
	Status          AppointmentStatus `json:"status"`
	CounselorName   string            `json:"counselor_name,omitempty"`
	Specialization  string            `json:"specialization,omitempty"`
	StudentName     string            `json:"student_name,omitempty"`
	StudentEmail    string            `json:"student_email,omitempty"`
}

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type MessageCategory string

const (
	CategoryAcademic     MessageCategory = "academic"
	CategoryCareer       MessageCategory = "career"
	CategoryRelationship MessageCategory = "relationship"
	CategoryOther        MessageCategory = "other"
)

var MessageCategories = []MessageCategory{CategoryAcademic, CategoryCareer, CategoryRelationship, CategoryOther}

// NormalizeCategory lower-cases and trims a raw label; anything outside the fixed set becomes other.
func NormalizeCategory(raw string) MessageCategory {
	c := MessageCategory(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range MessageCategories {
		if c == known {
			return c
		}
	}
	return CategoryOther
}

type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	StartedAt time.Time `json:"started_at"`
}

type Message struct {
	ID             int64           `json:"id"`
	ConversationID int64           `json:"conversation_id"`
	Sender         Sender          `json:"sender"`
	Text           string          `json:"message"`
	Category       MessageCategory `json:"category"`
	CreatedAt      time.Time       `json:"created_at"`

	// Batch is the classification run that last labelled the message.
	Batch *uuid.UUID `json:"classification_batch,omitempty"`
}

type ClassifiedMessage struct {
	ID       int64           `json:"id"`
	Category MessageCategory `json:"category"`
	Batch    uuid.UUID       `json:"classification_batch"`
}

type CategoryCount struct {
	Category MessageCategory `json:"category"`
	Count    int64           `json:"count"`
}

type CategoryStats struct {
	Total int64           `json:"total"`
	Stats []CategoryCount `json:"stats"`
}

type StressCategory string

const (
	StressAcademic     StressCategory = "academic_stress"
	StressCareer       StressCategory = "career_job_stress"
	StressRelationship StressCategory = "relationship_stress"
	StressSocial       StressCategory = "friendship_social_stress"
	StressFamily       StressCategory = "family_stress"
	StressFinancial    StressCategory = "financial_stress"
	StressSelfEsteem   StressCategory = "self_esteem_confidence_stress"
	StressOverload     StressCategory = "emotional_mental_overload"
	StressHealth       StressCategory = "health_physical_wellbeing_stress"
	StressLoneliness   StressCategory = "loneliness_isolation_stress"
)

// DefaultStressCategory is used whenever classification cannot produce a valid label.
const DefaultStressCategory = StressOverload

var StressCategories = []StressCategory{
	StressAcademic, StressCareer, StressRelationship, StressSocial, StressFamily,
	StressFinancial, StressSelfEsteem, StressOverload, StressHealth, StressLoneliness,
}

func ParseStressCategory(s string) (StressCategory, bool) {
	c := StressCategory(strings.TrimSpace(s))
	for _, known := range StressCategories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

type ConnectUser struct {
	ID               int64          `json:"id"`
	UserID           int64          `json:"user_id"`
	IssueDescription string         `json:"issue_description"`
	StressCategory   StressCategory `json:"stress_category"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type PeerMatch struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
