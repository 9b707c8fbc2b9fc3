package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"neurocare-api/internal/auth"
	"neurocare-api/internal/model"
	"neurocare-api/internal/store"
)

type Accounts struct {
	st         TxStore
	secret     string
	ttl        time.Duration
	allowAdmin bool
	log        *zap.Logger
}

func NewAccounts(st TxStore, secret string, ttl time.Duration, log *zap.Logger) *Accounts {
	return &Accounts{st: st, secret: secret, ttl: ttl, log: log}
}

// SetAdminSignup controls whether signup may create admin accounts. It is
// off by default.
func (a *Accounts) SetAdminSignup(allow bool) { a.allowAdmin = allow }

type SignupInput struct {
	Name              string
	Email             string
	Password          string
	Role              string
	Specialization    string
	Bio               string
	YearsOfExperience int
}

var errUserExists = status.Error(codes.AlreadyExists, "User already exists")

func (a *Accounts) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	role := model.RoleStudent
	if strings.TrimSpace(in.Role) != "" {
		r, err := model.ParseRole(in.Role)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "Invalid user role")
		}
		role = r
	}
	if role == model.RoleAdmin && !a.allowAdmin {
		return nil, status.Error(codes.PermissionDenied, "Admin accounts cannot be created through signup")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         role,
	}

	err = a.st.Atomic(ctx, func(q store.Querier) error {
		if _, err := q.UserByEmail(ctx, u.Email); err == nil {
			return errUserExists
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := q.CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return errUserExists
			}
			return err
		}
		if role != model.RoleCounselor {
			return nil
		}
		return q.CreateCounselor(ctx, &model.Counselor{
			UserID:            u.ID,
			Specialization:    strings.TrimSpace(in.Specialization),
			Bio:               strings.TrimSpace(in.Bio),
			YearsOfExperience: in.YearsOfExperience,
		})
	})
	if err != nil {
		return nil, err
	}

	a.log.Info("user signed up", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Signin returns a bearer token for valid credentials. Unknown email and
// wrong password are indistinguishable to the caller.
func (a *Accounts) Signin(ctx context.Context, email, password string) (string, *model.User, error) {
	bad := status.Error(codes.InvalidArgument, "Invalid email or password")

	u, err := a.st.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, bad
		}
		return "", nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return "", nil, bad
	}

	tok, err := auth.MakeToken(model.Principal{ID: u.ID, Name: u.Name, Role: u.Role}, a.secret, a.ttl)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

func (a *Accounts) ListCounselors(ctx context.Context) ([]model.Counselor, error) {
	out, err := a.st.ListCounselors(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Counselor{}
	}
	return out, nil
}

// GetCounselor accepts either the counselor's user id or counselor id.
func (a *Accounts) GetCounselor(ctx context.Context, id int64) (*model.Counselor, error) {
	c, err := a.st.CounselorByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Counselor not found")
	}
	return c, nil
}
