package service_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"neurocare-api/internal/model"
	"neurocare-api/internal/service"
	"neurocare-api/internal/store"
)

func setupPostgres(t *testing.T) *store.Store {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := store.Migrate(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(pool)
}

func pgPrincipal(t *testing.T, st *store.Store, role model.Role) model.Principal {
	t.Helper()
	ctx := context.Background()
	u := &model.User{
		Name:         "Test " + string(role),
		Email:        fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8]),
		PasswordHash: "x",
		Role:         role,
	}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if role == model.RoleCounselor {
		if err := st.CreateCounselor(ctx, &model.Counselor{UserID: u.ID}); err != nil {
			t.Fatalf("create counselor: %v", err)
		}
	}
	return model.Principal{ID: u.ID, Name: u.Name, Role: role}
}

// Row locks in Postgres, not the in-memory store's mutex, must keep a
// contested slot to a single appointment.
func TestConcurrentBookingPostgres(t *testing.T) {
	st := setupPostgres(t)
	svc := service.NewBooking(st, nil, time.UTC, zap.NewNop())
	ctx := context.Background()

	counselor := pgPrincipal(t, st, model.RoleCounselor)
	// far enough ahead that reruns against the same database never collide
	day := time.Now().UTC().AddDate(0, 0, 30+int(uuid.New().ID()%300)).Format("2006-01-02")
	slot, err := svc.AddSlot(ctx, counselor, service.SlotInput{Date: day, StartTime: "14:00", EndTime: "15:00"})
	if err != nil {
		t.Fatalf("add slot: %v", err)
	}

	n := 10
	students := make([]model.Principal, n)
	for i := range students {
		students[i] = pgPrincipal(t, st, model.RoleStudent)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	success, conflicts := 0, 0
	for _, p := range students {
		wg.Add(1)
		go func(p model.Principal) {
			defer wg.Done()
			_, err := svc.BookAppointment(ctx, p, counselor.ID, slot.ID)
			mu.Lock()
			defer mu.Unlock()
			switch status.Code(err) {
			case codes.OK:
				success++
			case codes.AlreadyExists:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(p)
	}
	wg.Wait()

	if success != 1 || conflicts != n-1 {
		t.Errorf("expected 1 success and %d conflicts, got %d and %d", n-1, success, conflicts)
	}

	appts, _, err := svc.ListUserAppointments(ctx, counselor)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(appts) != 1 {
		t.Errorf("expected 1 stored appointment, got %d", len(appts))
	}
	open, err := svc.ListAvailableSlots(ctx, counselor.ID)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	for _, s := range open {
		if s.ID == slot.ID {
			t.Error("booked slot still listed as available")
		}
	}
}
