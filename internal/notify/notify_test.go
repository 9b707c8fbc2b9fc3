package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"

	"neurocare-api/internal/model"
	"neurocare-api/internal/notify"
)

func event(kind notify.Kind) notify.Event {
	return notify.Event{
		Kind:        kind,
		Appointment: model.Appointment{ID: 7, AppointmentTime: time.Date(2030, 3, 4, 14, 0, 0, 0, time.UTC)},
		Actor:       model.Principal{ID: 1, Name: "Sam", Role: model.RoleStudent},
	}
}

func TestEventText(t *testing.T) {
	booked := event(notify.KindBooked).Text(time.UTC)
	if !strings.Contains(booked, "#7 booked") || !strings.Contains(booked, "Mon 04 Mar 2030 14:00") {
		t.Errorf("unexpected text %q", booked)
	}
	cancelled := event(notify.KindCancelled).Text(time.UTC)
	if !strings.Contains(cancelled, "cancelled by Sam (student)") {
		t.Errorf("unexpected text %q", cancelled)
	}
}

func TestNop(t *testing.T) {
	if err := (notify.Nop{}).Notify(context.Background(), event(notify.KindBooked)); err != nil {
		t.Fatal(err)
	}
}

func TestTelegramSendsToChat(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var chatIDs []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		chatIDs = append(chatIDs, r.FormValue("chat_id"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":99,"type":"group"}}}`))
	}))
	defer srv.Close()

	tg, err := notify.NewTelegram("123:abc", 99, time.UTC, bot.WithServerURL(srv.URL))
	if err != nil {
		t.Fatalf("new telegram: %v", err)
	}
	if err := tg.Notify(context.Background(), event(notify.KindBooked)); err != nil {
		t.Fatalf("notify: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || !strings.HasSuffix(paths[0], "/sendMessage") {
		t.Fatalf("unexpected calls %v", paths)
	}
	if chatIDs[0] != "99" {
		t.Errorf("chat_id = %q", chatIDs[0])
	}
}
