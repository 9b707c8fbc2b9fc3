package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"neurocare-api/internal/model"
	"neurocare-api/internal/service"
)

type fakeGenerator struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

func TestSendMessage(t *testing.T) {
	s := seedChat(t)
	for i := 0; i < 7; i++ {
		s.say(t, model.SenderUser, "old-"+string(rune('0'+i)))
	}
	gen := &fakeGenerator{reply: "That sounds really tough."}
	svc := service.NewChat(s.mem, gen, zap.NewNop())
	p := model.Principal{ID: s.user.ID, Role: model.RoleStudent}

	ex, err := svc.SendMessage(context.Background(), p, s.conv.ID, "  I can't sleep before exams  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ex.User.Text != "I can't sleep before exams" || ex.User.Category != model.CategoryOther || ex.User.Sender != model.SenderUser {
		t.Errorf("unexpected user message %+v", ex.User)
	}
	if ex.Bot.Text != "That sounds really tough." || ex.Bot.Sender != model.SenderBot {
		t.Errorf("unexpected bot message %+v", ex.Bot)
	}

	// only the last five turns are sent as context
	if strings.Contains(gen.user, "old-1") || !strings.Contains(gen.user, "old-2") || !strings.Contains(gen.user, "old-6") {
		t.Errorf("unexpected context window:\n%s", gen.user)
	}
	if !strings.Contains(gen.user, "Current user message: I can't sleep before exams") {
		t.Errorf("prompt missing current message:\n%s", gen.user)
	}
	if gen.system == "" {
		t.Error("system prompt not set")
	}
}

func TestSendMessageFallback(t *testing.T) {
	tests := []struct {
		name string
		gen  service.ReplyGenerator
	}{
		{"error", &fakeGenerator{err: errors.New("quota")}},
		{"blank", &fakeGenerator{reply: "   "}},
		{"no model", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seedChat(t)
			svc := service.NewChat(s.mem, tt.gen, zap.NewNop())
			p := model.Principal{ID: s.user.ID}

			ex, err := svc.SendMessage(context.Background(), p, s.conv.ID, "hello")
			if err != nil {
				t.Fatalf("send: %v", err)
			}
			if ex.Bot.Text != service.FallbackReply {
				t.Errorf("expected fallback, got %q", ex.Bot.Text)
			}
			msgs, _ := svc.ListMessages(context.Background(), p, s.conv.ID)
			if len(msgs) != 2 {
				t.Errorf("expected user and bot message stored, got %d", len(msgs))
			}
		})
	}
}

func TestConversationOwnership(t *testing.T) {
	s := seedChat(t)
	svc := service.NewChat(s.mem, nil, zap.NewNop())
	other := model.Principal{ID: s.user.ID + 100}
	ctx := context.Background()

	_, err := svc.ListMessages(ctx, other, s.conv.ID)
	wantCode(t, err, codes.NotFound, "Conversation not found")
	_, err = svc.SendMessage(ctx, other, s.conv.ID, "hi")
	wantCode(t, err, codes.NotFound, "Conversation not found")
	_, err = svc.SendMessage(ctx, model.Principal{ID: s.user.ID}, s.conv.ID, "   ")
	wantCode(t, err, codes.InvalidArgument, "Message cannot be empty")
}

func TestConversations(t *testing.T) {
	s := seedChat(t)
	svc := service.NewChat(s.mem, nil, zap.NewNop())
	p := model.Principal{ID: s.user.ID}
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx, p, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if conv.Title != "New conversation" || conv.UserID != p.ID {
		t.Errorf("unexpected conversation %+v", conv)
	}

	list, err := svc.ListConversations(ctx, p)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != conv.ID {
		t.Errorf("expected newest first, got %+v", list)
	}

	empty, err := svc.ListConversations(ctx, model.Principal{ID: 9999})
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("expected empty list, got %#v %v", empty, err)
	}
}
