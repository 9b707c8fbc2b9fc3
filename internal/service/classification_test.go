package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"neurocare-api/internal/classifier"
	"neurocare-api/internal/model"
	"neurocare-api/internal/service"
	"neurocare-api/internal/store/storetest"
)

type fakeBatch struct {
	labels []string
	err    error
	calls  int
	seen   []string
}

func (f *fakeBatch) Classify(_ context.Context, texts []string) ([]string, error) {
	f.calls++
	f.seen = texts
	if f.err != nil {
		return nil, f.err
	}
	return f.labels, nil
}

type chatSeed struct {
	mem  *storetest.Memory
	user model.User
	conv model.Conversation
}

func seedChat(t *testing.T) *chatSeed {
	t.Helper()
	mem := storetest.New()
	u := mem.SeedUser("Sam", "sam@uni.test", model.RoleStudent)
	conv := model.Conversation{UserID: u.ID, Title: "t"}
	if err := mem.CreateConversation(context.Background(), &conv); err != nil {
		t.Fatal(err)
	}
	return &chatSeed{mem: mem, user: u, conv: conv}
}

func (s *chatSeed) say(t *testing.T, sender model.Sender, text string) model.Message {
	t.Helper()
	m := model.Message{ConversationID: s.conv.ID, Sender: sender, Text: text}
	if err := s.mem.CreateMessage(context.Background(), &m); err != nil {
		t.Fatal(err)
	}
	return m
}

var admin = model.Principal{ID: 1, Name: "Root", Role: model.RoleAdmin}

func TestClassifyPendingQueue(t *testing.T) {
	s := seedChat(t)
	m1 := s.say(t, model.SenderUser, "I'm failing my classes")
	s.say(t, model.SenderBot, "That sounds hard")
	m2 := s.say(t, model.SenderUser, "my partner left me")

	cls := &fakeBatch{labels: []string{" Academic ", "RELATIONSHIP"}}
	svc := service.NewClassification(s.mem, cls, zap.NewNop())

	out, err := svc.ClassifyMessages(context.Background(), nil)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(cls.seen) != 2 {
		t.Errorf("bot messages must not be sent, got %v", cls.seen)
	}
	if len(out) != 2 || out[0].Category != model.CategoryAcademic || out[1].Category != model.CategoryRelationship {
		t.Errorf("unexpected result %+v", out)
	}
	if got, _ := s.mem.Message(m1.ID); got.Category != model.CategoryAcademic {
		t.Errorf("m1 persisted as %s", got.Category)
	}
	if got, _ := s.mem.Message(m2.ID); got.Category != model.CategoryRelationship {
		t.Errorf("m2 persisted as %s", got.Category)
	}
}

func TestClassifyCoercesUnknownLabels(t *testing.T) {
	s := seedChat(t)
	m := s.say(t, model.SenderUser, "money is tight")

	cls := &fakeBatch{labels: []string{"finance"}}
	svc := service.NewClassification(s.mem, cls, zap.NewNop())

	out, err := svc.ClassifyMessages(context.Background(), []int64{m.ID})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(out) != 1 || out[0].Category != model.CategoryOther {
		t.Errorf("expected other, got %+v", out)
	}
}

func TestClassifyExplicitIDsSkipBotMessages(t *testing.T) {
	s := seedChat(t)
	u := s.say(t, model.SenderUser, "career fair stress")
	b := s.say(t, model.SenderBot, "tell me more")

	cls := &fakeBatch{labels: []string{"career"}}
	svc := service.NewClassification(s.mem, cls, zap.NewNop())

	out, err := svc.ClassifyMessages(context.Background(), []int64{u.ID, b.ID, 999})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(out) != 1 || out[0].ID != u.ID {
		t.Errorf("unexpected result %+v", out)
	}
}

func TestClassifyEmptyIsNoop(t *testing.T) {
	s := seedChat(t)
	cls := &fakeBatch{}
	svc := service.NewClassification(s.mem, cls, zap.NewNop())

	out, err := svc.ClassifyMessages(context.Background(), nil)
	if err != nil || len(out) != 0 || out == nil {
		t.Fatalf("expected empty result, got %#v %v", out, err)
	}
	if cls.calls != 0 {
		t.Error("classifier called for empty batch")
	}
}

func TestClassifyAbortsOnFailure(t *testing.T) {
	tests := []struct {
		name string
		cls  *fakeBatch
	}{
		{"transport", &fakeBatch{err: classifier.ErrUnavailable}},
		{"length mismatch", &fakeBatch{labels: []string{"academic"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seedChat(t)
			m1 := s.say(t, model.SenderUser, "exams")
			s.say(t, model.SenderUser, "job")
			svc := service.NewClassification(s.mem, tt.cls, zap.NewNop())

			_, err := svc.ClassifyMessages(context.Background(), nil)
			wantCode(t, err, codes.Unavailable, "")
			if got, _ := s.mem.Message(m1.ID); got.Category != model.CategoryOther {
				t.Errorf("partial persistence: %s", got.Category)
			}
		})
	}
}

func TestClassifyRollsBackOnUpdateFailure(t *testing.T) {
	s := seedChat(t)
	m1 := s.say(t, model.SenderUser, "exams")
	s.say(t, model.SenderUser, "job")

	updates := 0
	s.mem.Fail = func(op string) error {
		if op != "SetMessageCategory" {
			return nil
		}
		updates++
		if updates == 2 {
			return errors.New("constraint violated")
		}
		return nil
	}
	svc := service.NewClassification(s.mem, &fakeBatch{labels: []string{"academic", "career"}}, zap.NewNop())

	if _, err := svc.ClassifyMessages(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if got, _ := s.mem.Message(m1.ID); got.Category != model.CategoryOther || got.Batch != nil {
		t.Errorf("first update survived rollback: %s %v", got.Category, got.Batch)
	}
}

func TestClassifyStampsBatch(t *testing.T) {
	s := seedChat(t)
	m1 := s.say(t, model.SenderUser, "exams")
	m2 := s.say(t, model.SenderUser, "job")
	svc := service.NewClassification(s.mem, &fakeBatch{labels: []string{"academic"}}, zap.NewNop())
	ctx := context.Background()

	first, err := svc.ClassifyMessages(ctx, []int64{m1.ID})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.ClassifyMessages(ctx, []int64{m2.ID})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first[0].Batch == uuid.Nil || first[0].Batch == second[0].Batch {
		t.Fatalf("each run needs its own batch id: %s %s", first[0].Batch, second[0].Batch)
	}

	got, _ := s.mem.Message(m1.ID)
	if got.Batch == nil || *got.Batch != first[0].Batch {
		t.Errorf("batch not persisted on message: %v", got.Batch)
	}
	if unclassified := s.say(t, model.SenderUser, "later"); unclassified.Batch != nil {
		t.Errorf("new messages start without a batch")
	}
}

func TestCategoryStats(t *testing.T) {
	s := seedChat(t)
	s.say(t, model.SenderUser, "exams")
	s.say(t, model.SenderUser, "more exams")
	s.say(t, model.SenderUser, "job")
	s.say(t, model.SenderBot, "ok")

	cls := &fakeBatch{labels: []string{"academic", "academic", "career"}}
	svc := service.NewClassification(s.mem, cls, zap.NewNop())

	stats, err := svc.CategoryStats(context.Background(), admin)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total %d", stats.Total)
	}
	want := map[model.MessageCategory]int64{
		model.CategoryAcademic: 2, model.CategoryCareer: 1,
		model.CategoryRelationship: 0, model.CategoryOther: 0,
	}
	if len(stats.Stats) != len(want) {
		t.Fatalf("expected all categories, got %+v", stats.Stats)
	}
	for _, c := range stats.Stats {
		if c.Count != want[c.Category] {
			t.Errorf("%s = %d, want %d", c.Category, c.Count, want[c.Category])
		}
	}
}

func TestCategoryStatsSurvivesClassifierOutage(t *testing.T) {
	s := seedChat(t)
	s.say(t, model.SenderUser, "exams")
	svc := service.NewClassification(s.mem, &fakeBatch{err: errors.New("down")}, zap.NewNop())

	stats, err := svc.CategoryStats(context.Background(), admin)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("total %d", stats.Total)
	}
}

func TestAdminOnlyEndpoints(t *testing.T) {
	s := seedChat(t)
	svc := service.NewClassification(s.mem, &fakeBatch{}, zap.NewNop())
	ctx := context.Background()

	for _, role := range []model.Role{model.RoleStudent, model.RoleCounselor} {
		p := model.Principal{ID: 5, Role: role}
		_, err := svc.CategoryStats(ctx, p)
		wantCode(t, err, codes.PermissionDenied, "")
		_, err = svc.PendingMessages(ctx, p)
		wantCode(t, err, codes.PermissionDenied, "")
	}
}

func TestPendingMessages(t *testing.T) {
	s := seedChat(t)
	m := s.say(t, model.SenderUser, "hello")
	s.say(t, model.SenderBot, "hi")

	svc := service.NewClassification(s.mem, &fakeBatch{}, zap.NewNop())
	out, err := svc.PendingMessages(context.Background(), admin)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(out) != 1 || out[0].ID != m.ID {
		t.Errorf("unexpected pending %+v", out)
	}
}
