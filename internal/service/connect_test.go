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
	"neurocare-api/internal/store/storetest"
)

type fakeLabeler struct {
	cat   model.StressCategory
	err   error
	calls int
}

func (f *fakeLabeler) Classify(context.Context, string) (model.StressCategory, error) {
	f.calls++
	return f.cat, f.err
}

func TestIssueLengthBoundary(t *testing.T) {
	lab := &fakeLabeler{cat: model.StressFamily}
	svc := service.NewConnect(storetest.New(), lab, zap.NewNop())
	ctx := context.Background()

	_, err := svc.ClassifyStressIssue(ctx, strings.Repeat("a", 19))
	wantCode(t, err, codes.InvalidArgument, "")
	_, err = svc.ClassifyStressIssue(ctx, "   "+strings.Repeat("a", 19)+"   ")
	wantCode(t, err, codes.InvalidArgument, "")
	if lab.calls != 0 {
		t.Error("classifier called for short input")
	}

	got, err := svc.ClassifyStressIssue(ctx, strings.Repeat("a", 20))
	if err != nil || got != model.StressFamily {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestStressFallback(t *testing.T) {
	svc := service.NewConnect(storetest.New(), &fakeLabeler{err: errors.New("unparsable")}, zap.NewNop())
	got, err := svc.ClassifyStressIssue(context.Background(), "my family keeps fighting every night")
	if err != nil {
		t.Fatalf("classification must not fail: %v", err)
	}
	if got != model.DefaultStressCategory {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestSubmitConnectRequest(t *testing.T) {
	mem := storetest.New()
	lab := &fakeLabeler{cat: model.StressLoneliness}
	svc := service.NewConnect(mem, lab, zap.NewNop())
	ctx := context.Background()

	var peers []model.User
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		u := mem.SeedUser(name, name+"@uni.test", model.RoleStudent)
		peers = append(peers, u)
		p := model.Principal{ID: u.ID, Role: model.RoleStudent}
		if _, err := svc.SubmitConnectRequest(ctx, p, "I feel so alone in this new city"); err != nil {
			t.Fatalf("submit %s: %v", name, err)
		}
	}
	// different category must not match
	odd := mem.SeedUser("odd", "odd@uni.test", model.RoleStudent)
	lab.cat = model.StressFinancial
	if _, err := svc.SubmitConnectRequest(ctx, model.Principal{ID: odd.ID}, "rent went up and I cannot pay it"); err != nil {
		t.Fatal(err)
	}

	lab.cat = model.StressLoneliness
	me := mem.SeedUser("me", "me@uni.test", model.RoleStudent)
	res, err := svc.SubmitConnectRequest(ctx, model.Principal{ID: me.ID}, "nobody to talk to since I moved")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Category != model.StressLoneliness {
		t.Errorf("category %s", res.Category)
	}
	if len(res.Matches) != service.PeerMatchLimit {
		t.Fatalf("expected %d matches, got %d", service.PeerMatchLimit, len(res.Matches))
	}
	if res.Matches[0].Email != peers[5].Email {
		t.Errorf("expected most recent first, got %+v", res.Matches[0])
	}
	for _, m := range res.Matches {
		if m.Email == me.Email || m.Email == odd.Email || m.Email == peers[0].Email {
			t.Errorf("unexpected match %+v", m)
		}
	}
}

func TestSubmitTwiceUpdatesSingleRow(t *testing.T) {
	mem := storetest.New()
	lab := &fakeLabeler{cat: model.StressAcademic}
	svc := service.NewConnect(mem, lab, zap.NewNop())
	ctx := context.Background()
	u := mem.SeedUser("Sam", "sam@uni.test", model.RoleStudent)
	p := model.Principal{ID: u.ID, Role: model.RoleStudent}

	if _, err := svc.SubmitConnectRequest(ctx, p, "exams are crushing me this term"); err != nil {
		t.Fatal(err)
	}
	lab.cat = model.StressCareer
	if _, err := svc.SubmitConnectRequest(ctx, p, "internship rejections keep piling up"); err != nil {
		t.Fatal(err)
	}

	rows := mem.ConnectUsers()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].StressCategory != model.StressCareer || rows[0].IssueDescription != "internship rejections keep piling up" {
		t.Errorf("row not updated: %+v", rows[0])
	}
}

func TestSubmitWithFallbackStillPersists(t *testing.T) {
	mem := storetest.New()
	svc := service.NewConnect(mem, &fakeLabeler{err: errors.New("down")}, zap.NewNop())
	u := mem.SeedUser("Sam", "sam@uni.test", model.RoleStudent)

	res, err := svc.SubmitConnectRequest(context.Background(), model.Principal{ID: u.ID}, "everything is too much right now")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Category != model.DefaultStressCategory || res.Matches == nil {
		t.Errorf("unexpected result %+v", res)
	}
}
