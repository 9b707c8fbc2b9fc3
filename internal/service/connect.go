package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"neurocare-api/internal/model"
	"neurocare-api/internal/store"
)

const (
	MinIssueLength = 20
	PeerMatchLimit = 5
)

// StressLabeler maps an issue description to a stress category or an error.
type StressLabeler interface {
	Classify(ctx context.Context, issue string) (model.StressCategory, error)
}

type Connect struct {
	st  TxStore
	cls StressLabeler
	log *zap.Logger
}

func NewConnect(st TxStore, cls StressLabeler, log *zap.Logger) *Connect {
	return &Connect{st: st, cls: cls, log: log}
}

type ConnectResult struct {
	Category model.StressCategory `json:"category"`
	Matches  []model.PeerMatch    `json:"matches"`
}

func validateIssue(issue string) (string, error) {
	issue = strings.TrimSpace(issue)
	if utf8.RuneCountInString(issue) < MinIssueLength {
		return "", status.Error(codes.InvalidArgument, "Please describe your issue in at least 20 characters")
	}
	return issue, nil
}

// ClassifyStressIssue never fails on classifier trouble: any error degrades
// to model.DefaultStressCategory.
func (c *Connect) ClassifyStressIssue(ctx context.Context, issue string) (model.StressCategory, error) {
	issue, err := validateIssue(issue)
	if err != nil {
		return "", err
	}
	cat, err := c.cls.Classify(ctx, issue)
	if err != nil {
		c.log.Warn("stress classification fell back to default",
			zap.String("fallback", string(model.DefaultStressCategory)),
			zap.Error(err),
		)
		return model.DefaultStressCategory, nil
	}
	return cat, nil
}

func (c *Connect) SubmitConnectRequest(ctx context.Context, p model.Principal, issue string) (*ConnectResult, error) {
	issue, err := validateIssue(issue)
	if err != nil {
		return nil, err
	}
	// classify before opening the transaction so no row is held across the model call
	cat, err := c.ClassifyStressIssue(ctx, issue)
	if err != nil {
		return nil, err
	}

	res := &ConnectResult{Category: cat}
	err = c.st.Atomic(ctx, func(q store.Querier) error {
		cu := &model.ConnectUser{UserID: p.ID, IssueDescription: issue, StressCategory: cat}
		if err := q.UpsertConnectUser(ctx, cu); err != nil {
			return err
		}
		matches, err := q.PeerMatches(ctx, cat, p.ID, PeerMatchLimit)
		if err != nil {
			return err
		}
		res.Matches = matches
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Matches == nil {
		res.Matches = []model.PeerMatch{}
	}

	c.log.Info("connect request submitted",
		zap.Int64("user_id", p.ID),
		zap.String("category", string(cat)),
		zap.Int("matches", len(res.Matches)),
	)
	return res, nil
}
