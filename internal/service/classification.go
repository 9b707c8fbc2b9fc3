package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"neurocare-api/internal/model"
	"neurocare-api/internal/store"
)

// BatchClassifier returns one raw label per text, in input order.
type BatchClassifier interface {
	Classify(ctx context.Context, texts []string) ([]string, error)
}

type Classification struct {
	st  TxStore
	cls BatchClassifier
	log *zap.Logger
}

func NewClassification(st TxStore, cls BatchClassifier, log *zap.Logger) *Classification {
	return &Classification{st: st, cls: cls, log: log}
}

// ClassifyMessages labels the given user messages, or the pending queue when
// ids is empty. The batch is all or nothing: a classifier failure persists
// nothing, and a failed update rolls every update back.
func (c *Classification) ClassifyMessages(ctx context.Context, ids []int64) ([]model.ClassifiedMessage, error) {
	var (
		msgs []model.Message
		err  error
	)
	if len(ids) > 0 {
		msgs, err = c.st.UserMessagesByIDs(ctx, ids)
	} else {
		msgs, err = c.st.PendingUserMessages(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return []model.ClassifiedMessage{}, nil
	}

	batch := uuid.New()
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Text
	}

	raw, err := c.cls.Classify(ctx, texts)
	if err != nil {
		c.log.Error("classifier call failed",
			zap.Stringer("batch", batch),
			zap.Int("messages", len(msgs)),
			zap.Error(err),
		)
		return nil, status.Error(codes.Unavailable, "Error classifying messages")
	}
	if len(raw) != len(msgs) {
		c.log.Error("classifier returned mismatched batch",
			zap.Stringer("batch", batch),
			zap.Int("messages", len(msgs)),
			zap.Int("predictions", len(raw)),
		)
		return nil, status.Error(codes.Unavailable, "Error classifying messages")
	}

	out := make([]model.ClassifiedMessage, len(msgs))
	for i, m := range msgs {
		out[i] = model.ClassifiedMessage{ID: m.ID, Category: model.NormalizeCategory(raw[i]), Batch: batch}
	}

	err = c.st.Atomic(ctx, func(q store.Querier) error {
		for _, cm := range out {
			if err := q.SetMessageCategory(ctx, cm.ID, cm.Category, batch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("messages classified", zap.Stringer("batch", batch), zap.Int("count", len(out)))
	return out, nil
}

// PendingMessages lists user messages still carrying the default label.
func (c *Classification) PendingMessages(ctx context.Context, p model.Principal) ([]model.Message, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	msgs, err := c.st.PendingUserMessages(ctx)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

// CategoryStats tops up the pending queue first, then counts user messages
// per category. Every category appears, zero counts included.
func (c *Classification) CategoryStats(ctx context.Context, p model.Principal) (*model.CategoryStats, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}

	if _, err := c.ClassifyMessages(ctx, nil); err != nil {
		c.log.Warn("pre-stats classification skipped", zap.Error(err))
	}

	counts, err := c.st.CategoryCounts(ctx)
	if err != nil {
		return nil, err
	}
	byCat := make(map[model.MessageCategory]int64, len(counts))
	for _, cc := range counts {
		byCat[model.NormalizeCategory(string(cc.Category))] += cc.Count
	}

	stats := &model.CategoryStats{Stats: make([]model.CategoryCount, 0, len(model.MessageCategories))}
	for _, cat := range model.MessageCategories {
		n := byCat[cat]
		stats.Stats = append(stats.Stats, model.CategoryCount{Category: cat, Count: n})
		stats.Total += n
	}
	return stats, nil
}
