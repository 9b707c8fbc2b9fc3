package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"neurocare-api/internal/model"
)

// ReplyGenerator produces the bot's answer from a system and user prompt.
type ReplyGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const (
	historyTurns  = 5
	defaultTitle  = "New conversation"
	FallbackReply = "I'm here to listen and support you. Could you tell me more about how you're feeling?"
)

const supportPrompt = `You are a compassionate mental health support chatbot for university students.

Guidelines:
1. Be empathetic and understanding
2. Provide supportive responses
3. If the user seems in crisis, encourage professional help
4. Ask follow-up questions
5. Provide coping strategies when appropriate
6. Keep responses conversational and warm`

type Chat struct {
	st  TxStore
	llm ReplyGenerator
	log *zap.Logger
}

// NewChat accepts a nil llm; every reply is then the fallback.
func NewChat(st TxStore, llm ReplyGenerator, log *zap.Logger) *Chat {
	return &Chat{st: st, llm: llm, log: log}
}

type Exchange struct {
	User model.Message `json:"user"`
	Bot  model.Message `json:"bot"`
}

func (c *Chat) StartConversation(ctx context.Context, p model.Principal, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}
	conv := &model.Conversation{UserID: p.ID, Title: title}
	if err := c.st.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (c *Chat) ListConversations(ctx context.Context, p model.Principal) ([]model.Conversation, error) {
	out, err := c.st.ListConversations(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Conversation{}
	}
	return out, nil
}

// owned hides other users' conversations behind NotFound.
func (c *Chat) owned(ctx context.Context, p model.Principal, id int64) (*model.Conversation, error) {
	conv, err := c.st.ConversationByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Conversation not found")
	}
	if conv.UserID != p.ID {
		return nil, status.Error(codes.NotFound, "Conversation not found")
	}
	return conv, nil
}

func (c *Chat) ListMessages(ctx context.Context, p model.Principal, conversationID int64) ([]model.Message, error) {
	if _, err := c.owned(ctx, p, conversationID); err != nil {
		return nil, err
	}
	out, err := c.st.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Message{}
	}
	return out, nil
}

// SendMessage stores the user's text, asks the model for a reply with the
// last few turns as context, and stores the reply. The user message is kept
// even when the model fails.
func (c *Chat) SendMessage(ctx context.Context, p model.Principal, conversationID int64, text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, status.Error(codes.InvalidArgument, "Message cannot be empty")
	}
	if _, err := c.owned(ctx, p, conversationID); err != nil {
		return nil, err
	}

	history, err := c.st.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}

	user := model.Message{ConversationID: conversationID, Sender: model.SenderUser, Text: text, Category: model.CategoryOther}
	if err := c.st.CreateMessage(ctx, &user); err != nil {
		return nil, err
	}

	bot := model.Message{ConversationID: conversationID, Sender: model.SenderBot, Text: c.reply(ctx, history, text), Category: model.CategoryOther}
	if err := c.st.CreateMessage(ctx, &bot); err != nil {
		return nil, err
	}
	return &Exchange{User: user, Bot: bot}, nil
}

func (c *Chat) reply(ctx context.Context, history []model.Message, text string) string {
	if c.llm == nil {
		return FallbackReply
	}
	out, err := c.llm.Generate(ctx, supportPrompt, buildChatPrompt(history, text))
	if err != nil {
		c.log.Warn("chat reply fell back", zap.Error(err))
		return FallbackReply
	}
	if out = strings.TrimSpace(out); out == "" {
		return FallbackReply
	}
	return out
}

func buildChatPrompt(history []model.Message, text string) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			who := "User"
			if m.Sender == model.SenderBot {
				who = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", who, m.Text)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Current user message: %s\n\nPlease provide a supportive response:", text)
	return b.String()
}
