package handler

import (
	"net/http"
)

type conversationRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type sendRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type classifyRequest struct {
	MessageIDs []int64 `json:"messageIds"`
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	out, err := h.chat.ListConversations(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := h.decodeOptional(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	conv, err := h.chat.StartConversation(r.Context(), principal(r), req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.chat.ListMessages(r.Context(), principal(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req sendRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ex, err := h.chat.SendMessage(r.Context(), principal(r), id, req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ex)
}

func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := h.decodeOptional(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.classification.ClassifyMessages(r.Context(), req.MessageIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"classified": out})
}

func (h *Handler) CategoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.classification.CategoryStats(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) PendingMessages(w http.ResponseWriter, r *http.Request) {
	out, err := h.classification.PendingMessages(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}
