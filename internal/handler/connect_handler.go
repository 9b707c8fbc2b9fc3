package handler

import "net/http"

type connectRequest struct {
	IssueDescription string `json:"issueDescription" validate:"required,max=2000"`
}

func (h *Handler) SubmitConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.connect.SubmitConnectRequest(r.Context(), principal(r), req.IssueDescription)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
