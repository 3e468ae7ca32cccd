package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/siminyang/aboutxtime/internal/api/respond"
	"github.com/siminyang/aboutxtime/internal/services"
)

// WatchHandler streams live capsule updates as server-sent events. The
// underlying store subscription is cancelled when the client disconnects.
type WatchHandler struct {
	svc *services.CapsuleService
}

func NewWatchHandler(svc *services.CapsuleService) *WatchHandler {
	return &WatchHandler{svc: svc}
}

func (h *WatchHandler) WatchCapsule(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.WriteInternalError(w, "streaming unsupported")
		return
	}
	sub, err := h.svc.SubscribeToCapsule(r.Context(), mux.Vars(r)["capsuleId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer sub.Cancel()

	setStreamHeaders(w)
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case c, ok := <-sub.C:
			if !ok {
				return
			}
			writeEvent(w, flusher, c)
		}
	}
}

func (h *WatchHandler) WatchUserCapsules(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.WriteInternalError(w, "streaming unsupported")
		return
	}
	sub, err := h.svc.FetchUserCapsules(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer sub.Cancel()

	setStreamHeaders(w)
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case list, ok := <-sub.C:
			if !ok {
				return
			}
			writeEvent(w, flusher, list)
		}
	}
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, payload interface{}) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", b)
	flusher.Flush()
}
