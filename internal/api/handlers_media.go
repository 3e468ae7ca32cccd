package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/siminyang/aboutxtime/internal/api/respond"
	"github.com/siminyang/aboutxtime/internal/blob"
)

// MediaHandler serves media objects for blob adapters that store bytes
// behind the service (GridFS, in-memory). The GCS adapter hands out signed
// URLs instead and does not register this route.
type MediaHandler struct {
	blobs blob.Reader
}

func NewMediaHandler(blobs blob.Reader) *MediaHandler { return &MediaHandler{blobs: blobs} }

func (h *MediaHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]
	rc, contentType, err := h.blobs.Get(r.Context(), path)
	if err != nil {
		respond.WriteNotFound(w, "media not found")
		return
	}
	defer func() { _ = rc.Close() }()
	w.Header().Set("Content-Type", contentType)
	_, _ = io.Copy(w, rc)
}
