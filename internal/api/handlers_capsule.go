package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/siminyang/aboutxtime/internal/api/respond"
	"github.com/siminyang/aboutxtime/internal/delivery"
	"github.com/siminyang/aboutxtime/internal/lifecycle"
	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/services"
)

type CapsuleHandler struct {
	svc *services.CapsuleService
}

func NewCapsuleHandler(svc *services.CapsuleService) *CapsuleHandler {
	return &CapsuleHandler{svc: svc}
}

func (h *CapsuleHandler) CreateCapsule(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CreatorID string `json:"creatorId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	c, err := h.svc.CreateCapsule(r.Context(), in.CreatorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, c)
}

type submitRequest struct {
	CapsuleID   string `json:"capsuleId,omitempty"`
	CreatorID   string `json:"creatorId"`
	CreatorName string `json:"creatorName"`
	Recipient   string `json:"recipient"`

	Text     string `json:"text"`
	FromWhom string `json:"fromWhom"`
	ToWhom   string `json:"toWhom"`

	// Media is carried base64-encoded and staged to local files before the
	// upload fan-out.
	ImageData string `json:"imageData,omitempty"`
	AudioData string `json:"audioData,omitempty"`
	VideoData string `json:"videoData,omitempty"`

	OpenDate         time.Time       `json:"openDate"`
	Location         *model.Location `json:"location,omitempty"`
	IsAnonymous      bool            `json:"isAnonymous"`
	IsLocationLocked bool            `json:"isLocationLocked"`
	IsShared         bool            `json:"isShared"`
	EmotionTagLabels []string        `json:"emotionTagLabels,omitempty"`
	ImageTagLabels   []int           `json:"imageTagLabels,omitempty"`
}

func (h *CapsuleHandler) SubmitCapsule(w http.ResponseWriter, r *http.Request) {
	var in submitRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}

	d := delivery.Draft{
		CapsuleID:        in.CapsuleID,
		CreatorID:        in.CreatorID,
		CreatorName:      in.CreatorName,
		Recipient:        in.Recipient,
		Text:             in.Text,
		FromWhom:         in.FromWhom,
		ToWhom:           in.ToWhom,
		OpenDate:         in.OpenDate,
		Location:         in.Location,
		IsAnonymous:      in.IsAnonymous,
		IsLocationLocked: in.IsLocationLocked,
		IsShared:         in.IsShared,
		EmotionTagLabels: in.EmotionTagLabels,
		ImageTagLabels:   in.ImageTagLabels,
	}

	staged, err := stageMedia(&d, in)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	// On success Submit removes the staged files itself; this sweep covers
	// the failure paths.
	defer cleanupStaged(staged)

	c, err := h.svc.SubmitCapsule(r.Context(), d)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, c)
}

// stageMedia decodes the base64 payloads into temp files referenced by the
// draft. It returns every path written for later cleanup.
func stageMedia(d *delivery.Draft, in submitRequest) ([]string, error) {
	var staged []string
	stage := func(data, pattern string, dest *string) error {
		if data == "" {
			return nil
		}
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return err
		}
		f, err := os.CreateTemp("", pattern)
		if err != nil {
			return err
		}
		if _, err := f.Write(raw); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		*dest = f.Name()
		staged = append(staged, f.Name())
		return nil
	}
	if err := stage(in.ImageData, "capsule-*.jpg", &d.ImageFile); err != nil {
		cleanupStaged(staged)
		return nil, err
	}
	if err := stage(in.AudioData, "capsule-*.m4a", &d.AudioFile); err != nil {
		cleanupStaged(staged)
		return nil, err
	}
	if err := stage(in.VideoData, "capsule-*.mp4", &d.VideoFile); err != nil {
		cleanupStaged(staged)
		return nil, err
	}
	return staged, nil
}

func cleanupStaged(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", p).Msg("remove staged media file")
		}
	}
}

func (h *CapsuleHandler) GetCapsule(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCapsule(r.Context(), mux.Vars(r)["capsuleId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, c)
}

func (h *CapsuleHandler) OpenCapsule(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID    string   `json:"userId"`
		Latitude  *float64 `json:"latitude,omitempty"`
		Longitude *float64 `json:"longitude,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	var pos *lifecycle.Position
	if in.Latitude != nil && in.Longitude != nil {
		pos = &lifecycle.Position{Latitude: *in.Latitude, Longitude: *in.Longitude}
	}
	c, err := h.svc.OpenCapsule(r.Context(), mux.Vars(r)["capsuleId"], in.UserID, pos)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, c)
}

func (h *CapsuleHandler) AddReply(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID string `json:"userId"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	reply, err := h.svc.AddReply(r.Context(), mux.Vars(r)["capsuleId"], in.UserID, in.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, reply)
}

func (h *CapsuleHandler) DeleteCapsule(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCapsule(r.Context(), mux.Vars(r)["capsuleId"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CapsuleHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	capsules, err := h.svc.ListReceivedCapsules(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if capsules == nil {
		capsules = []*model.Capsule{}
	}
	respond.WriteJSON(w, http.StatusOK, capsules)
}

func (h *CapsuleHandler) PendingTray(w http.ResponseWriter, r *http.Request) {
	capsules, err := h.svc.PendingCapsules(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if capsules == nil {
		capsules = []*model.Capsule{}
	}
	respond.WriteJSON(w, http.StatusOK, capsules)
}

func (h *CapsuleHandler) OpenedByAge(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.OpenedCapsulesByAge(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, groups)
}

func (h *CapsuleHandler) Search(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.SearchCapsules(r.Context(), mux.Vars(r)["userId"], r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, groups)
}
