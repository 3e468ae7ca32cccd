package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/siminyang/aboutxtime/internal/api/respond"
	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/services"
)

type UserHandler struct {
	svc *services.UserService
}

func NewUserHandler(svc *services.UserService) *UserHandler { return &UserHandler{svc: svc} }

func (h *UserHandler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID             string     `json:"id"`
		Email          string     `json:"email"`
		Name           string     `json:"name"`
		AvatarURL      string     `json:"avatarUrl"`
		UserIdentifier string     `json:"userIdentifier"`
		BirthDate      *time.Time `json:"birthDate,omitempty"`
		DeviceToken    string     `json:"deviceToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	u := &model.User{
		ID:             in.ID,
		Email:          in.Email,
		Name:           in.Name,
		AvatarURL:      in.AvatarURL,
		UserIdentifier: in.UserIdentifier,
		BirthDate:      in.BirthDate,
		DeviceToken:    in.DeviceToken,
	}
	out, err := h.svc.UpsertUser(r.Context(), u)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	u, err := h.svc.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u)
}

func (h *UserHandler) GetFriend(w http.ResponseWriter, r *http.Request) {
	friendID := mux.Vars(r)["friendId"]
	f, err := h.svc.FetchFriendData(r.Context(), friendID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, f)
}

func (h *UserHandler) DeleteFriend(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.svc.DeleteFriend(r.Context(), vars["userId"], vars["friendId"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
