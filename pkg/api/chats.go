package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"chatstore/pkg/chat"
	"chatstore/pkg/models"
	"chatstore/pkg/utils"
)

func (s *Server) registerChats(r *mux.Router) {
	r.HandleFunc("/chats", s.createChat).Methods(http.MethodPost)
	r.HandleFunc("/chats/{chatID}", s.getChat).Methods(http.MethodGet)
	r.HandleFunc("/chats/{chatID}/archive", s.archiveChat).Methods(http.MethodPost)
	r.HandleFunc("/chats/{chatID}/mode", s.updateChatMode).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/access", s.updateChatAccess).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/metadata", s.updateChatMetadata).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/subscription", s.updateSubscriptionFlag).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/tiers", s.updateMembershipTiers).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/roles/{userID}", s.setChatRole).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/join", s.joinChat).Methods(http.MethodPost)

	r.HandleFunc("/users/{userID}/chats", s.listUserChats).Methods(http.MethodGet)
	r.HandleFunc("/users/{userID}/chats", s.upsertUserChat).Methods(http.MethodPut)
	r.HandleFunc("/users/{userID}/chats", s.removeUserChat).Methods(http.MethodDelete)
}

type createChatRequest struct {
	Kind            string            `json:"kind"` // private, chime, group, event
	CreatedBy       string            `json:"created_by"`
	Participants    []string          `json:"participants"`
	Roles           map[string]string `json:"roles"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	CoverImageURL   string            `json:"cover_image_url"`
	Rules           map[string]any    `json:"rules_json"`
	Category        string            `json:"category"`
	Type            string            `json:"type"`
	Mode            string            `json:"mode"`
	MaxParticipants int               `json:"max_participants"`
	EventID         string            `json:"event_id"`
	EventPrice      float64           `json:"event_price"`
	Metadata        map[string]any    `json:"metadata"`
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	base := chat.CreateChatInput{
		CreatedBy:    req.CreatedBy,
		Participants: req.Participants,
		Roles:        req.Roles,
		Name:         req.Name,
		Metadata:     req.Metadata,
	}
	var (
		chatID string
		err    error
	)
	switch req.Kind {
	case "chime":
		chatID, err = s.svc.CreateChimeChat(r.Context(), base, req.Mode, req.MaxParticipants)
	case "group":
		chatID, err = s.svc.CreateGroupChat(r.Context(), chat.GroupChatInput{
			CreateChatInput: base,
			Description:     req.Description,
			CoverImageURL:   req.CoverImageURL,
			Rules:           req.Rules,
			Category:        req.Category,
			Type:            req.Type,
		})
	case "event":
		chatID, err = s.svc.CreateEventChat(r.Context(), chat.EventChatInput{
			CreateChatInput: base,
			Description:     req.Description,
			EventID:         req.EventID,
			EventPrice:      req.EventPrice,
		})
	default:
		chatID, err = s.svc.CreateChat(r.Context(), base)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, map[string]string{"chat_id": chatID})
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetChat(r.Context(), mux.Vars(r)["chatID"])
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, c)
}

func (s *Server) archiveChat(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ArchiveChat(r.Context(), mux.Vars(r)["chatID"]); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (s *Server) updateChatMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode            string `json:"mode"`
		MaxParticipants *int   `json:"max_participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.svc.UpdateChatMode(r.Context(), mux.Vars(r)["chatID"], req.Mode, req.MaxParticipants); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) updateChatAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessLevel string `json:"access_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.svc.UpdateChatAccess(r.Context(), mux.Vars(r)["chatID"], req.AccessLevel); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) updateChatMetadata(w http.ResponseWriter, r *http.Request) {
	var metadata map[string]any
	if err := json.NewDecoder(r.Body).Decode(&metadata); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.svc.UpdateChatMetadata(r.Context(), mux.Vars(r)["chatID"], metadata); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) updateSubscriptionFlag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Required bool `json:"subscription_required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.svc.UpdateChatSubscriptionFlag(r.Context(), mux.Vars(r)["chatID"], req.Required); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) updateMembershipTiers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tiers []string `json:"membership_tiers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.svc.UpdateMembershipTiers(r.Context(), mux.Vars(r)["chatID"], req.Tiers); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) setChatRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.SetChatRole(r.Context(), vars["chatID"], vars["userID"], req.Role); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) joinChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.svc.JoinChat(r.Context(), mux.Vars(r)["chatID"], req.UserID); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listUserChats(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	page, err := s.svc.FetchUserChats(r.Context(), mux.Vars(r)["userID"], r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, page)
}

func (s *Server) upsertUserChat(w http.ResponseWriter, r *http.Request) {
	var ref models.UserChatRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ref.UserID = mux.Vars(r)["userID"]
	if err := s.svc.UpsertUserChat(r.Context(), ref); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) removeUserChat(w http.ResponseWriter, r *http.Request) {
	var ref models.UserChatRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ref.UserID = mux.Vars(r)["userID"]
	if err := s.svc.RemoveUserChat(r.Context(), ref); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}
