package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatstore/pkg/utils"
)

func (s *Server) registerSettings(r *mux.Router) {
	r.HandleFunc("/users/{userID}/settings", s.getSettings).Methods(http.MethodGet)
	r.HandleFunc("/users/{userID}/settings/notifications/{chatID}", s.updateNotifications).Methods(http.MethodPut)
	r.HandleFunc("/users/{userID}/read/{chatID}", s.markRead).Methods(http.MethodPut)
	r.HandleFunc("/users/{userID}/unread/{chatID}", s.unreadCount).Methods(http.MethodGet)
	r.HandleFunc("/users/{userID}/memberships/{chatID}", s.upgradeMembership).Methods(http.MethodPut)
	r.HandleFunc("/users/{userID}/trials/{chatID}", s.startTrial).Methods(http.MethodPost)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.GetUserSettings(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, st)
}

func (s *Server) updateNotifications(w http.ResponseWriter, r *http.Request) {
	var prefs map[string]any
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.UpdateNotificationSettings(r.Context(), vars["userID"], vars["chatID"], prefs); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.MarkMessageRead(r.Context(), vars["userID"], vars["chatID"], req.MessageID); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	n, err := s.svc.GetUnreadCount(r.Context(), vars["userID"], vars["chatID"])
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]int{"unread": n})
}

func (s *Server) upgradeMembership(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.UpgradeMembership(r.Context(), vars["userID"], vars["chatID"], req.Tier); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) startTrial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.StartChatTrial(r.Context(), vars["userID"], vars["chatID"], req.Days); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}
