package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"chatstore/pkg/models"
	"chatstore/pkg/utils"
)

func (s *Server) registerMessages(r *mux.Router) {
	r.HandleFunc("/chats/{chatID}/messages", s.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/chats/{chatID}/messages", s.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/chats/{chatID}/messages/{messageID}", s.getMessage).Methods(http.MethodGet)
	r.HandleFunc("/chats/{chatID}/messages/{messageID}", s.editMessage).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/messages/{messageID}", s.deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/chats/{chatID}/messages/{messageID}/reactions", s.react).Methods(http.MethodPost)
	r.HandleFunc("/chats/{chatID}/messages/{messageID}/pin", s.pin).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/messages/{messageID}/urgent", s.urgent).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/messages/{messageID}/lock", s.lock).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/messages/{messageID}/poll", s.linkPoll).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/messages/{messageID}/task", s.attachTask).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatID}/messages/{messageID}/gift", s.attachGift).Methods(http.MethodPost)
	r.HandleFunc("/chats/{chatID}/messages/{messageID}/tip", s.attachTip).Methods(http.MethodPost)
}

type sendMessageRequest struct {
	SenderID    string           `json:"sender_id"`
	ContentType string           `json:"content_type"` // text when empty
	Text        string           `json:"text"`
	AudioURL    string           `json:"audio_url"`
	Duration    float64          `json:"duration"`
	Elements    []map[string]any `json:"elements"`
	Media       map[string]any   `json:"media"`
	Price       float64          `json:"price"`
	Product     map[string]any   `json:"product"`
	Content     map[string]any   `json:"content"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chatID"]
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	var (
		msgID string
		err   error
	)
	switch req.ContentType {
	case models.ContentVoice:
		msgID, err = s.svc.SendVoiceMessage(r.Context(), chatID, req.SenderID, req.AudioURL, req.Duration)
	case models.ContentMixed:
		msgID, err = s.svc.SendMixedMessage(r.Context(), chatID, req.SenderID, req.Elements)
	case models.ContentPaid:
		msgID, err = s.svc.SendPaidMedia(r.Context(), chatID, req.SenderID, req.Media, req.Price)
	case models.ContentProduct:
		msgID, err = s.svc.SendProductRecommendation(r.Context(), chatID, req.SenderID, req.Product)
	case models.ContentExcl:
		msgID, err = s.svc.SendExclusiveContent(r.Context(), chatID, req.SenderID, req.Content)
	default:
		msgID, err = s.svc.SendMessage(r.Context(), chatID, req.SenderID, req.Text)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, map[string]string{"message_id": msgID})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	page, err := s.svc.FetchRecentMessages(r.Context(), mux.Vars(r)["chatID"], r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	type msgOut struct {
		models.Message
		Preview string `json:"preview,omitempty"`
	}
	out := struct {
		Messages []msgOut `json:"messages"`
		Cursor   string   `json:"cursor,omitempty"`
	}{Cursor: page.Cursor}
	for _, m := range page.Messages {
		o := msgOut{Message: m}
		if !m.Deleted() {
			o.Preview = models.RenderPreview(m.ContentType, m.Content)
		}
		out.Messages = append(out.Messages, o)
	}
	utils.JSONWrite(w, http.StatusOK, out)
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, err := s.svc.GetMessage(r.Context(), vars["chatID"], vars["messageID"])
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, m)
}

func (s *Server) editMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content map[string]any `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.EditMessage(r.Context(), vars["chatID"], vars["messageID"], req.Content); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.svc.DeleteMessage(r.Context(), vars["chatID"], vars["messageID"]); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) react(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emoji string `json:"emoji"`
		Count int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.ReactToMessage(r.Context(), vars["chatID"], vars["messageID"], req.Emoji, req.Count); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) pin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pinned bool `json:"pinned"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.PinMessage(r.Context(), vars["chatID"], vars["messageID"], req.Pinned); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) urgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Urgent bool `json:"urgent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.FlagMessageUrgent(r.Context(), vars["chatID"], vars["messageID"], req.Urgent); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) lock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locked bool `json:"locked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.LockMessageReplies(r.Context(), vars["chatID"], vars["messageID"], req.Locked); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) linkPoll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PollID string `json:"poll_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.LinkPollToMessage(r.Context(), vars["chatID"], vars["messageID"], req.PollID); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) attachTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.AttachTaskToMessage(r.Context(), vars["chatID"], vars["messageID"], req.TaskID); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) attachGift(w http.ResponseWriter, r *http.Request) {
	var gift map[string]any
	if err := json.NewDecoder(r.Body).Decode(&gift); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.AttachVirtualGift(r.Context(), vars["chatID"], vars["messageID"], gift); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) attachTip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.AttachTip(r.Context(), vars["chatID"], vars["messageID"], req.Amount, req.Currency); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}
