// Package httpapi exposes the conversation over a small JSON API.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"salyqbot/internal/conversation"
	"salyqbot/internal/llm"
	"salyqbot/internal/logging"
)

const maxBodyBytes = 28 << 20

type Conversation interface {
	Handle(ctx context.Context, in conversation.Inbound, r conversation.Replier) error
	History(ctx context.Context, userID int64) (string, error)
	Clear(ctx context.Context, userID int64) (string, error)
}

type MessageRequest struct {
	Text        string `json:"text"`
	ImageBase64 string `json:"image_base64,omitempty"`
	MIMEType    string `json:"mime_type,omitempty"`
}

type MessageResponse struct {
	Reply string `json:"reply"`
}

type HistoryResponse struct {
	UserID  int64  `json:"user_id"`
	History string `json:"history"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type handler struct {
	conv Conversation
}

// NewRouter serves /healthz openly and everything under /v1 behind the
// bearer token.
func NewRouter(conv Conversation, apiToken string) http.Handler {
	h := &handler{conv: conv}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Route("/v1/users/{id}", func(r chi.Router) {
		r.Use(bearerAuth(apiToken))
		r.Get("/history", h.getHistory)
		r.Delete("/history", h.deleteHistory)
		r.Post("/messages", h.postMessage)
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	blob, err := h.conv.History(r.Context(), userID)
	if err != nil {
		logging.L().Error("read history", zap.Int64("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResp("STORAGE_UNAVAILABLE", conversation.StorageUnavailable, r))
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{UserID: userID, History: blob})
}

func (h *handler) deleteHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	outcome, err := h.conv.Clear(r.Context(), userID)
	if err != nil {
		logging.L().Error("clear history", zap.Int64("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResp("STORAGE_UNAVAILABLE", conversation.StorageUnavailable, r))
		return
	}
	if outcome == conversation.ClearNotFound {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", outcome, r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": outcome})
}

func (h *handler) postMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	in := conversation.Inbound{UserID: userID, Text: req.Text}
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "image_base64 is not valid base64", r))
			return
		}
		in.Image = &llm.Image{MIMEType: req.MIMEType, Data: data}
	}

	var reply string
	err := h.conv.Handle(r.Context(), in, conversation.ReplyFunc(func(_ context.Context, text string) error {
		reply = text
		return nil
	}))
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "text or image_base64 is required", r))
		return
	case reply == conversation.StorageUnavailable:
		writeJSON(w, http.StatusServiceUnavailable, MessageResponse{Reply: reply})
		return
	case err != nil && reply == "":
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Reply: reply})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid user ID", r))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) ErrorResponse {
	return ErrorResponse{
		Error: APIError{
			Code:      code,
			Message:   message,
			RequestID: chiMiddleware.GetReqID(r.Context()),
		},
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logging.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
