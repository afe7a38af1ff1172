package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fastchat/internal/middleware"
	"fastchat/internal/models"
	"fastchat/internal/repository"
)

const (
	defaultLimit = 20
	maxLimit     = 100
	maxBodyBytes = 1 << 20
)

// HistoryReader is satisfied by service.HistoryService.
type HistoryReader interface {
	GetHistory(ctx context.Context, chatID uint, limit int) (*models.ChatHistory, error)
}

// Pinger reports whether the database is reachable.
type Pinger func(ctx context.Context) error

type Handler struct {
	Chats    repository.ChatStore
	Messages repository.MessageStore
	History  HistoryReader
	Ping     Pinger
	Log      *zap.Logger
}

type historyQuery struct {
	Limit int `json:"limit" validate:"min=1,max=100"`
}

// InitHandlers mounts the chat API under prefix and the health check at the root.
func InitHandlers(r *mux.Router, h *Handler, prefix string) {
	api := r
	if prefix != "" {
		api = r.PathPrefix(prefix).Subrouter()
	}

	handle(api, "/chats", h.CreateChat, http.MethodPost)
	handle(api, "/chats/{id}/messages", h.CreateMessage, http.MethodPost)
	handle(api, "/chats/{id}", h.GetChat, http.MethodGet)
	handle(api, "/chats/{id}", h.DeleteChat, http.MethodDelete)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	// a subrouter without its own handlers reports a method mismatch as no match
	for _, router := range []*mux.Router{r, api} {
		router.NotFoundHandler = h.unmatched(http.StatusNotFound, "Not Found")
		router.MethodNotAllowedHandler = h.unmatched(http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// unmatched answers requests no route accepted. mux skips router middleware
// for them, so the request id and access log are applied here.
func (h *Handler) unmatched(status int, detail string) http.Handler {
	fn := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, status, detail)
	})
	return middleware.RequestID(middleware.Logging(h.Log)(fn))
}

// handle registers path with and without a trailing slash.
func handle(r *mux.Router, path string, fn http.HandlerFunc, method string) {
	r.HandleFunc(path, fn).Methods(method)
	r.HandleFunc(path+"/", fn).Methods(method)
}

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Title string `json:"title"`
	}
	if !h.decode(w, r, &request) {
		return
	}

	log := h.logger(r)
	log.Info("creating chat", zap.String("title", request.Title))

	chat, err := h.Chats.Create(persistCtx(r), request.Title)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	log.Info("chat created", zap.Uint("chat_id", chat.ID))
	writeJSON(w, http.StatusCreated, chat)
}

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	var request struct {
		Text string `json:"text"`
	}
	if !h.decode(w, r, &request) {
		return
	}

	log := h.logger(r).With(zap.Uint("chat_id", chatID))
	log.Debug("adding message")

	message, err := h.Messages.CreateMessage(persistCtx(r), chatID, request.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	log.Info("message created", zap.Uint("message_id", message.ID))
	writeJSON(w, http.StatusCreated, message)
}

func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	query := historyQuery{Limit: defaultLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, &repository.ValidationError{Fields: []repository.FieldError{
				{Field: "limit", Message: "must be an integer"},
			}})
			return
		}
		query.Limit = limit
	}
	if err := repository.Validate(query); err != nil {
		h.fail(w, r, err)
		return
	}

	log := h.logger(r).With(zap.Uint("chat_id", chatID))
	log.Debug("fetching chat", zap.Int("limit", query.Limit))

	history, err := h.History.GetHistory(persistCtx(r), chatID, query.Limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if history == nil {
		h.fail(w, r, repository.ErrNotFound)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	log := h.logger(r).With(zap.Uint("chat_id", chatID))
	log.Info("deleting chat")

	// messages go in the same transaction
	chat, err := h.Chats.Remove(persistCtx(r), chatID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if chat == nil {
		h.fail(w, r, repository.ErrNotFound)
		return
	}

	log.Info("chat and its messages deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.Ping != nil {
		if err := h.Ping(ctx); err != nil {
			h.logger(r).Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// persistCtx detaches the store call from client cancellation so that a
// started statement completes; the result is discarded if nobody listens.
func persistCtx(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (h *Handler) logger(r *http.Request) *zap.Logger {
	return h.Log.With(zap.String("request_id", middleware.RequestIDFrom(r.Context())))
}

// chatID parses the path id. Anything that is not an integer is a 422;
// an integer no chat can have (zero or negative) is simply not found.
func (h *Handler) chatID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.fail(w, r, &repository.ValidationError{Fields: []repository.FieldError{
			{Field: "id", Message: "must be an integer"},
		}})
		return 0, false
	}
	if id <= 0 || uint64(id) > uint64(^uint(0)) {
		h.fail(w, r, repository.ErrNotFound)
		return 0, false
	}
	return uint(id), true
}

// decode reads a JSON body. An empty body decodes to the zero request so
// that missing fields are reported by validation; a field of the wrong JSON
// type is a validation failure too. Only unparsable bodies are a 400.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		h.fail(w, r, &repository.ValidationError{Fields: []repository.FieldError{
			{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()},
		}})
		return false
	}
	h.logger(r).Warn("invalid request body", zap.Error(err))
	writeError(w, http.StatusBadRequest, "Invalid request body")
	return false
}

// fail maps a domain error onto a response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var validation *repository.ValidationError
	switch {
	case errors.As(err, &validation):
		h.logger(r).Warn("validation failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusUnprocessableEntity, map[string][]repository.FieldError{"detail": validation.Fields})
	case errors.Is(err, repository.ErrNotFound):
		h.logger(r).Warn("chat not found", zap.String("path", r.URL.Path))
		writeError(w, http.StatusNotFound, "Chat not found")
	default:
		h.logger(r).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
