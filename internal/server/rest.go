package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/goevery/relay/internal/auth"
	"github.com/goevery/relay/internal/handler"
	"github.com/goevery/relay/internal/ierr"
	"github.com/goevery/relay/internal/relay"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PresenceLookup resolves users connected to other relay nodes.
type PresenceLookup interface {
	Lookup(ctx context.Context, userId string) (nodeId string, online bool, err error)
}

type PresenceResponse struct {
	UserId string `json:"userId"`
	Online bool   `json:"online"`
	NodeId string `json:"nodeId,omitempty"`
}

type OnlineUsersResponse struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
	Uptime      int64  `json:"uptime"`
	Connections int    `json:"connections"`
}

type RESTServer struct {
	logger        *zap.Logger
	authenticator *auth.Authenticator
	service       *relay.Service
	startedAt     time.Time

	pushHandler        handler.PushHandlerInterface
	sendMessageHandler *handler.SendMessageHandler
	historyHandler     *handler.HistoryHandler
	presenceLookup     PresenceLookup
}

// NewRESTServer builds the HTTP API. sendMessageHandler, historyHandler and
// presenceLookup may be nil, in which case their routes are not served or
// fall back to the local registry.
func NewRESTServer(
	logger *zap.Logger,
	authenticator *auth.Authenticator,
	service *relay.Service,
	pushHandler handler.PushHandlerInterface,
	sendMessageHandler *handler.SendMessageHandler,
	historyHandler *handler.HistoryHandler,
	presenceLookup PresenceLookup,
) *RESTServer {
	return &RESTServer{
		logger:             logger,
		authenticator:      authenticator,
		service:            service,
		startedAt:          time.Now(),
		pushHandler:        pushHandler,
		sendMessageHandler: sendMessageHandler,
		historyHandler:     historyHandler,
		presenceLookup:     presenceLookup,
	}
}

func (s *RESTServer) Register(router *mux.Router) {
	router.HandleFunc("/api/health", s.health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/push", s.cors(s.requireAPIKey(s.push))).Methods("POST", "OPTIONS")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.requireJWT)

	api.HandleFunc("/presence", s.requireAdmin(s.onlineUsers)).Methods("GET")
	api.HandleFunc("/presence/{userId}", s.userPresence).Methods("GET")

	if s.sendMessageHandler != nil {
		api.HandleFunc("/messages", s.sendMessage).Methods("POST")
	}

	if s.historyHandler != nil {
		api.HandleFunc("/messages/unread-count", s.unreadCount).Methods("GET")
		api.HandleFunc("/messages/conversation/{userId}", s.conversation).Methods("GET")
		api.HandleFunc("/messages/conversation/{userId}/read", s.markConversationRead).Methods("PUT")
	}
}

func (s *RESTServer) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			return
		}

		next(w, r)
	}
}

func (s *RESTServer) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authentication, err := s.authenticator.AuthenticateAPIKey(bearerToken(r))
		if err != nil {
			s.writeError(w, err)
			return
		}

		next(w, r.WithContext(auth.WithAuthentication(r.Context(), authentication)))
	}
}

func (s *RESTServer) requireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authentication, err := s.authenticator.AuthenticateJWT(bearerToken(r))
		if err != nil {
			s.writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithAuthentication(r.Context(), authentication)))
	})
}

// requireAdmin runs after requireJWT and limits the route to admins.
func (s *RESTServer) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authentication, ok := auth.AuthenticationFromContext(r.Context())
		if !ok || !authentication.IsAdmin() {
			s.writeError(w, ierr.New(ierr.ErrorCodePermissionDenied, errors.New("admin access required")))
			return
		}

		next(w, r)
	}
}

func (s *RESTServer) health(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Timestamp:   now.UnixMilli(),
		Uptime:      int64(now.Sub(s.startedAt).Seconds()),
		Connections: len(s.service.OnlineUsers()),
	})
}

func (s *RESTServer) push(w http.ResponseWriter, r *http.Request) {
	var pushRequest handler.PushRequest
	if !s.decodeBody(w, r, &pushRequest) {
		return
	}

	pushResponse, err := s.pushHandler.Handle(r.Context(), pushRequest)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, pushResponse)
}

func (s *RESTServer) onlineUsers(w http.ResponseWriter, r *http.Request) {
	users := s.service.OnlineUsers()

	s.writeJSON(w, http.StatusOK, OnlineUsersResponse{
		Users: users,
		Count: len(users),
	})
}

func (s *RESTServer) userPresence(w http.ResponseWriter, r *http.Request) {
	userId := mux.Vars(r)["userId"]

	response := PresenceResponse{
		UserId: userId,
		Online: s.service.IsUserOnline(userId),
	}

	if !response.Online && s.presenceLookup != nil {
		nodeId, online, err := s.presenceLookup.Lookup(r.Context(), userId)
		if err != nil {
			s.logger.Warn("presence lookup failed",
				zap.String("userId", userId),
				zap.Error(err))
		} else {
			response.Online = online
			response.NodeId = nodeId
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *RESTServer) sendMessage(w http.ResponseWriter, r *http.Request) {
	var sendMessageRequest handler.SendMessageRequest
	if !s.decodeBody(w, r, &sendMessageRequest) {
		return
	}

	sendMessageResponse, err := s.sendMessageHandler.Handle(r.Context(), sendMessageRequest)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, sendMessageResponse)
}

func (s *RESTServer) conversation(w http.ResponseWriter, r *http.Request) {
	req := handler.ConversationRequest{
		UserId: mux.Vars(r)["userId"],
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid limit")))
			return
		}

		req.Limit = limit
	}

	messages, err := s.historyHandler.Conversation(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messages)
}

func (s *RESTServer) markConversationRead(w http.ResponseWriter, r *http.Request) {
	response, err := s.historyHandler.MarkConversationRead(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *RESTServer) unreadCount(w http.ResponseWriter, r *http.Request) {
	response, err := s.historyHandler.UnreadCount(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *RESTServer) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid request body")))
		return false
	}

	return true
}

func (s *RESTServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *RESTServer) writeError(w http.ResponseWriter, err error) {
	var handlerErr ierr.Error
	if !errors.As(err, &handlerErr) {
		s.logger.Error("error in rest handler", zap.Error(err))

		handlerErr = ierr.New(ierr.ErrorCodeInternal, errors.New("internal error"))
	}

	s.writeJSON(w, httpStatus(handlerErr.Code), handlerErr)
}

func httpStatus(code ierr.ErrorCode) int {
	switch code {
	case ierr.ErrorCodeInvalidArgument:
		return http.StatusBadRequest
	case ierr.ErrorCodeNotFound:
		return http.StatusNotFound
	case ierr.ErrorCodeUnauthenticated:
		return http.StatusUnauthorized
	case ierr.ErrorCodePermissionDenied:
		return http.StatusForbidden
	case ierr.ErrorCodeResourceExhausted:
		return http.StatusTooManyRequests
	case ierr.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(r *http.Request) string {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

	return strings.TrimSpace(token)
}
