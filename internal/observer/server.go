package observer

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dinoarena/server/internal/persist"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	maxMatches   = 100
)

// Server is the spectator HTTP surface.
type Server struct {
	hub        *Hub
	store      persist.MatchStore // nil when persistence is disabled
	sendBuffer int
	matchID    string
	started    time.Time
	log        *zap.Logger

	upgrader websocket.Upgrader
	http     *http.Server
	ln       net.Listener
}

// Options configures a Server.
type Options struct {
	MatchID    string
	SendBuffer int
}

func NewServer(hub *Hub, store persist.MatchStore, opts Options, log *zap.Logger) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &Server{
		hub:        hub,
		store:      store,
		sendBuffer: opts.SendBuffer,
		matchID:    opts.MatchID,
		started:    time.Now(),
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/matches", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/", s.handleMatches)
		r.Get("/{id}/kills", s.handleKills)
	})
	r.Get("/ws", s.handleWS)
	return r
}

// Start listens on addr and serves in a goroutine.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.http = &http.Server{Handler: s.Routes(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("observer server stopped", zap.Error(err))
		}
	}()
	s.log.Info("observer listening", zap.String("addr", ln.Addr().String()))
	return nil
}

func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type healthResponse struct {
	Status     string `json:"status"`
	Match      string `json:"match"`
	Tick       uint64 `json:"tick"`
	Spectators int    `json:"spectators"`
	Uptime     string `json:"uptime"`
	Store      bool   `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Match:      s.matchID,
		Tick:       uint64(s.hub.Tick()),
		Spectators: s.hub.Spectators(),
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Store:      s.store != nil,
	})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "match store disabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxMatches)
	}
	rows, err := s.store.RecentMatches(r.Context(), limit)
	if err != nil {
		s.log.Error("list matches", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if rows == nil {
		rows = []persist.MatchRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleKills(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "match store disabled")
		return
	}
	id := chi.URLParam(r, "id")
	rows, err := s.store.Kills(r.Context(), id)
	if err != nil {
		s.log.Error("list kills", zap.String("match", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if rows == nil {
		rows = []persist.KillRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleWS streams Batch messages until the client goes away or falls
// behind by more than the send buffer.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sp := &spectator{id: uuid.NewString(), out: make(chan []byte, s.sendBuffer)}
	if !s.hub.join(sp) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
		return
	}
	defer s.hub.leave(sp.id)

	// Reader: only control frames are expected; any error ends the stream.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case b, ok := <-sp.out:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "too slow"), time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
