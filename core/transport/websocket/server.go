package websocket

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"

	gorilla "github.com/gorilla/websocket"
	orchestration "github.com/koscakluka/ema-chef/core"
	"github.com/koscakluka/ema-chef/core/audio"
	"github.com/koscakluka/ema-chef/core/frames"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

type ServerOption func(*Server)

// WithAllowedOrigins restricts which browser origins may open a session. All
// origins are allowed when none are given.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) { s.allowedOrigins = append(s.allowedOrigins, origins...) }
}

// WithInputEncoding describes the PCM audio clients send.
func WithInputEncoding(encodingInfo audio.EncodingInfo) ServerOption {
	return func(s *Server) {
		if !encodingInfo.IsZero() {
			s.inputEncoding = encodingInfo
		}
	}
}

func WithSamplerOptions(opts ...frames.SamplerOption) ServerOption {
	return func(s *Server) { s.samplerOptions = append(s.samplerOptions, opts...) }
}

func WithMaxMessageBytes(limit int64) ServerOption {
	return func(s *Server) {
		if limit > 0 {
			s.maxMessageBytes = limit
		}
	}
}

// Server upgrades GET /session?user_id=... to a websocket and runs one
// session per connection.
type Server struct {
	newSession      orchestration.SessionFactory
	allowedOrigins  []string
	inputEncoding   audio.EncodingInfo
	samplerOptions  []frames.SamplerOption
	maxMessageBytes int64

	upgrader gorilla.Upgrader
	active   atomic.Int64
}

func NewServer(newSession orchestration.SessionFactory, opts ...ServerOption) *Server {
	s := &Server{
		newSession:      newSession,
		inputEncoding:   audio.GetDefaultEncodingInfo(),
		maxMessageBytes: defaultMaxMessageBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = gorilla.Upgrader{CheckOrigin: s.originAllowed}
	return s
}

// ActiveSessions returns the number of connected sessions.
func (s *Server) ActiveSessions() int {
	return int(s.active.Load())
}

func (s *Server) originAllowed(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.allowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("failed to upgrade session connection", "error", err)
		return
	}
	ws.SetReadLimit(s.maxMessageBytes)

	s.active.Add(1)
	defer s.active.Add(-1)
	s.serve(r.Context(), newConn(ws), userID)
}

func (s *Server) serve(ctx context.Context, conn *Conn, userID string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.close()

	ctx, span := tracer.Start(ctx, "websocket session")
	defer span.End()
	span.SetAttributes(attribute.String("session.user_id", userID))

	o := s.newSession(userID,
		orchestration.WithPublisher(conn),
		orchestration.WithEventHandler(conn),
		orchestration.WithFrameSource(conn.Feed(), s.samplerOptions...),
		orchestration.WithInputEncoding(s.inputEncoding),
	)
	defer o.Close()

	if err := o.Orchestrate(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("failed to start session", "user_id", userID, "error", err)
		return
	}
	logger.Info("session connected", "user_id", userID, "active_sessions", s.ActiveSessions())

	var workers errgroup.Group
	workers.Go(func() error {
		defer cancel()
		err := conn.readLoop(ctx, o)
		// Flush the event channel while the writer still runs.
		o.Close()
		return err
	})
	workers.Go(func() error {
		defer conn.close()
		defer cancel()
		return conn.writeLoop(ctx)
	})

	if err := workers.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("session ended with transport failure", "user_id", userID, "error", err)
		return
	}
	logger.Info("session disconnected", "user_id", userID)
}
