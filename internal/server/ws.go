// File: internal/server/ws.go
// Description: the per-connection websocket protocol. Each connection
// owns one session and one orchestrator; incoming transcripts are
// handled on their own goroutines so a new utterance can supersede the
// one in flight. Events flow out through a single writer goroutine.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/audit"
	"github.com/guidelight-ai/guidelight/internal/copilot"
)

// clientMessage is the inbound wire format.
type clientMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// outboundBuffer bounds the per-connection event queue. A slow client
// loses events rather than stalling the turn.
const outboundBuffer = 64

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range s.cfg.AllowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// handleWS runs one session connection to completion.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	orch, closer, err := s.factory()
	if err != nil {
		s.logger.Error("Failed to build session orchestrator", zap.Error(err))
		return
	}
	if closer != nil {
		defer closer()
	}

	logger := s.logger.With(zap.String("session_id", orch.Session().ID()))
	logger.Info("Session connected", zap.String("remote", r.RemoteAddr))

	connCtx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan schemas.Event, outboundBuffer)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(connCtx, conn, events, logger)
	}()

	emit := func(ev schemas.Event) {
		select {
		case events <- ev:
		default:
			logger.Warn("Dropping event for slow client", zap.String("type", string(ev.Type)))
		}
	}

	perMinute := s.cfg.TranscriptPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	burst := s.cfg.TranscriptBurst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perMinute/60.0), burst)

	emit(schemas.StatusEvent("Connected. How can I help?", nil))

	s.readLoop(connCtx, conn, orch, limiter, emit, logger)

	// Turn goroutines may still hold emit; the channel is never closed,
	// they just write into the buffer nobody drains.
	cancel()
	<-writerDone
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	logger.Info("Session disconnected")
}

// readLoop consumes client messages until the connection drops.
func (s *Server) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	orch *copilot.Orchestrator,
	limiter *rate.Limiter,
	emit func(schemas.Event),
	logger *zap.Logger,
) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Connection closed unexpectedly", zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			emit(schemas.StatusEvent("I couldn't read that message.", nil))
			continue
		}
		if msg.Type != "user_transcript" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		if !limiter.Allow() {
			emit(schemas.ResponseEvent("You're going a little fast for me. Give me a moment, then try again."))
			continue
		}

		// Each transcript gets its own goroutine so the next one can
		// supersede it; the orchestrator serializes the actual turns.
		transcript := msg.Text
		go func() {
			summary, err := orch.HandleTranscript(ctx, transcript, emit)
			if err != nil {
				logger.Debug("Turn ended early", zap.Error(err))
				return
			}
			s.recordTurn(ctx, orch.Session().ID(), transcript, summary, logger)
		}()
	}
}

// writeLoop is the connection's single writer.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan schemas.Event, logger *zap.Logger) {
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	for {
		select {
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				logger.Error("Failed to encode event", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Warn("Write failed, closing connection", zap.Error(err))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// recordTurn appends the finished turn to the audit trail. It reads only
// the turn's own summary; the live session may already belong to a
// superseding turn by the time this runs.
func (s *Server) recordTurn(ctx context.Context, sessionID, transcript string, summary copilot.TurnSummary, logger *zap.Logger) {
	if s.audit == nil {
		return
	}
	outcome := "completed"
	if summary.AwaitingConfirmation {
		outcome = "awaiting_confirmation"
	}
	s.audit.RecordTurn(ctx, audit.TurnRecord{
		SessionID:  sessionID,
		Transcript: transcript,
		ActionKind: lastActionKind(summary.View),
		ActionURL:  summary.View.LastURL,
		RiskLevel:  summary.View.LastRiskLevel,
		Outcome:    outcome,
	})
	logger.Debug("Turn audited")
}

// lastActionKind recovers the kind of the most recent executed action
// from its history signature.
func lastActionKind(view schemas.SessionView) schemas.ActionKind {
	if len(view.ActionHistory) == 0 {
		return schemas.ActionNoop
	}
	sig := view.ActionHistory[len(view.ActionHistory)-1]
	kind, _, _ := strings.Cut(sig, "|")
	return schemas.ActionKind(kind)
}
