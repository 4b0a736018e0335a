package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bhashavox/bhashavox/internal/coach"
	"github.com/bhashavox/bhashavox/internal/ollama"
	"github.com/bhashavox/bhashavox/internal/protocol"
)

const (
	wsReadLimit     = 1 << 20
	wsReadDeadline  = 120 * time.Second
	wsWriteDeadline = 10 * time.Second
)

// handleChatWS serves a websocket chat session. Messages are processed in
// order on the read loop, so writes stay single-threaded.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.TurnEvents.WithLabelValues("ws_connected").Inc()
	defer s.metrics.TurnEvents.WithLabelValues("ws_disconnected").Inc()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	write := func(msg any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
		return conn.WriteJSON(msg) == nil
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			if !write(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			}) {
				return
			}
			continue
		}

		switch msg := parsed.(type) {
		case protocol.ChatMessage:
			if !write(s.runChatTurn(r, msg)) {
				return
			}
		case protocol.ClientControl:
			if !write(s.runControl(r, msg)) {
				return
			}
		}
	}
}

func (s *Server) runChatTurn(r *http.Request, msg protocol.ChatMessage) any {
	res, err := s.engine.HandleTurn(r.Context(), msg.ConversationID, msg.Text)
	if err != nil {
		return protocol.ErrorEvent{
			Type:           protocol.TypeErrorEvent,
			ConversationID: msg.ConversationID,
			Code:           wsErrorCode(err),
			Retryable:      errors.Is(err, ollama.ErrTimeout) || errors.Is(err, ollama.ErrUnavailable),
			Detail:         err.Error(),
		}
	}
	return protocol.CoachReply{
		Type:            protocol.TypeCoachReply,
		ConversationID:  res.ConversationID,
		Corrected:       res.Corrected,
		Explanation:     res.Explanation,
		Reply:           res.Reply,
		CorrectionsMade: res.CorrectionsMade,
		Level:           string(res.Proficiency.Level),
	}
}

func (s *Server) runControl(r *http.Request, msg protocol.ClientControl) any {
	switch msg.Action {
	case "stats":
		stats, err := s.engine.Stats(msg.ConversationID)
		if err != nil {
			return protocol.ErrorEvent{
				Type:           protocol.TypeErrorEvent,
				ConversationID: msg.ConversationID,
				Code:           wsErrorCode(err),
				Detail:         err.Error(),
			}
		}
		return statsSnapshot{
			Type:           protocol.TypeStatsSnapshot,
			ConversationID: msg.ConversationID,
			Stats:          stats,
		}
	case "reset":
		if err := s.engine.Reset(r.Context(), msg.ConversationID); err != nil {
			return protocol.ErrorEvent{
				Type:           protocol.TypeErrorEvent,
				ConversationID: msg.ConversationID,
				Code:           wsErrorCode(err),
				Detail:         err.Error(),
			}
		}
		return protocol.SystemEvent{
			Type:           protocol.TypeSystemEvent,
			ConversationID: msg.ConversationID,
			Code:           "conversation_reset",
		}
	default:
		return protocol.ErrorEvent{
			Type:           protocol.TypeErrorEvent,
			ConversationID: msg.ConversationID,
			Code:           "unsupported_action",
			Detail:         "action must be stats or reset",
		}
	}
}

type statsSnapshot struct {
	Type           protocol.MessageType `json:"type"`
	ConversationID string               `json:"conversation_id"`
	Stats          coach.Stats          `json:"stats"`
}

func wsErrorCode(err error) string {
	switch {
	case errors.Is(err, coach.ErrEmptyUtterance):
		return "empty_message"
	case errors.Is(err, ollama.ErrTimeout):
		return "backend_timeout"
	case errors.Is(err, ollama.ErrUnavailable):
		return "backend_unavailable"
	default:
		return "internal_error"
	}
}
