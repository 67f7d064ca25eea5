package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"diseasepredict/internal/diagnosis"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// handleWebSocket serves a prediction session: every PredictRequest message
// is answered with exactly one Notification.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()
	s.recorder.WSOpened()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		s.recorder.WSClosed()
	}()

	conn.SetReadLimit(maxBodyBytes)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	session := RequestIDFrom(r.Context())
	log.Info().Str("session", session).Msg("WebSocket session opened")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("session", session).Msg("WebSocket read failed")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var req PredictRequest
		if err := json.Unmarshal(data, &req); err != nil {
			ok := s.reply(conn, Notification{
				Level:     LevelError,
				Message:   "Input Error: malformed message. Details: " + err.Error(),
				RequestID: uuid.NewString(),
				Kind:      diagnosis.KindInput.String(),
			})
			if !ok {
				break
			}
			continue
		}

		ctx := WithRequestID(r.Context(), uuid.NewString())
		n := s.submit(ctx, "ws", req.Disease, req.Values, req.Fields)
		if !s.reply(conn, n) {
			break
		}
	}

	log.Info().Str("session", session).Msg("WebSocket session closed")
}

func (s *Server) reply(conn *websocket.Conn, n Notification) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(n); err != nil {
		log.Error().Err(err).Msg("Failed to send message to WebSocket client")
		return false
	}
	return true
}
