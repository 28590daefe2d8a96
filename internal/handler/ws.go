package handler

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

const wsGreeting = "Connected to WebSocket server"

// WebSocket возвращает эндпоинт, который приветствует клиента и подтверждает получение каждого сообщения.
func (h *Handler) WebSocket() http.Handler {
	return websocket.Server{Handler: h.echo}
}

func (h *Handler) echo(ws *websocket.Conn) {
	defer ws.Close()

	h.logger.Info("websocket connection established", zap.String("remote_addr", ws.Request().RemoteAddr))

	if err := websocket.Message.Send(ws, wsGreeting); err != nil {
		h.logger.Warn("websocket greeting failed", zap.Error(err))
		return
	}

	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("websocket receive failed", zap.Error(err))
			}
			return
		}

		h.logger.Debug("websocket message received", zap.Int("bytes", len(msg)))
		if err := websocket.Message.Send(ws, "received: "+msg); err != nil {
			h.logger.Warn("websocket send failed", zap.Error(err))
			return
		}
	}
}
