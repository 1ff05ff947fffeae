package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"draftsmith/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// streamFrame is one websocket message. Delta frames carry incremental
// text; the final frame is either done or error.
type streamFrame struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Code   string          `json:"code,omitempty"`
	Result *GenerateResult `json:"result,omitempty"`
}

// registerStream serves incremental text generation. The client sends one
// request frame, receives delta frames as chunks arrive, and may send a
// stop frame to abort. Non-text results fall back to a single done frame.
func registerStream(router chi.Router, svc *service.GenerateService) {
	router.Get("/ws/generate", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		requestID := NewRequestID()
		log := slog.With("request_id", requestID)

		var body GenerateBody
		if err := conn.ReadJSON(&body); err != nil {
			log.Warn("stream request frame unreadable", "error", err)
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The read loop only watches for stop frames; any read error also
		// ends the generation.
		go func() {
			for {
				var frame streamFrame
				if err := conn.ReadJSON(&frame); err != nil {
					cancel()
					return
				}
				if frame.Type == "stop" {
					log.Info("stream stopped by client",
						"document_type", body.DocumentType, "path", body.Path)
					cancel()
					return
				}
			}
		}()

		var mu sync.Mutex
		send := func(frame streamFrame) error {
			mu.Lock()
			defer mu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			return conn.WriteJSON(frame)
		}

		resp, err := svc.Generate(ctx, service.GenerateRequest{
			DocumentType:  body.DocumentType,
			LivePath:      body.Path,
			InstructionID: body.InstructionID,
			Document:      body.Document,
			Options:       body.Options,
			Stream: func(chunk string) error {
				return send(streamFrame{Type: "delta", Text: chunk})
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			apiErr := handleError(err)
			log.Error("stream generation failed",
				"document_type", body.DocumentType, "path", body.Path, "error", err)
			send(streamFrame{Type: "error", Code: errorCode(apiErr), Text: apiErr.Error()})
			return
		}

		result := generateResult(svc, body, resp)
		if err := send(streamFrame{Type: "done", Result: &result}); err != nil {
			log.Warn("stream done frame not delivered", "error", err)
		}
	})
}

func errorCode(err error) string {
	if apiErr, ok := err.(*apiError); ok {
		return apiErr.Body.Code
	}
	return "internal_error"
}
