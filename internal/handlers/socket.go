package handlers

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"

	"github.com/developia-II/feedback-board-backend/internal/realtime"
)

const (
	actionJoin  = "join"
	actionLeave = "leave"
)

// socketMessage is sent by clients to manage room membership.
type socketMessage struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

type socketError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorMessage(msg string) socketError {
	return socketError{Type: "error", Message: msg}
}

// Socket relays hub events for the rooms the client joined. Joining an
// invalid room is answered with an error message; leaving one is ignored.
func (h *Handler) Socket(conn *websocket.Conn) {
	hub := h.registry.GetOrInit()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := hub.Subscribe(ctx)
	if err != nil {
		h.log.Warn("socket subscribe failed", "error", err)
		return
	}

	var writeMu sync.Mutex
	write := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// The subscription closes on hub shutdown; closing the connection
		// unblocks the read loop below.
		defer conn.Close()
		for evt := range sub.Events() {
			if err := write(evt); err != nil {
				h.log.Debug("socket write failed", "error", err)
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg socketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = write(errorMessage("Invalid message"))
			continue
		}

		switch msg.Action {
		case actionJoin:
			if err := sub.Join(msg.Room); err != nil {
				_ = write(errorMessage("Invalid room"))
			}
		case actionLeave:
			if realtime.IsValidRoom(msg.Room) {
				sub.Leave(msg.Room)
			}
		default:
			_ = write(errorMessage("Unknown action"))
		}
	}

	cancel()
	<-done
}
