package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"gregoryjjb/gpiocount/controller"
)

// createWebsocketHandler streams every controller event as a JSON text
// message, starting with the current state.
func createWebsocketHandler(ctrl *controller.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %s", err), http.StatusInternalServerError)
			return
		}
		defer c.Close(websocket.StatusInternalError, "the sky is falling")

		// We never expect messages from the client
		ctx := c.CloseRead(r.Context())

		unsub, ch := ctrl.Subscribe()
		defer unsub()

		initial := controller.Event{
			Snapshot: ctrl.State(),
			Source:   "state",
			Time:     time.Now(),
		}
		if err := writeJSON(ctx, c, initial); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				c.Close(websocket.StatusNormalClosure, "")
				return
			case msg, ok := <-ch:
				if !ok {
					c.Close(websocket.StatusGoingAway, "shutting down")
					return
				}
				if err := writeJSON(ctx, c, msg); err != nil {
					log.Debug().Err(err).Msg("Websocket write failed")
					return
				}
			}
		}
	}
}

func writeJSON(ctx context.Context, c *websocket.Conn, v any) error {
	js, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeTimeout(ctx, 5*time.Second, c, js)
}

func writeTimeout(ctx context.Context, timeout time.Duration, c *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return c.Write(ctx, websocket.MessageText, msg)
}
