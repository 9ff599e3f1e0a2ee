package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/shiftline/notifier/gateway"
	"github.com/shiftline/notifier/models"
)

// Listen dials the delivery gateway and feeds every pushed notification
// into the mirror until the context is canceled or the connection drops.
// Push is a latency optimization only; the caller recovers missed events
// with the next LoadSnapshot.
func (m *Mirror) Listen(ctx context.Context, wsURL, token string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL+"?token="+token, nil)
	if err != nil {
		return fmt.Errorf("dialing gateway: %w", err)
	}

	// Unblock the read loop on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var msg gateway.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Event != gateway.EventNotification {
			continue
		}

		raw, err := json.Marshal(msg.Data)
		if err != nil {
			continue
		}
		var notif models.Notification
		if err := json.Unmarshal(raw, &notif); err != nil {
			continue
		}

		m.OnPush(models.FeedItemFromNotification(notif))
	}
}
