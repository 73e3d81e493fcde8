package clients

import (
	"context"
	"fmt"

	ws "tripsplit/internal/transport/websocket"
)

// WebSocketClient pushes change and export notifications to members.
// Delivery is best effort; the engine never depends on it for
// correctness.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

// NotifyPaymentChanged tells each trip member that the trip's payment
// state changed and should be re-read. event is one of
// payment_created, payment_updated, payment_deleted, split_settled.
func (c *WebSocketClient) NotifyPaymentChanged(ctx context.Context, memberIDs []string, tripID, paymentID, event string) error {
	if c.hub == nil {
		return nil
	}

	for _, memberID := range memberIDs {
		message := &ws.Message{
			Type:    event,
			Channel: fmt.Sprintf("trip_payments#%s", tripID),
			Data: map[string]any{
				"trip_id":    tripID,
				"payment_id": paymentID,
			},
		}
		c.hub.Broadcast(memberID, message)
	}
	return nil
}

func (c *WebSocketClient) NotifyExportProgress(ctx context.Context, memberID, exportID string, progress float64, stage string) error {
	if c.hub == nil {
		return nil
	}

	data := map[string]any{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	message := &ws.Message{
		Type:    "export_progress",
		Channel: fmt.Sprintf("export_progress#%s", memberID),
		Data:    data,
	}

	c.hub.Broadcast(memberID, message)
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(ctx context.Context, memberID, exportID, url, filename string) error {
	if c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "export_complete",
		Channel: fmt.Sprintf("export_complete#%s", memberID),
		Data: map[string]any{
			"id":        exportID,
			"url":       url,
			"filename":  filename,
			"member_id": memberID,
		},
	}

	c.hub.Broadcast(memberID, message)
	return nil
}

// NotifyExportFailed notifies a member that an export failed.
func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, memberID, exportID, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "export_failed",
		Channel: fmt.Sprintf("export_failed#%s", memberID),
		Data: map[string]any{
			"id":        exportID,
			"message":   errMsg,
			"member_id": memberID,
		},
	}

	c.hub.Broadcast(memberID, message)
	return nil
}
