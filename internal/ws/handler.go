package ws

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

const localIncidentID = "incident_id"

// Handler upgrades the connection and subscribes it to the incident
// resolved by UpgradeMiddleware.
func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		incidentID, ok := c.Locals(localIncidentID).(string)
		if !ok || incidentID == "" {
			_ = c.Close()
			return
		}

		client := &Client{
			hub:        hub,
			conn:       c,
			incidentID: incidentID,
			send:       make(chan []byte, 64),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = c.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// IncidentChecker tells whether an incident can be followed live.
type IncidentChecker interface {
	Watchable(ctx context.Context, incidentID string) error
}

// UpgradeMiddleware rejects plain HTTP requests before the upgrade, and
// incidents that are unknown, closed or expired.
func UpgradeMiddleware(incidents IncidentChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		incidentID := c.Params("incident_id")
		if !domain.ValidIncidentID(incidentID) {
			return domain.ErrIncidentNotFound
		}
		if err := incidents.Watchable(c.UserContext(), incidentID); err != nil {
			return err
		}

		c.Locals(localIncidentID, incidentID)
		return c.Next()
	}
}
