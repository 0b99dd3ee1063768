package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Serve upgrades the request and streams groupID's notifications to it until
// the connection closes. Callers must authorize access to the group first.
// originPatterns restricts cross-origin upgrades; empty allows same-origin only.
func Serve(w http.ResponseWriter, r *http.Request, hub *Hub, groupID int64, originPatterns []string, logger *slog.Logger) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		logger.Warn("websocket accept", "group_id", groupID, "error", err)
		return
	}
	defer conn.CloseNow()

	NewClient(hub, conn, groupID).Run(r.Context())
}
