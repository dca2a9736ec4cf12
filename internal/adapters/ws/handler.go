package ws

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/okian/weekgrid/pkg/logger"
)

// Handler upgrades requests and runs them as hub clients.
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			hub.logger.Warn(r.Context(), "websocket accept failed", logger.Error(err))
			return
		}
		defer conn.CloseNow() //nolint:errcheck // connection already finished

		NewClient(hub, conn).Run(r.Context())
	}
}
