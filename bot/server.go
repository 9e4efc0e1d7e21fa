/*
server.go - Webhook HTTP server

PURPOSE:
  Receives chat platform updates over a webhook and feeds them to the
  dispatcher. This is the only inbound surface of the bot.

ROUTER: chi
  Middleware stack: Logger, Recoverer, RequestID, CORS.

ROUTES:
  POST /webhook/{token}  Update intake; token must match the configured one
  GET  /healthz          Liveness probe

SECURITY NOTE:
  The webhook path carries the bot token, which is the standard shared
  secret for this kind of integration. Requests with a wrong token get a
  404, indistinguishable from an unknown path.

SEE ALSO:
  - dispatcher.go: where accepted updates go
  - cmd/bot/main.go: server startup
*/
package bot

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the webhook router.
func NewRouter(token string, d *Dispatcher) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/webhook/{token}", handleWebhook(token, d))

	return r
}

func handleWebhook(token string, d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := chi.URLParam(r, "token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.NotFound(w, r)
			return
		}

		var update Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			slog.Warn("failed to decode update", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		ev, ok := update.Event()
		if !ok {
			// Updates the bot does not handle (edits, stickers, joins) are
			// acknowledged so the platform stops redelivering them.
			w.WriteHeader(http.StatusOK)
			return
		}

		if !d.Dispatch(ev) {
			slog.Warn("event dropped", "chat_id", ev.ChatID, "update_id", update.UpdateID)
		}
		w.WriteHeader(http.StatusOK)
	}
}
