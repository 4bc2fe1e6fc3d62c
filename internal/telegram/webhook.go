package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/soaringjerry/checkbot/internal/observability"
)

// SecretHeader carries the secret_token given to setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// WebhookHandler accepts update deliveries from Telegram and queues them on d.
// Requests without the expected secret get 401. Updates that carry no message
// are acknowledged and dropped.
func WebhookHandler(d *Dispatcher, secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		got := r.Header.Get(SecretHeader)
		if secret != "" && subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var upd tgbotapi.Update
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBytes)).Decode(&upd); err != nil {
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}
		ev, ok := ToEvent(upd)
		if !ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := d.Submit(r.Context(), upd.UpdateID, ev); err != nil {
			observability.LoggerFromContext(r.Context()).Warn("update not queued",
				"update_id", upd.UpdateID, "error", err)
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}
