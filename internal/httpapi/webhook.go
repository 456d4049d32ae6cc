package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/finzap/finzap/internal/whatsapp"
)

// Queue receives flattened inbound messages for asynchronous processing.
type Queue interface {
	Submit(in whatsapp.Inbound) error
}

// WebhookHandler serves the Meta Cloud API webhook endpoint: the GET
// verification handshake and POST message delivery.
type WebhookHandler struct {
	verifyToken string
	queue       Queue
}

func NewWebhookHandler(verifyToken string, queue Queue) *WebhookHandler {
	return &WebhookHandler{verifyToken: verifyToken, queue: queue}
}

// Register mounts the webhook routes on mux.
func (h *WebhookHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /webhook", h.verify)
	mux.HandleFunc("POST /webhook", h.receive)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// verify implements the subscription handshake: echo hub.challenge back when
// the verify token matches.
func (h *WebhookHandler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	slog.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
	http.Error(w, "forbidden", http.StatusForbidden)
}

// receive acknowledges delivery as soon as every message is enqueued. Actual
// processing happens on the worker pool; Meta retries on any non-2xx, so a
// full queue answers 503 to get the batch redelivered.
func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	var payload whatsapp.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("webhook payload decode failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, in := range payload.Flatten() {
		if err := h.queue.Submit(in); err != nil {
			slog.Error("enqueue failed", "wamid", in.WAMID, "error", err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
