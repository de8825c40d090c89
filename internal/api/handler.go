package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"

	"production-ops-backend/internal/mw"
	"production-ops-backend/internal/notification"
	"production-ops-backend/internal/sequencer"
	"production-ops-backend/internal/store"
)

// Notifier queues line notices for delivery.
type Notifier interface {
	Dispatch(ctx context.Context, notice notification.LineNotice) error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store             store.Store
	sequencer         *sequencer.Sequencer
	notifier          Notifier
	webpush           *webpush.Options
	cache             *mw.ResponseCache
	autoCreateDefault bool
}

// NewHandler creates a new API handler. notifier and webpushOptions may be nil
// when push notifications are not configured; cache may be nil to serve
// line listings uncached.
func NewHandler(s store.Store, seq *sequencer.Sequencer, notifier Notifier, webpushOptions *webpush.Options, cache *mw.ResponseCache, autoCreateDefault bool) *Handler {
	return &Handler{
		store:             s,
		sequencer:         seq,
		notifier:          notifier,
		webpush:           webpushOptions,
		cache:             cache,
		autoCreateDefault: autoCreateDefault,
	}
}
