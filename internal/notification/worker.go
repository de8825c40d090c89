package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"production-ops-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// LineNotice tells the subscribers of a line that new orders were queued on it.
type LineNotice struct {
	RunID  string
	LineID string
	Orders int
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan LineNotice
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan LineNotice, size*8),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case notice := <-wp.jobs:
			log.Printf("Worker %d processing line %s (run %s)", id, notice.LineID, notice.RunID)
			wp.sendNotificationsForLine(ctx, notice)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a notice. It gives up when ctx ends before the queue has room.
func (wp *WorkerPool) Dispatch(ctx context.Context, notice LineNotice) error {
	select {
	case wp.jobs <- notice:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan LineNotice {
	return wp.jobs
}

func (wp *WorkerPool) sendNotificationsForLine(ctx context.Context, notice LineNotice) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_line_mapping slm ON slm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("slm.production_line_id = ?", notice.LineID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for line %s: %v", notice.LineID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for line %s", len(subscriptions), notice.LineID)

	var line model.ProductionLine
	lineLabel := notice.LineID
	if err := wp.db.WithContext(ctx).
		Select("name").
		First(&line, "id = ?", notice.LineID).Error; err != nil {
		log.Printf("Error fetching line %s: %v", notice.LineID, err)
	} else if line.Name != "" {
		lineLabel = line.Name
	}

	message := fmt.Sprintf("%d new fabrication order(s) queued on line %s", notice.Orders, lineLabel)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
