package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cruise-feed-sync/internal/model"
	"github.com/iliyamo/cruise-feed-sync/internal/queue"
	"github.com/iliyamo/cruise-feed-sync/internal/repository"
	syncer "github.com/iliyamo/cruise-feed-sync/internal/sync"
)

// LineRunner executes a lock-guarded refresh for one line; *sync.Runner in
// production.
type LineRunner interface {
	RunLine(ctx context.Context, lineID uint64, source string) (*syncer.RunResult, error)
}

// Narrow store interfaces so the handlers can be exercised against fakes.
// The repository types satisfy them.

type lineDirectory interface {
	GetByExternalID(ctx context.Context, externalID uint64) (*model.CruiseLine, error)
}

type pendingMarker interface {
	MarkPendingByLine(ctx context.Context, lineID uint64) (int64, error)
}

type eventRecorder interface {
	Create(ctx context.Context, eventID string, lineExternalID uint64, lineID *uint64, eventType string) (uint64, error)
}

// WebhookHandler ingests change notifications from the feed.  The sender
// does not tolerate error responses, so every outcome — malformed body,
// unknown line, duplicate notification — is acknowledged with HTTP 200 and
// the detail lives in the response body and the audit table.
type WebhookHandler struct {
	Lines   lineDirectory
	Cruises pendingMarker
	Events  eventRecorder
	Runner  LineRunner
	Redis   *redis.Client // nil disables deduplication

	// Publish hands oversized notifications to the queue; nil falls back
	// to the package publisher.
	Publish func(ctx context.Context, event queue.LineChangedEvent) error

	InlineThreshold int           // at or below: refresh inside the request cycle
	DedupeWindow    time.Duration // duplicate suppression window
}

// webhookBody is the minimal notification payload the feed sends.
type webhookBody struct {
	LineID    uint64 `json:"lineid"`
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"`
}

// Receive handles POST /v1/webhooks/cruiseline.  It maps the external line
// identifier, records the event, flags the line's active future sailings as
// pending, and either refreshes them inline (small lines) or defers to the
// queue consumer and scheduler (large lines).
func (h *WebhookHandler) Receive(c echo.Context) error {
	var body webhookBody
	if err := c.Bind(&body); err != nil || body.LineID == 0 {
		// Acknowledge and drop; there is nothing to mark pending.
		log.Printf("webhook: malformed notification: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"accepted": false, "cruiseCount": 0})
	}
	ctx := c.Request().Context()

	line, err := h.Lines.GetByExternalID(ctx, body.LineID)
	if errors.Is(err, repository.ErrLineNotFound) {
		// Unknown external id: record for operator visibility, acknowledge as no-op.
		eventID := uuid.NewString()
		if _, err := h.Events.Create(ctx, eventID, body.LineID, nil, body.Event); err != nil {
			log.Printf("webhook: record unmapped event: %v", err)
		}
		log.Printf("webhook: unmapped external line %d (event %s)", body.LineID, eventID)
		return c.JSON(http.StatusOK, echo.Map{"accepted": false, "cruiseCount": 0})
	}
	if err != nil {
		log.Printf("webhook: resolve line %d: %v", body.LineID, err)
		return c.JSON(http.StatusOK, echo.Map{"accepted": false, "cruiseCount": 0})
	}

	if h.isDuplicate(ctx, body) {
		return c.JSON(http.StatusOK, echo.Map{"accepted": true, "cruiseCount": 0})
	}

	eventID := uuid.NewString()
	if _, err := h.Events.Create(ctx, eventID, body.LineID, &line.ID, body.Event); err != nil {
		log.Printf("webhook: record event: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"accepted": false, "cruiseCount": 0})
	}

	count, err := h.Cruises.MarkPendingByLine(ctx, line.ID)
	if err != nil {
		log.Printf("webhook: mark pending line %d: %v", line.ID, err)
		return c.JSON(http.StatusOK, echo.Map{"accepted": false, "cruiseCount": 0})
	}

	if count <= int64(h.InlineThreshold) {
		// Small enough to refresh within the request cycle.  Lock contention
		// means another run is already covering the line; that is fine.
		if _, err := h.Runner.RunLine(ctx, line.ID, model.SnapshotSourceWebhook); err != nil && !errors.Is(err, repository.ErrLockHeld) {
			log.Printf("webhook: inline run line %d: %v", line.ID, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"accepted": true, "cruiseCount": count})
	}

	// Too large for the request cycle: queue it.  If the broker is down the
	// flags are already set and the scheduler drains them; losing the
	// message delays the refresh, it never loses it.
	ev := queue.LineChangedEvent{
		EventID:        eventID,
		LineID:         line.ID,
		LineExternalID: body.LineID,
		EventType:      body.Event,
		CruiseCount:    count,
		ReceivedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	publish := h.Publish
	if publish == nil {
		publish = queue.PublishLineChanged
	}
	if err := publish(ctx, ev); err != nil {
		log.Printf("webhook: publish line-changed for line %d: %v (scheduler will pick it up)", line.ID, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"accepted": true, "cruiseCount": count})
}

// isDuplicate suppresses notifications for the same line and event type
// inside the dedupe window.  Without Redis every notification is processed;
// the pending flags make that merely redundant, not harmful.
func (h *WebhookHandler) isDuplicate(ctx context.Context, body webhookBody) bool {
	if h.Redis == nil || h.DedupeWindow <= 0 {
		return false
	}
	key := fmt.Sprintf("webhook:dedupe:%d:%s", body.LineID, body.Event)
	ok, err := h.Redis.SetNX(ctx, key, 1, h.DedupeWindow).Result()
	if err != nil {
		return false // degrade to processing everything
	}
	return !ok
}
