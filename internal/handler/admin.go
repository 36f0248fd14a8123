package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cruise-feed-sync/internal/model"
	"github.com/iliyamo/cruise-feed-sync/internal/repository"
	syncer "github.com/iliyamo/cruise-feed-sync/internal/sync"
)

type eventReader interface {
	ListRecent(ctx context.Context, limit int) ([]model.WebhookEvent, error)
	GetByEventID(ctx context.Context, eventID string) (*model.WebhookEvent, error)
}

type lockReader interface {
	List(ctx context.Context) ([]model.SyncLock, error)
}

type snapshotReader interface {
	ListByCruise(ctx context.Context, cruiseID uint64, limit int) ([]model.PriceSnapshot, error)
}

type cruiseReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Cruise, error)
}

type sweeper interface {
	Sweep(ctx context.Context) (*syncer.ReconcileStats, error)
}

// AdminHandler exposes the read-only operational surface: recent webhook
// events, current sync locks, and a cruise's snapshot history.  It also
// lets operators kick off the reconciliation sweep.  None of these
// endpoints write pipeline-owned pricing fields.
type AdminHandler struct {
	Events     eventReader
	Locks      lockReader
	History    snapshotReader
	Cruises    cruiseReader
	Reconciler sweeper
}

// ListWebhookEvents handles GET /v1/admin/webhook-events?limit=n.
func (h *AdminHandler) ListWebhookEvents(c echo.Context) error {
	limit := queryLimit(c, 50)
	events, err := h.Events.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(events))
	for _, e := range events {
		out = append(out, echo.Map{
			"id":               e.ID,
			"event_id":         e.EventID,
			"line_external_id": e.LineExternalID,
			"line_id":          e.LineID,
			"event_type":       e.EventType,
			"status":           e.Status,
			"cruises_updated":  e.CruisesUpdated,
			"cruises_failed":   e.CruisesFailed,
			"error_message":    e.ErrorMessage,
			"received_at":      e.ReceivedAt,
			"processed_at":     e.ProcessedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// GetWebhookEvent handles GET /v1/admin/webhook-events/:event_id, looking an
// event up by the correlation uuid that appears in the logs and in webhook
// responses.
func (h *AdminHandler) GetWebhookEvent(c echo.Context) error {
	eventID := c.Param("event_id")
	e, err := h.Events.GetByEventID(c.Request().Context(), eventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":               e.ID,
		"event_id":         e.EventID,
		"line_external_id": e.LineExternalID,
		"line_id":          e.LineID,
		"event_type":       e.EventType,
		"status":           e.Status,
		"cruises_updated":  e.CruisesUpdated,
		"cruises_failed":   e.CruisesFailed,
		"error_message":    e.ErrorMessage,
		"received_at":      e.ReceivedAt,
		"processed_at":     e.ProcessedAt,
	})
}

// ListSyncLocks handles GET /v1/admin/sync-locks.
func (h *AdminHandler) ListSyncLocks(c echo.Context) error {
	locks, err := h.Locks.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(locks))
	for _, l := range locks {
		out = append(out, echo.Map{
			"line_id":     l.LineID,
			"status":      l.Status,
			"holder":      l.Holder,
			"acquired_at": l.AcquiredAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"locks": out})
}

// ListSnapshots handles GET /v1/admin/cruises/:id/snapshots?limit=n.
func (h *AdminHandler) ListSnapshots(c echo.Context) error {
	cruiseID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || cruiseID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cruise id"})
	}
	if _, err := h.Cruises.GetByID(c.Request().Context(), cruiseID); err != nil {
		if errors.Is(err, repository.ErrCruiseNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "cruise not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	limit := queryLimit(c, 50)
	snaps, err := h.History.ListByCruise(c.Request().Context(), cruiseID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, echo.Map{
			"id":                   s.ID,
			"price_interior":       s.PriceInterior,
			"price_oceanview":      s.PriceOceanview,
			"price_balcony":        s.PriceBalcony,
			"price_suite":          s.PriceSuite,
			"change_interior_pct":  s.ChangeInteriorPct,
			"change_oceanview_pct": s.ChangeOceanviewPct,
			"change_balcony_pct":   s.ChangeBalconyPct,
			"change_suite_pct":     s.ChangeSuitePct,
			"source":               s.Source,
			"created_at":           s.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"cruise_id": cruiseID, "snapshots": out})
}

// TriggerReconcile handles POST /v1/admin/reconcile.  The sweep can take a
// while over a large archive, so it runs in the background and the request
// returns immediately.
func (h *AdminHandler) TriggerReconcile(c echo.Context) error {
	go func() {
		stats, err := h.Reconciler.Sweep(context.Background())
		if err != nil {
			log.Printf("admin: reconcile sweep: %v", err)
			return
		}
		log.Printf("admin: reconcile sweep finished: %+v", *stats)
	}()
	return c.JSON(http.StatusAccepted, echo.Map{"started": true})
}

// queryLimit parses the ?limit query parameter with a default and a cap.
func queryLimit(c echo.Context, def int) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > 500 {
		return 500
	}
	return n
}
