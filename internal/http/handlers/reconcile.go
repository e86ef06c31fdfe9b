package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tolovpay.uz/app/internal/http/middleware"
	"tolovpay.uz/app/internal/modules/reconcile"
	"tolovpay.uz/app/internal/shared/apperr"
)

type ReconcileHandler struct {
	Logger    *slog.Logger
	Engine    *reconcile.Engine
	Publisher *reconcile.Publisher // optional; nil skips archive+mail
}

func NewReconcileHandler(logger *slog.Logger, engine *reconcile.Engine, publisher *reconcile.Publisher) *ReconcileHandler {
	return &ReconcileHandler{Logger: logger, Engine: engine, Publisher: publisher}
}

// GET /api/reconciliation?from=&to=
// Timestamps are RFC 3339 or plain dates; to defaults to now, from to
// 24h before to.
func (h *ReconcileHandler) Run(c *gin.Context) {
	to, err := parseTimeParam(c.Query("to"), time.Now().UTC())
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("invalid reconciliation window", map[string]string{"to": "bad timestamp"}))
		return
	}
	from, err := parseTimeParam(c.Query("from"), to.Add(-24*time.Hour))
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("invalid reconciliation window", map[string]string{"from": "bad timestamp"}))
		return
	}
	if !to.After(from) {
		middleware.Fail(c, apperr.InvalidErr("invalid reconciliation window", map[string]string{"from": "must precede to"}))
		return
	}

	report, err := h.Engine.Run(c.Request.Context(), from, to)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	body := gin.H{"report": report}
	if h.Publisher != nil && c.Query("publish") == "true" {
		url, err := h.Publisher.Publish(c.Request.Context(), report)
		if err != nil {
			middleware.Fail(c, apperr.Wrap(err))
			return
		}
		if url != "" {
			body["archived_url"] = url
		}
	}
	c.JSON(http.StatusOK, body)
}

func parseTimeParam(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
