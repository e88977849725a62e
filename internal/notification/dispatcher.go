package notification

import (
	"context"
	"fmt"
	"time"

	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/common/metrics"
	"catalog-gateway/internal/mail"
	"catalog-gateway/internal/models"
)

// Notifier sends one workspace notification. Implementations must not
// return or panic into the caller.
type Notifier interface {
	Notify(ctx context.Context, ws *models.Workspace, resultCount int)
}

// Dispatcher delivers notifications through a Mailer, best effort.
// It does not deduplicate: every call attempts one delivery.
type Dispatcher struct {
	mailer  mail.Mailer
	timeout time.Duration
	logger  logger.Logger
}

func NewDispatcher(mailer mail.Mailer, timeout time.Duration, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:  mailer,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "notification-dispatcher"}),
	}
}

func (d *Dispatcher) Notify(ctx context.Context, ws *models.Workspace, resultCount int) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.send(ctx, ws, resultCount); err != nil {
		metrics.NotificationDispatch.WithLabelValues("failed").Inc()
		d.logger.Error("workspace notification failed", map[string]interface{}{
			"workspaceId": ws.ID,
			"resultCount": resultCount,
			"error":       err,
		})
		return
	}
	metrics.NotificationDispatch.WithLabelValues("sent").Inc()
	d.logger.Info("workspace notification sent", map[string]interface{}{
		"workspaceId": ws.ID,
		"resultCount": resultCount,
	})
}

func (d *Dispatcher) send(ctx context.Context, ws *models.Workspace, resultCount int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mailer panic: %v", r)
		}
	}()
	return d.mailer.SendWorkspaceNotification(ctx, ws, resultCount)
}
