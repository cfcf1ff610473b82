package esre

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esre-console/internal/domain"
	"github.com/kailas-cloud/esre-console/internal/metrics"
)

// observer records logs and metrics for backend operations.
type observer struct {
	logger *zap.Logger
}

func (o *observer) observe(op string, start time.Time, err error) {
	dur := time.Since(start)
	status := statusOf(err)

	metrics.BackendRequestsTotal.WithLabelValues(op, status).Inc()
	metrics.BackendRequestDuration.WithLabelValues(op).Observe(dur.Seconds())

	if err != nil {
		o.logger.Debug("backend operation failed",
			zap.String("op", op),
			zap.String("status", status),
			zap.Duration("duration", dur),
			zap.Error(err),
		)
		return
	}
	o.logger.Debug("backend operation completed",
		zap.String("op", op),
		zap.Duration("duration", dur),
	)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrTransport):
		return "transport_error"
	case errors.Is(err, domain.ErrBackend):
		return "backend_error"
	default:
		return "error"
	}
}
