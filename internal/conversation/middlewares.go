package conversation

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	apperrors "anonchat/backend/internal/errors"
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
)

const internalErrorKey = "internal_error"

// RecoveryMiddleware catches panics, logs them and notifies the user.
func RecoveryMiddleware(log *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(c *Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler",
						"user_id", c.UserID(),
						"panic", fmt.Sprint(r),
						"stack", string(debug.Stack()),
					)
					if sendErr := c.Reply(internalErrorKey); sendErr != nil {
						log.Error("failed to notify user about panic", "user_id", c.UserID(), "error", sendErr)
					}
					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware turns handler errors into a localized reply. Errors never
// propagate past it, so one bad event cannot stop the event loop.
func ErrorHandlingMiddleware(log *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(c *Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			key := internalErrorKey
			if appErr, ok := apperrors.As(err); ok {
				if appErr.MessageKey != "" {
					key = appErr.MessageKey
				}
				if appErr.Kind == apperrors.KindDelivery {
					log.Warn("delivery error", "user_id", c.UserID(), "code", appErr.Code, "error", err)
				} else {
					log.Debug("user error", "user_id", c.UserID(), "code", appErr.Code, "error", err)
				}
			} else {
				log.Error("handler failed", "user_id", c.UserID(), "action", c.Action(), "error", err)
			}

			if sendErr := c.Reply(key); sendErr != nil {
				log.Error("failed to send error reply", "user_id", c.UserID(), "error", sendErr)
			}
			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming events.
func LoggingMiddleware(log *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(c *Context) error {
			start := time.Now()
			log.Debug("handling event", "user_id", c.UserID(), "state", c.State(), "action", c.Action())

			err := next(c)

			log.Debug("handled event",
				"user_id", c.UserID(),
				"action", c.Action(),
				"duration", time.Since(start),
				"error", err,
			)
			return err
		}
	}
}

// MetricsMiddleware counts events per action and outcome.
func MetricsMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(c *Context) error {
			start := time.Now()
			err := next(c)

			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.RecordCommand(metricLabel(c), status, time.Since(start))
			return err
		}
	}
}

// metricLabel keeps label cardinality bounded: unknown commands share one label.
func metricLabel(c *Context) string {
	if c.Event.Kind == models.EventCommand && !isKnownCommand(c.Event.Command) {
		return "/other"
	}
	return c.Action()
}
