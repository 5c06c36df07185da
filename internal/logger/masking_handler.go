package logger

import (
	"context"
	"log/slog"
	"strings"
)

var sensitiveKeys = []string{
	"token",
	"secret",
	"password",
	"authorization",
}

const redacted = "***"

// MaskingHandler wraps a slog.Handler and masks sensitive attributes before delegating.
// Attributes with a sensitive key are replaced whole; known secret values are cut out of
// messages, strings and errors wherever they appear (the Bot API puts the token in
// every request URL, and transport errors quote that URL).
type MaskingHandler struct {
	next    slog.Handler
	secrets []string
}

// NewMaskingHandler creates a handler that masks sensitive fields before passing records downstream.
func NewMaskingHandler(next slog.Handler, secrets ...string) *MaskingHandler {
	var keep []string
	for _, s := range secrets {
		if s != "" {
			keep = append(keep, s)
		}
	}
	return &MaskingHandler{next: next, secrets: keep}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		masked[i] = h.mask(attr)
	}
	return &MaskingHandler{next: h.next.WithAttrs(masked), secrets: h.secrets}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name), secrets: h.secrets}
}

// Handle applies masking to sensitive attributes and delegates to the wrapped handler.
func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, h.redact(record.Message), record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(h.mask(attr))
		return true
	})

	return h.next.Handle(ctx, masked)
}

func (h *MaskingHandler) mask(attr slog.Attr) slog.Attr {
	if isSensitiveKey(attr.Key) {
		attr.Value = slog.StringValue(redacted)
		return attr
	}
	if len(h.secrets) == 0 {
		return attr
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		attr.Value = slog.StringValue(h.redact(attr.Value.String()))
	case slog.KindGroup:
		group := attr.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, a := range group {
			masked[i] = h.mask(a)
		}
		attr.Value = slog.GroupValue(masked...)
	case slog.KindAny:
		if err, ok := attr.Value.Any().(error); ok {
			if msg := err.Error(); h.redact(msg) != msg {
				attr.Value = slog.StringValue(h.redact(msg))
			}
		}
	}
	return attr
}

func (h *MaskingHandler) redact(s string) string {
	for _, secret := range h.secrets {
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}

func isSensitiveKey(key string) bool {
	for _, sensitive := range sensitiveKeys {
		if strings.EqualFold(key, sensitive) {
			return true
		}
	}
	return false
}
