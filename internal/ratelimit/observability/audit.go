// Package observability provides audit logging helpers for the ratelimit module.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"hushmcp/pkg/platform/audit"
	"hushmcp/pkg/requestcontext"
)

// Publisher emits audit events. Fire-and-forget; implementations must never
// block the caller.
type Publisher interface {
	Publish(ctx context.Context, event audit.Event)
}

// LogAudit records an abuse-control event on both the structured logger and
// the audit pipeline. The slog line carries the full attribute list; the
// audit event gets actor/subject extracted from it plus a string-rendered
// detail map. attrList is alternating key/value pairs, slog style.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher Publisher, name audit.EventName, attrList ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	if logger != nil {
		args := append(attrList, "event", string(name), "log_type", "audit")
		logger.InfoContext(ctx, string(name), args...)
	}

	if publisher == nil {
		return
	}

	publisher.Publish(ctx, audit.Event{
		Name: name,
		// The acting party is the remote address; the affected party is the
		// account identifier under attack, when the event has one.
		Actor:   extractString(attrList, "ip"),
		Subject: extractString(attrList, "identifier"),
		Detail:  detailMap(attrList),
	})
}

// extractString finds the string value for key in an alternating key/value
// list.
func extractString(attrList []any, key string) string {
	for i := 0; i+1 < len(attrList); i += 2 {
		if attrList[i] == key {
			if s, ok := attrList[i+1].(string); ok {
				return s
			}
		}
	}
	return ""
}

func detailMap(attrList []any) map[string]string {
	if len(attrList) == 0 {
		return nil
	}
	detail := make(map[string]string, len(attrList)/2)
	for i := 0; i+1 < len(attrList); i += 2 {
		key, ok := attrList[i].(string)
		if !ok {
			continue
		}
		detail[key] = fmt.Sprint(attrList[i+1])
	}
	return detail
}
