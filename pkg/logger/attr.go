package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records err under the key "error". A nil err yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func optional(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}

// AccountID records the account identifier under the key "account_id".
func AccountID(id string) slog.Attr { return optional("account_id", id) }

// WorkspaceID records the workspace identifier under the key "workspace_id".
func WorkspaceID(id string) slog.Attr { return optional("workspace_id", id) }

// PlanID records the plan identifier under the key "plan_id".
func PlanID(id string) slog.Attr { return optional("plan_id", id) }

// CustomerID records the processor customer id under the key "customer_id".
func CustomerID(id string) slog.Attr { return optional("customer_id", id) }

// SubscriptionID records the processor subscription id under the key "subscription_id".
func SubscriptionID(id string) slog.Attr { return optional("subscription_id", id) }

// PaymentID records the processor payment id under the key "payment_id".
func PaymentID(id string) slog.Attr { return optional("payment_id", id) }

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr { return optional("request_id", id) }

// EventID records the webhook event id under the key "event_id".
func EventID(id string) slog.Attr { return optional("event_id", id) }

// EventType records the event type under the key "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// Provider records the payment provider name under the key "provider".
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
