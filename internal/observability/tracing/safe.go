package tracing

import (
	"context"
	"errors"

	"github.com/smallbiznis/wastebill/internal/billingerr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var allowedSpanKeys = map[attribute.Key]struct{}{
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"request_id":              {},
	"customer_id":             {},
	"invoice_id":              {},
	"payment_id":              {},
	"actor_role":              {},
	"mpesa.trans_id":          {},
	"error.code":              {},
}

// ExtractContext reads upstream trace headers into ctx.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops attributes that could carry payer data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedSpanKeys[attr.Key]; ok {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError reduces err to its stable code so raw storage messages stay out
// of exported spans.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(billingerr.CodeOf(err))
}
