// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"context"
	"fmt"
	"sort"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Traceparent carries the W3C trace context identifiers extracted from
	// an AMQP message header.
	Traceparent struct {
		TraceID    trace.TraceID
		SpanID     trace.SpanID
		TraceFlags trace.TraceFlags
	}

	// AMQPHeader adapts an amqp.Table to the OpenTelemetry TextMapCarrier
	// interface so trace context can be injected into and extracted from
	// message headers.
	AMQPHeader amqp.Table
)

// AMQPPropagator is the composite propagator used for AMQP message headers.
// It combines the W3C TraceContext and Baggage propagators.
var AMQPPropagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Set stores a key-value pair in the header. Keys are lowercased to keep
// lookups case-insensitive.
func (h AMQPHeader) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Get retrieves the string value for a key, or the empty string when the key
// is absent or holds a non-string value.
func (h AMQPHeader) Get(key string) string {
	value, ok := h[strings.ToLower(key)]
	if !ok {
		return ""
	}

	str, ok := value.(string)
	if !ok {
		return ""
	}

	return str
}

// Keys returns the sorted list of keys present in the header.
func (h AMQPHeader) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewConsumerSpan starts a consumer span whose parent is extracted from the
// delivery headers. The caller owns the returned span and must End it.
func NewConsumerSpan(tracer trace.Tracer, header amqp.Table, typ string) (context.Context, trace.Span) {
	ctx := AMQPPropagator.Extract(context.Background(), AMQPHeader(header))
	return tracer.Start(ctx, fmt.Sprintf("consume.%s", typ))
}
