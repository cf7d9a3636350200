// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// EventIDKey is the context key for the ingestion event ID
	EventIDKey contextKey = "event_id"
	// OfferIDKey is the context key for the offer being processed
	OfferIDKey contextKey = "offer_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, event_id, and offer_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if eventID, ok := ctx.Value(EventIDKey).(string); ok && eventID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("event_id", eventID))}
	}

	if offerID, ok := ctx.Value(OfferIDKey).(string); ok && offerID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("offer_id", offerID))}
	}

	return newLogger
}

// WithEventID returns a logger with the ingestion event ID attached.
func (l *Logger) WithEventID(eventID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("event_id", eventID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// StatusTransition logs an offer status transition driven by the engine.
func (l *Logger) StatusTransition(offerID, oldStatus, newStatus, rule string) {
	l.Info("offer_status_transition",
		slog.String("offer_id", offerID),
		slog.String("old_status", oldStatus),
		slog.String("new_status", newStatus),
		slog.String("rule", rule),
	)
}

// ProfileConsolidated logs a profile create or merge outcome.
func (l *Logger) ProfileConsolidated(customerID, outcome, matchedOn string) {
	l.Info("profile_consolidated",
		slog.String("customer_id", customerID),
		slog.String("outcome", outcome),
		slog.String("matched_on", matchedOn),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// ExternalCallFailed logs a failed call to an external collaborator.
func (l *Logger) ExternalCallFailed(service string, attempt int, err error) {
	l.Warn("external_call_failed",
		slog.String("service", service),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// RecordParked logs a record parked for manual review.
func (l *Logger) RecordParked(offerID, reason string) {
	l.Warn("record_parked",
		slog.String("offer_id", offerID),
		slog.String("reason", reason),
	)
}
