package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance
func New() *Logger {
	level := getLogLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text handler for development, JSON for production
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("request_id", requestID))}
}

// WithBookingID adds booking ID to logger context
func (l *Logger) WithBookingID(bookingID uint) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Uint64("booking_id", uint64(bookingID)))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// WithFields adds multiple fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return &Logger{Logger: l.Logger.With(args...)}
}

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", c.Writer.Header().Get("x-request-id")),
	)
}

// Booking lifecycle logging

// LogHoldCreated logs a newly created hold
func (l *Logger) LogHoldCreated(ctx context.Context, bookingID uint, tripID uint, seats []int, sessionID string) {
	l.Logger.InfoContext(ctx,
		"Hold Created",
		slog.Uint64("booking_id", uint64(bookingID)),
		slog.Uint64("trip_id", uint64(tripID)),
		slog.Any("seat_numbers", seats),
		slog.String("session_id", sessionID),
	)
}

// LogBookingConfirmed logs a HOLD -> CONFIRMED transition
func (l *Logger) LogBookingConfirmed(ctx context.Context, bookingID uint, source string) {
	l.Logger.InfoContext(ctx,
		"Booking Confirmed",
		slog.Uint64("booking_id", uint64(bookingID)),
		slog.String("source", source),
	)
}

// LogBookingCancelled logs a cancellation
func (l *Logger) LogBookingCancelled(ctx context.Context, bookingID uint, actor string) {
	l.Logger.InfoContext(ctx,
		"Booking Cancelled",
		slog.Uint64("booking_id", uint64(bookingID)),
		slog.String("actor", actor),
	)
}

// LogHoldExpired logs a HOLD -> EXPIRED transition
func (l *Logger) LogHoldExpired(ctx context.Context, bookingID uint, reason string) {
	l.Logger.InfoContext(ctx,
		"Hold Expired",
		slog.Uint64("booking_id", uint64(bookingID)),
		slog.String("reason", reason),
	)
}

// Security logging

// LogSignatureFailure logs a rejected webhook signature
func (l *Logger) LogSignatureFailure(ctx context.Context, surface, ip string) {
	l.Logger.WarnContext(ctx,
		"Signature Verification Failed",
		slog.String("surface", surface),
		slog.String("ip", ip),
	)
}

// LogReplayRejected logs a nonce seen twice
func (l *Logger) LogReplayRejected(ctx context.Context, surface, nonce string) {
	l.Logger.WarnContext(ctx,
		"Replay Rejected",
		slog.String("surface", surface),
		slog.String("nonce", nonce),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.InfoContext(ctx, msg, args...)
}

// WarnWithContext logs a warning message with context
func (l *Logger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.WarnContext(ctx, msg, args...)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, slog.String("error", err.Error()))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
