// Package logging provides a minimal logging facade for the mosquitto client.
//
// The Logger interface wraps the subset of log/slog used by the client. Two
// backends are provided:
//
//	// slog, bound to slog.Default() when nil
//	logger := logging.New(nil)
//
//	// zap, for services already standardised on it
//	zl, _ := zap.NewProduction()
//	logger := logging.NewZap(zl)
//
// Pass either to the client with mosquitto.WithLogger.
//
// # Redaction
//
// Credentials must never be logged. Use Redacted to keep the attribute key
// while dropping the value:
//
//	logger.Info(ctx, "credentials set", "username", user, logging.Redacted("password"))
//	// password="[redacted]"
//
// # Callback context
//
// Events delivered on the native library's network thread have no caller
// context; they are logged with context.Background().
package logging
