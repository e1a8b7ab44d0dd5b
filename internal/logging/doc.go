// Package logging provides structured logging for gestured.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Automatic context field injection (gesture session, device node)
//   - Level-aware sampling (errors never sampled)
//   - An observer-backed TestLogger for assertions
//
// # Usage
//
// Create logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Debug(ctx, "gesture began", zap.Int("fingers", 3))
//
// Output includes automatic correlation:
//
//	2026-10-15T10:15:30.000Z	debug	dispatch	gesture began	{"service": "gestured", "session.id": "2f6c...", "fingers": 3}
//
// # Verbosity
//
// The CLI maps -v, -vv and -vvv to info, debug and trace. --debug forces at
// least debug. Without flags the configured level applies (warn by default).
package logging
