// Package logger builds the structured *slog.Logger shared by every
// component of the bridge.
//
// New assembles a text or JSON handler from functional options, optionally
// tees output to a size-rotated log file, and wraps the handler with
// LogHandlerDecorator so that values carried in a context.Context (request
// ids, the executing component) are attached to every record logged with
// that context.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.AppEnv, "torrentbridge"),
//	    logger.WithFileOutput(cfg.LogFile, 10, 3),
//	    logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	log.InfoContext(ctx, "magnet link forwarded", logger.Username("bob"))
//
// The attribute helpers in attr.go keep key names consistent. Helpers that
// take an error or an optional value return an empty slog.Attr for nil input
// so they can be passed unconditionally.
package logger
