// Package logger builds configured slog.Logger instances for the control
// plane services.
//
// Services accept a *slog.Logger through their WithLogger options and
// default to a discard logger, so log output is wired once at startup:
//
//	log := logger.New(
//		logger.WithLevel(slog.LevelDebug),
//		logger.WithFormat(logger.FormatText),
//		logger.WithAttr(slog.String("service", "flags")),
//	)
//
//	registry := feature.NewRegistry(store, authz, feature.WithLogger(log))
package logger
