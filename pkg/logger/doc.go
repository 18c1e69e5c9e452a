// Package logger builds the service's *slog.Logger and provides attribute
// constructors so every component logs the same keys.
//
// New returns a JSON or text logger wrapped in LogHandlerDecorator, which
// adds attributes pulled from the context on each call (the request id, for
// example). Environment defaults come from WithEnvironment; LOG_LEVEL and
// LOG_FORMAT overrides from WithConfig.
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Production, "propfin"),
//	    logger.WithConfig(cfg.Log),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "subscription provisioned",
//	    logger.UserID(userID),
//	    logger.Plan("STARTER"),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
