// Package httpserver runs the HTTP listener with graceful shutdown and
// provides the health probes and request metrics shared by every router.
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server failed", logger.Error(err))
//	}
//
// Run listens synchronously, so an unusable address is reported as ErrStart
// before any request is served. Canceling ctx starts a graceful shutdown
// bounded by Config.ShutdownTimeout.
package httpserver
