// Package requestid attaches a correlation id to every HTTP request.
//
// Middleware accepts an inbound X-Request-ID made of letters, digits, '-' and
// '_' (at most 128 characters) and otherwise generates a UUIDv7. The id is
// echoed in the response, stored in the context for FromContext and chi's
// middleware.GetReqID, and added to log records through LoggerExtractor:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	r.Use(requestid.Middleware)
package requestid
