// Package requestid tags every request to the daemon with a correlation ID.
//
// Middleware accepts a client supplied X-Request-ID when it is short and made
// of letters, digits, '-' and '_', and generates a UUID otherwise. The ID is
// stored in the request context, where LoggerExtractor picks it up for
// structured logs and Transport forwards it on calls to the torrent server.
package requestid
