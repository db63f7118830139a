// Package authfetch sends requests to the bridge server and recovers from an
// expired session.
//
// Client.Do replays a request once after a 401 when the session manager manages
// to log in again with saved credentials. The bound is structural: a loop
// capped by MaxRetries, so a server that keeps answering 401 costs exactly two
// calls. HTTP failures come back as responses, transport failures as errors,
// and a host without the Network capability gets a synthetic 500 response.
package authfetch
