// Package redis connects to the Redis server that backs the shared
// key-value store when the daemon runs with STORE_DRIVER=redis.
//
// Config is populated from the environment:
//
//	cfg := redis.Config{ConnectionURL: "redis://localhost:6379/0", RetryAttempts: 3}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Healthcheck returns a probe suitable for the daemon's /health endpoint.
package redis
