/*
Package observability provides structured logging and metrics collection
for the relay service.

	Provider (one instance per process)
	    ├── Logger  (JSON lines, one per component)
	    └── Metrics (Prometheus collectors, one set per component)

Every component (api, relay, batch, tool, storage, ...) asks the provider
for its own logger and metrics instead of constructing them, so labels and
service naming stay consistent and collectors are registered exactly once.

# Logging

Entries are single-line JSON objects carrying timestamp, level, service,
env, hostname and message. Correlation ids stored in the context under the
keys in package types (trace_id, request_id, download_id) are copied into
each entry automatically:

	ctx = context.WithValue(ctx, types.DownloadIDKey, id)
	log.Info(ctx, "Relay started", types.Fields{"itag": itag})

# Metrics

Collectors are named {service}_{component}_{metric} and registered on the
Registerer given in Config, which the HTTP layer exposes at /metrics:

	m := provider.Metrics("relay")
	m.StartOperation("relay")
	defer m.EndOperation("relay")
	m.RecordBytes("video", n)

# Testing

Package mocks contains testify implementations of Logger, Metrics and
Provider.
*/
package observability
