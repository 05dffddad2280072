package common

type contextKey string

const (
	TraceIdKey        contextKey = "trace_id"
	SourceIdKey       contextKey = "source_id"
	LatencyContextKey contextKey = "__execution_time"
)
