// Package metrics provides lock-free counters and a request latency histogram
// for the client core.
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The histogram uses 8 fixed buckets (≤5ms … +Inf). Both are
// allocation-free on the write path, and every method is safe on a nil
// receiver so packages can hold an optional *Metrics.
//
// Export (Prometheus, OTel) lives in metrics/export/ and reads Snapshot values.
package metrics
