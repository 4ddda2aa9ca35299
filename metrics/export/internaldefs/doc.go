// Package internaldefs holds the metric names and bucket bounds shared by the
// Prometheus and OTel exporters, and the single Collect step both use to read
// a Source, so both expose identical series and values.
package internaldefs
