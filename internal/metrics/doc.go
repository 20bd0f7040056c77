// Package metrics bridges the broker's delivery observer hook to the
// InfluxDB delivery-metrics client.
package metrics
