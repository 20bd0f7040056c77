// Package influxdb provides the InfluxDB v2 client behind Gray Relay's
// delivery metrics.
//
// Writes go through the SDK's non-blocking, batched write API so a slow
// or absent time-series database never stalls a delivery worker. Write
// errors surface asynchronously via SetOnError.
package influxdb
