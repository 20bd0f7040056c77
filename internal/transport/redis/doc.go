// Package redis implements the Redis streams transport plugin.
//
// Outbound messages are appended to the stream named in the message's
// resolved delivery options via XADD, with optional approximate trimming
// to keep streams bounded. Inbound subscriptions ("redis_subscriptions")
// read their stream through a consumer group and bridge each entry back
// into the broker under the subscription id.
package redis
