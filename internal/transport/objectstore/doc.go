// Package objectstore implements the object-storage transport plugin.
//
// Each delivered message is uploaded as one object to a bucket/key taken
// from the message's resolved delivery options, with the bucket falling
// back to the target-level default. Uploads go through the MinIO SDK,
// which switches to chunked multipart upload for large payloads.
//
// The transport is connectionless HTTP (Reconnect re-verifies
// reachability) and never supports inbound subscriptions.
package objectstore
