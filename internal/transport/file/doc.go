// Package file implements the local-file transport plugin.
//
// Each delivered message is written to directory/filename, both taken from
// the message's resolved delivery options. The directory is created
// recursively if absent. A second message resolving to the same path
// overwrites the first; this is intended behaviour, the later write wins.
//
// The file transport is connectionless (Reconnect is a no-op) and never
// supports inbound subscriptions.
package file
