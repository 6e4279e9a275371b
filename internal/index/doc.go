// Package index keeps the store in step with the FTP servers found by
// discovery.
//
// The Coordinator consumes addresses from the hand-off queue. For each
// one it records the sighting, skips servers scanned more recently than
// the minimum update interval, scans the others and replaces their stored
// file set when it changed. Several workers may scan at once, but never
// the same host twice concurrently.
package index
