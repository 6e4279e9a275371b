// Package sniffer turns observed address-resolution traffic into
// candidate FTP hosts.
//
// A Source captures packets and publishes a Packet (sender and target
// protocol address) for each one on its output channel. An Adapter reads
// that channel and runs every address through the discovery pipeline, in
// order, on the adapter's goroutine. The channel is the only coupling
// between the two: the source knows nothing about pipelines.
package sniffer
