// Package pipeline provides a chain of filter stages that an observed
// network address passes through before it is handed to the scanner.
//
// A Pipeline runs its stages in insertion order and stops at the first
// stage that rejects the address. Every stage sees the same value; stages
// filter, they do not transform. The last stage is normally a sink that
// pushes accepted addresses into a bounded queue.
//
// The discovery pipeline built by BuildDiscoveryPipeline uses the fixed
// order blacklist, valid-address pattern, recent-duplicate, FTP-port-open,
// sink. Cheap stateless filters run first so that the network probe only
// sees addresses that survived them.
package pipeline
