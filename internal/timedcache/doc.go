// Package timedcache provides a set of keys that are forgotten after a
// fixed duration.
//
// The cache is used by the discovery pipeline to suppress addresses that
// were already seen moments ago. A key reported as present is guaranteed
// to have been added within the last timeout; expired keys are evicted
// lazily on lookup and swept eagerly on insertion.
package timedcache
