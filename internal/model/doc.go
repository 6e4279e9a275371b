// Package model defines the data shared by discovery, scanning, storage
// and reporting:
//   - Address: an IPv4 address seen on the network
//   - FileRecord: one regular file found on a server
//   - Host: what is known about one FTP server
//   - ScanReport: the outcome of scanning one host
//
// Every type serializes to JSON for the report writers.
package model
