// Package database stores what ftpvista learns about FTP servers in a
// single SQLite file (modernc.org/sqlite, no cgo).
//
// Three tables are kept:
//   - hosts: one row per discovered server with discovery and last-scan
//     metadata
//   - files: the file set recorded by the last successful scan of a host
//   - scan_reports: one row per scan outcome, without file lists
package database
