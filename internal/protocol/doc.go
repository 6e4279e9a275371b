// Package protocol checks whether a host runs an FTP service.
//
// Two probers implement the pipeline's port check:
//   - FTPProber dials port 21 directly (or through a SOCKS5 proxy) with a
//     short timeout and can optionally require an FTP greeting.
//   - NmapProber delegates to the nmap binary.
//
// Probers never return errors to the pipeline: a timeout, a refused
// connection or a missing nmap binary all mean "not open".
package protocol
