// Package main provides the entry point for the ftpvista CLI.
//
// ftpvista watches ARP traffic on a local network, finds hosts that run
// an FTP server, and keeps an index of the files they share.
//
// Usage:
//
//	ftpvista run -i eth0
//	ftpvista scan 192.168.0.10
//	ftpvista report 192.168.0.10
//
// See --help for all available options.
package main

func main() {
	Execute()
}
