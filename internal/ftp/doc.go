// Package ftp is the minimal FTP control/data client used by the scanner.
//
// It implements only what a read-only tree walk needs: login, passive data
// connections (EPSV with PASV fallback), the UTF-8 option, CWD, the
// machine-readable MLSD listing and the legacy LIST listing, and QUIT.
//
// Directory listings are returned as Entry values carrying RFC 3659
// facts. Servers that do not implement MLSD are handled by the caller
// through ParseLegacyListing, which rebuilds the same facts from LIST
// output so both paths can be consumed identically.
package ftp
