// Package report renders what ftpvista stored about FTP servers.
//
// Three writers share the Writer interface:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: GitHub flavored markdown with tables and a mermaid
//     chart of the file mix
//   - JSONWriter: machine-readable output
//
// Each can render the host list, one host with its files and scan
// history, or the result of a one-off scan.
package report
