// Package scanner walks the directory tree of one FTP server and returns
// the files it exposes.
//
// A Scanner owns a single session per Scan call: one control connection,
// a frontier of directories still to list, and the set of directories
// already listed. Sessions are never shared, so scanners for different
// hosts can run concurrently.
//
// Error taxonomy:
//
//   - ErrLogin: the server refused the credentials. The scan is aborted
//     and not retried.
//   - *TooDeepError (matches ErrTooDeep): the tree is deeper than the
//     configured maximum. The scan is aborted and no partial result is
//     returned.
//   - Connection and timeout errors while listing are logged, the session
//     is re-established and the walk continues. They only surface when
//     reconnecting fails (ErrReconnect) or the reconnect limit is hit
//     (ErrReconnectLimit).
//   - Entries that cannot be parsed are dropped silently.
package scanner
