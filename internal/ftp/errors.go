package ftp

import (
	"errors"
	"net/textproto"
)

var (
	// ErrUnexpectedReply is returned when the server answers with a code
	// the client cannot act on.
	ErrUnexpectedReply = errors.New("unexpected FTP reply")

	// ErrActiveMode is returned when active mode is requested; only
	// passive data connections are supported.
	ErrActiveMode = errors.New("active mode is not supported")

	// ErrBadPassiveReply is returned when a PASV or EPSV reply cannot be
	// parsed.
	ErrBadPassiveReply = errors.New("malformed passive mode reply")
)

// ReplyCode returns the FTP reply code carried by err, or 0.
func ReplyCode(err error) int {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code
	}
	return 0
}

// IsNotImplemented reports whether err is a reply meaning the command is
// unknown or unsupported by the server: 500 (syntax error, command
// unrecognised), 501 (syntax error in arguments), 502 (not implemented)
// or 504 (not implemented for that parameter).
func IsNotImplemented(err error) bool {
	switch ReplyCode(err) {
	case 500, 501, 502, 504:
		return true
	}
	return false
}

// IsPermanent reports whether err is a 5xx reply.
func IsPermanent(err error) bool {
	code := ReplyCode(err)
	return code >= 500 && code < 600
}
