package scan

import "errors"

var (
	// ErrAlreadyScanning is returned by Start while a discovery pass is
	// active. The existing session is left untouched.
	ErrAlreadyScanning = errors.New("a scan is already in progress")

	// ErrNoSession is returned by operations that need a session before
	// Start has created one.
	ErrNoSession = errors.New("no scan session")
)
