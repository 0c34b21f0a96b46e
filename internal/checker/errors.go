package checker

import "errors"

// ErrCacheUnavailable marks failures of the URL cache. They abort the run because
// no fetch result can be durably recorded without it.
var ErrCacheUnavailable = errors.New("url cache unavailable")
