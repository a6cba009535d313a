package codec

import "errors"

// ErrFrame wraps every malformed-frame condition the framer or parser
// detects: missing field separators, non-numeric tags, BodyLength/CheckSum
// mismatches, and truncated trailers. It is always recoverable - callers
// log and skip the offending frame rather than tearing down the session.
var ErrFrame = errors.New("fix: malformed frame")
