package model

import "github.com/oklog/ulid/v2"

// NewHandle generates a ULID string that addresses a session from outside
// the process. Jobs are addressed by their numeric sequence id instead.
func NewHandle() string {
	return ulid.Make().String()
}
