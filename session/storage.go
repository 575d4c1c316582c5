package session

import "errors"

// ErrNotStored is returned by Storage.Load when no record exists.
var ErrNotStored = errors.New("no stored session")

// Storage persists the raw session record across process restarts. The persisted
// copy is a best-effort mirror of the in-memory session, never the source of
// truth at runtime.
type Storage interface {
	Load() ([]byte, error)
	Save(data []byte) error
	Remove() error
}
