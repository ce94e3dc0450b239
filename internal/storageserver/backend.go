// Package storageserver implements a storage server: the byte-custodian
// half of the protocol, exposing api.Storage (byte I/O) and api.Command
// (naming-server-driven lifecycle) over a pluggable Backend.
package storageserver

import (
	"errors"

	"github.com/lfcarvalho/distfs/internal/path"
)

// ErrNotExist is returned by a Backend when the named path has no
// corresponding stored object.
var ErrNotExist = errors.New("storageserver: no such file")

// Backend is the byte-storage abstraction a storage server is built on.
// Two implementations are provided: a local-disk backend (the default)
// and an S3-backed one for off-box durability.
type Backend interface {
	// Size returns the current length in bytes of the object at p.
	Size(p path.Path) (int64, error)
	// ReadAt returns up to length bytes starting at offset. It may
	// return fewer bytes than requested at end-of-object, never more.
	ReadAt(p path.Path, offset int64, length int32) ([]byte, error)
	// WriteAt writes data at offset, extending the object if necessary.
	WriteAt(p path.Path, offset int64, data []byte) error
	// Create brings an empty object into existence. It is idempotent:
	// creating an already-existing object truncates it to zero length.
	Create(p path.Path) error
	// Delete removes the object. It is not an error to delete a path
	// that does not exist.
	Delete(p path.Path) error
	// ForEach calls fn once per currently stored object, in arbitrary order.
	ForEach(fn func(path.Path) error) error
}
