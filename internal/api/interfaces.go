// Package api defines the four remote interfaces of the naming/storage
// protocol (Service, Registration, Storage, Command), their wire-level
// handle types, and the generated stub that implements each interface by
// delegating to internal/rpc.
package api

import (
	"encoding/gob"

	"github.com/lfcarvalho/distfs/internal/path"
)

func init() {
	// Concrete types carried inside the generic CallEnvelope.Args and
	// ResponseEnvelope.Result interface{} slots must be pre-registered
	// with gob, which otherwise has no way to name the dynamic type it
	// is decoding into.
	gob.Register(StorageHandle{})
	gob.Register(CommandHandle{})
	gob.Register(path.Path{})
	gob.Register([]path.Path{})
	gob.Register([]string(nil))
	gob.Register([]byte(nil))
}

// StorageHandle is the serializable reference to a storage server's data
// endpoint (the Storage interface). A stub materializes it locally into a
// live Storage via NewStorageStubFromHandle; no RPC substrate can serialize a
// connected object graph, so a handle carries just enough to dial back.
type StorageHandle struct {
	Network string
	Address string
}

// CommandHandle is the serializable reference to a storage server's
// command endpoint (the Command interface).
type CommandHandle struct {
	Network string
	Address string
}

// Service is the naming server's metadata API.
type Service interface {
	IsDirectory(p path.Path) (bool, error)
	List(d path.Path) ([]string, error)
	CreateFile(p path.Path) (bool, error)
	CreateDirectory(p path.Path) (bool, error)
	Delete(p path.Path) (bool, error)
	GetStorage(p path.Path) (StorageHandle, error)
	Lock(p path.Path, exclusive bool) error
	Unlock(p path.Path, exclusive bool) error
}

// Registration is the naming server's storage-server bootstrap API.
type Registration interface {
	Register(client StorageHandle, command CommandHandle, files []path.Path) ([]path.Path, error)
}

// Storage is a storage server's byte-custodian API.
type Storage interface {
	Size(p path.Path) (int64, error)
	Read(p path.Path, offset int64, length int32) ([]byte, error)
	Write(p path.Path, offset int64, data []byte) error
}

// Command is a storage server's naming-server-facing control API.
type Command interface {
	Create(p path.Path) (bool, error)
	Delete(p path.Path) (bool, error)
	Copy(p path.Path, source StorageHandle) (bool, error)
}
