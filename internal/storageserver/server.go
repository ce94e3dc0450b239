package storageserver

import (
	"github.com/sirupsen/logrus"

	"github.com/lfcarvalho/distfs/internal/api"
	"github.com/lfcarvalho/distfs/internal/apierr"
	"github.com/lfcarvalho/distfs/internal/path"
)

var (
	_ api.Storage = (*Server)(nil)
	_ api.Command = (*Server)(nil)
)

// Server is a storage server's RPC-facing half: it implements api.Storage
// (the client-facing byte I/O API) and api.Command (the naming-server-
// facing lifecycle API) atop a Backend.
type Server struct {
	backend Backend
	log     *logrus.Entry
}

// NewServer wraps backend for serving over api.Storage and api.Command.
func NewServer(backend Backend, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{backend: backend, log: log}
}

// LocalFiles reports every file this server already holds, relative to
// its root, for use in the bootstrap register(client, command, files) call.
func (s *Server) LocalFiles() ([]path.Path, error) {
	var found []path.Path
	err := s.backend.ForEach(func(p path.Path) error {
		found = append(found, p)
		return nil
	})
	return found, err
}

func (s *Server) Size(p path.Path) (int64, error) {
	n, err := s.backend.Size(p)
	if err == ErrNotExist {
		return 0, apierr.NotFoundf("Server.Size", "%s", p)
	}
	if err != nil {
		return 0, apierr.IOErrorf("Server.Size", "%s: %v", p, err)
	}
	return n, nil
}

func (s *Server) Read(p path.Path, offset int64, length int32) ([]byte, error) {
	if offset < 0 {
		return nil, apierr.OutOfBoundsf("Server.Read", "negative offset %d", offset)
	}
	if length < 0 {
		return nil, apierr.OutOfBoundsf("Server.Read", "negative length %d", length)
	}
	data, err := s.backend.ReadAt(p, offset, length)
	if err == ErrNotExist {
		return nil, apierr.NotFoundf("Server.Read", "%s", p)
	}
	if err != nil {
		return nil, apierr.IOErrorf("Server.Read", "%s: %v", p, err)
	}
	return data, nil
}

func (s *Server) Write(p path.Path, offset int64, data []byte) error {
	if offset < 0 {
		return apierr.OutOfBoundsf("Server.Write", "negative offset %d", offset)
	}
	if err := s.backend.WriteAt(p, offset, data); err != nil {
		if err == ErrNotExist {
			return apierr.NotFoundf("Server.Write", "%s", p)
		}
		return apierr.IOErrorf("Server.Write", "%s: %v", p, err)
	}
	return nil
}

// Create implements api.Command: the naming server asks this storage
// server to bring a newly-registered file into existence.
func (s *Server) Create(p path.Path) (bool, error) {
	if err := s.backend.Create(p); err != nil {
		return false, apierr.IOErrorf("Server.Create", "%s: %v", p, err)
	}
	return true, nil
}

// Delete implements api.Command: the naming server asks this storage
// server to drop its replica of p.
func (s *Server) Delete(p path.Path) (bool, error) {
	if err := s.backend.Delete(p); err != nil {
		s.log.WithError(err).WithField("path", p.String()).Warn("delete failed")
		return false, nil
	}
	return true, nil
}

// Copy implements api.Command: the naming server asks this storage
// server to fetch p's bytes from source and store them locally,
// implementing read-driven replication.
func (s *Server) Copy(p path.Path, source api.StorageHandle) (bool, error) {
	stub, err := api.NewStorageStubFromHandle(source)
	if err != nil {
		return false, apierr.RPCErrorf("Server.Copy", "%v", err)
	}
	size, err := stub.Size(p)
	if err != nil {
		return false, err
	}
	if err := s.backend.Create(p); err != nil {
		return false, apierr.IOErrorf("Server.Copy", "%s: %v", p, err)
	}
	const chunk = 1 << 20
	for offset := int64(0); offset < size; offset += chunk {
		length := int32(chunk)
		if remaining := size - offset; remaining < chunk {
			length = int32(remaining)
		}
		data, err := stub.Read(p, offset, length)
		if err != nil {
			return false, err
		}
		if err := s.backend.WriteAt(p, offset, data); err != nil {
			return false, apierr.IOErrorf("Server.Copy", "%s: %v", p, err)
		}
	}
	return true, nil
}
