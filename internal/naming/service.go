package naming

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lfcarvalho/distfs/internal/api"
	"github.com/lfcarvalho/distfs/internal/apierr"
	"github.com/lfcarvalho/distfs/internal/nstree"
	"github.com/lfcarvalho/distfs/internal/path"
)

var (
	_ api.Service      = (*Server)(nil)
	_ api.Registration = (*Server)(nil)
)

// Server is the naming server: it implements both api.Service (the
// client-facing metadata API) and api.Registration (the storage-server
// bootstrap API), sharing one path tree and one replica registry. A
// deployment typically exposes it behind two skeletons, one per
// interface, at two different addresses.
type Server struct {
	tree     *nstree.Tree
	registry *Registry
	log      *logrus.Entry

	// replication wg lets tests observe that the background replication
	// and collapse goroutines spawned by Unlock have drained.
	wg sync.WaitGroup
}

// NewServer returns a naming server with an empty tree.
func NewServer(log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		tree:     nstree.New(),
		registry: NewRegistry(log),
		log:      log,
	}
}

// Wait blocks until every background replication/collapse triggered so
// far has completed. Tests use it to observe async effects
// deterministically; cmd/naming calls it during shutdown.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) IsDirectory(p path.Path) (bool, error) {
	return s.tree.IsDirectory(p)
}

func (s *Server) List(d path.Path) ([]string, error) {
	return s.tree.List(d)
}

func (s *Server) CreateFile(p path.Path) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}
	created, err := s.tree.InsertLeaf(p, false)
	if err != nil || !created {
		return created, err
	}
	server, err := s.registry.pickServer()
	if err != nil {
		_ = s.tree.Remove(p)
		return false, err
	}
	command, ok := s.registry.commandFor(server)
	if !ok {
		return false, apierr.IllegalStatef("Server.CreateFile", "no command endpoint for %s", server.Address)
	}
	stub, err := api.NewCommandStubFromHandle(command)
	if err != nil {
		return false, apierr.RPCErrorf("Server.CreateFile", "%v", err)
	}
	if _, err := stub.Create(p); err != nil {
		_ = s.tree.Remove(p)
		return false, err
	}
	s.registry.recordReplica(p, server)
	return true, nil
}

func (s *Server) CreateDirectory(p path.Path) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}
	return s.tree.InsertLeaf(p, true)
}

func (s *Server) Delete(p path.Path) (bool, error) {
	isDir, err := s.tree.IsDirectory(p)
	if err != nil {
		return false, err
	}
	var files []path.Path
	if isDir {
		files, err = s.tree.Enumerate(p)
		if err != nil {
			return false, err
		}
	} else {
		files = []path.Path{p}
	}
	if err := s.tree.Remove(p); err != nil {
		return false, err
	}
	allOK := true
	for _, f := range files {
		if !s.registry.deleteEverywhere(f) {
			allOK = false
		}
	}
	return allOK, nil
}

func (s *Server) GetStorage(p path.Path) (api.StorageHandle, error) {
	holders := s.registry.replicasOf(p)
	if len(holders) == 0 {
		return api.StorageHandle{}, apierr.NotFoundf("Server.GetStorage", "%s", p)
	}
	return holders[0], nil
}

func (s *Server) Lock(p path.Path, exclusive bool) error {
	return s.tree.Lock(p, exclusive)
}

func (s *Server) Unlock(p path.Path, exclusive bool) error {
	candidate, err := s.tree.Unlock(p, exclusive)
	if err != nil {
		return err
	}
	switch candidate.Kind {
	case nstree.ReplicationCandidate:
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.registry.replicate(candidate.Path)
		}()
	case nstree.CollapseCandidate:
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.registry.collapse(candidate.Path)
		}()
	}
	return nil
}

// Register implements api.Registration.
func (s *Server) Register(client api.StorageHandle, command api.CommandHandle, files []path.Path) ([]path.Path, error) {
	return s.registry.Register(s.tree, client, command, files)
}
