// Package naming implements the naming server: the metadata API atop
// internal/nstree, and the storage-server registration/replication/
// collapse policy that keeps replicas[path] consistent with the lock
// manager's access-count triggers.
package naming

import (
	"context"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lfcarvalho/distfs/internal/api"
	"github.com/lfcarvalho/distfs/internal/apierr"
	"github.com/lfcarvalho/distfs/internal/path"
)

// Registry is the naming server's storage-server bootstrap and replica
// bookkeeping.
type Registry struct {
	log *logrus.Entry

	mu         sync.Mutex
	servers    []api.StorageHandle
	commandOf  map[api.StorageHandle]api.CommandHandle
	registered map[api.StorageHandle]bool
	replicas   map[string][]api.StorageHandle // keyed by path.String()
}

// NewRegistry returns an empty registry.
func NewRegistry(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		log:        log,
		commandOf:  make(map[api.StorageHandle]api.CommandHandle),
		registered: make(map[api.StorageHandle]bool),
		replicas:   make(map[string][]api.StorageHandle),
	}
}

// Register records client as a newly-registered storage server, inserts
// each of files into tree (ignoring the root), and reports the subset
// that were duplicates of an already-registered file. tree is the
// naming server's path tree; insertion (not locking) is this call's
// only interaction with it. Registry.mu serializes registration against
// itself; it does not serialize against lock-manager activity on tree.
func (r *Registry) Register(tree pathInserter, client api.StorageHandle, command api.CommandHandle, files []path.Path) ([]path.Path, error) {
	if client.Address == "" || command.Address == "" {
		return nil, apierr.NullArgumentf("Registry.Register", "client and command handles must be non-empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered[client] {
		return nil, apierr.IllegalStatef("Registry.Register", "storage server %s already registered", client.Address)
	}

	var duplicates []path.Path
	for _, p := range files {
		if p.IsRoot() {
			continue
		}
		created := tree.AddWithIntermediates(p, false)
		key := p.String()
		if created {
			r.replicas[key] = []api.StorageHandle{client}
		} else {
			duplicates = append(duplicates, p)
		}
	}

	r.registered[client] = true
	r.servers = append(r.servers, client)
	r.commandOf[client] = command
	r.log.WithFields(logrus.Fields{
		"storage":    client.Address,
		"files":      len(files),
		"duplicates": len(duplicates),
	}).Info("storage server registered")
	return duplicates, nil
}

// pathInserter is the subset of *nstree.Tree Register needs; narrowed to
// keep this package's tests free of a full tree fixture where a fake suffices.
type pathInserter interface {
	AddWithIntermediates(p path.Path, isDirectory bool) bool
}

// pickServer returns a registered storage server.
func (r *Registry) pickServer() (api.StorageHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.servers) == 0 {
		return api.StorageHandle{}, apierr.IllegalStatef("Registry.pickServer", "no storage server registered")
	}
	return r.servers[rand.Intn(len(r.servers))], nil
}

// commandFor returns the command endpoint paired with a storage handle.
func (r *Registry) commandFor(h api.StorageHandle) (api.CommandHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.commandOf[h]
	return c, ok
}

// recordReplica records client as the sole replica holder for p,
// replacing any existing replica set.
func (r *Registry) recordReplica(p path.Path, client api.StorageHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replicas[p.String()] = []api.StorageHandle{client}
}

// replicasOf returns a defensive copy of the replica set for p.
func (r *Registry) replicasOf(p path.Path) []api.StorageHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.replicas[p.String()]
	cp := make([]api.StorageHandle, len(cur))
	copy(cp, cur)
	return cp
}

// clearReplicas removes p's replica entry entirely, e.g. on delete.
func (r *Registry) clearReplicas(p path.Path) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.replicas, p.String())
}

// setReplicas overwrites p's replica set, e.g. after a collapse.
func (r *Registry) setReplicas(p path.Path, handles []api.StorageHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replicas[p.String()] = handles
}

// candidateServerFor returns a registered storage server not already
// holding p, for read-driven replication.
func (r *Registry) candidateServerFor(p path.Path) (api.StorageHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	holders := make(map[api.StorageHandle]bool, len(r.replicas[p.String()]))
	for _, h := range r.replicas[p.String()] {
		holders[h] = true
	}
	candidates := make([]api.StorageHandle, 0, len(r.servers))
	for _, s := range r.servers {
		if !holders[s] {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return api.StorageHandle{}, false
	}
	return candidates[rand.Intn(len(candidates))], true
}

// replicate implements read-driven replication: copy p from one of its
// current holders to a server not already holding it.
func (r *Registry) replicate(p path.Path) {
	target, ok := r.candidateServerFor(p)
	if !ok {
		return
	}
	holders := r.replicasOf(p)
	if len(holders) == 0 {
		return
	}
	source := holders[rand.Intn(len(holders))]
	command, ok := r.commandFor(target)
	if !ok {
		return
	}
	stub, err := api.NewCommandStubFromHandle(command)
	if err != nil {
		r.log.WithError(err).Warn("replicate: could not build command stub")
		return
	}
	ok2, err := stub.Copy(p, source)
	if err != nil || !ok2 {
		r.log.WithError(err).WithField("path", p.String()).Warn("replicate: copy failed")
		return
	}
	r.mu.Lock()
	r.replicas[p.String()] = append(r.replicas[p.String()], target)
	r.mu.Unlock()
}

// collapse implements write-driven collapse: retain one replica of p,
// deleting it from every other holder.
func (r *Registry) collapse(p path.Path) {
	holders := r.replicasOf(p)
	if len(holders) <= 1 {
		return
	}
	keep := holders[rand.Intn(len(holders))]
	g, ctx := errgroup.WithContext(context.Background())
	_ = ctx
	for _, h := range holders {
		if h == keep {
			continue
		}
		h := h
		g.Go(func() error {
			command, ok := r.commandFor(h)
			if !ok {
				return nil
			}
			stub, err := api.NewCommandStubFromHandle(command)
			if err != nil {
				return nil
			}
			if _, err := stub.Delete(p); err != nil {
				r.log.WithError(err).WithField("path", p.String()).Warn("collapse: delete failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	r.setReplicas(p, []api.StorageHandle{keep})
}

// deleteEverywhere fans out a delete(p) to every current replica holder,
// clearing the replica entry regardless of remote outcome, and reports
// whether every remote delete succeeded.
func (r *Registry) deleteEverywhere(p path.Path) bool {
	holders := r.replicasOf(p)
	r.clearReplicas(p)
	if len(holders) == 0 {
		return true
	}
	allOK := true
	var mu sync.Mutex
	g, _ := errgroup.WithContext(context.Background())
	for _, h := range holders {
		h := h
		g.Go(func() error {
			command, ok := r.commandFor(h)
			if !ok {
				mu.Lock()
				allOK = false
				mu.Unlock()
				return nil
			}
			stub, err := api.NewCommandStubFromHandle(command)
			if err != nil {
				mu.Lock()
				allOK = false
				mu.Unlock()
				return nil
			}
			ok2, err := stub.Delete(p)
			if err != nil || !ok2 {
				mu.Lock()
				allOK = false
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return allOK
}
