package nstree

import (
	"github.com/lfcarvalho/distfs/internal/apierr"
	"github.com/lfcarvalho/distfs/internal/path"
)

// CandidateKind classifies what an Unlock should prompt the naming
// service's replication policy to do, if anything.
type CandidateKind int

const (
	// NoCandidate means Unlock's release did not cross a replication or
	// collapse trigger.
	NoCandidate CandidateKind = iota
	// ReplicationCandidate means a shared release at a leaf file just
	// reached the replication threshold.
	ReplicationCandidate
	// CollapseCandidate means an exclusive release at a leaf file just completed.
	CollapseCandidate
)

// Candidate is Unlock's report to the naming service's replication policy.
type Candidate struct {
	Kind CandidateKind
	Path path.Path
}

// chainLocked returns the nodes from root to p inclusive, in that order.
// Must be called with t.mu held.
func (t *Tree) chainLocked(p path.Path) ([]*node, error) {
	n := t.root
	chain := []*node{n}
	for _, c := range p.Components() {
		child, ok := n.children[c]
		if !ok {
			return nil, apierr.NotFoundf("Tree.lock", "%s", p)
		}
		chain = append(chain, child)
		n = child
	}
	return chain, nil
}

// Lock acquires a shared lock on every ancestor of p plus a lock on p
// itself in the requested mode, atomically in root-to-target order. It
// fails with not-found before enqueueing any waiter if p does not exist.
func (t *Tree) Lock(p path.Path, exclusive bool) error {
	t.mu.Lock()
	chain, err := t.chainLocked(p)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	requests := make([]*lockRequest, len(chain))
	for i, n := range chain {
		wantExclusive := exclusive && i == len(chain)-1
		requests[i] = n.requestLocked(wantExclusive)
	}
	t.mu.Unlock()

	// Waiting happens outside the tree mutex so a pending acquirer never
	// blocks other metadata operations.
	for _, req := range requests {
		<-req.done
	}
	return nil
}

// Unlock releases exactly the chain Lock(p, exclusive) acquired. Calls
// must be balanced; unlocking a path that was never locked is a
// programming error. Unlocking a path that no longer exists in the tree
// is reported as invalid-argument rather than crashing.
func (t *Tree) Unlock(p path.Path, exclusive bool) (Candidate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	chain, err := t.chainLocked(p)
	if err != nil {
		return Candidate{}, apierr.InvalidArgumentf("Tree.Unlock", "%s: %v", p, err)
	}

	candidate := Candidate{}
	for i, n := range chain {
		isTarget := i == len(chain)-1
		releaseExclusive := isTarget && exclusive
		n.releaseLocked(releaseExclusive)

		if !isTarget {
			continue
		}
		switch {
		case exclusive:
			if !n.isDirectory {
				candidate = Candidate{Kind: CollapseCandidate, Path: p}
			}
		case !n.isDirectory:
			n.readCount++
			if n.readCount >= ReplicationThreshold {
				n.readCount = 0
				candidate = Candidate{Kind: ReplicationCandidate, Path: p}
			}
		}
	}
	return candidate, nil
}
