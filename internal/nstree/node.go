// Package nstree implements the naming server's in-memory path tree and
// its per-node readers-writer lock manager.
package nstree

import "github.com/lfcarvalho/distfs/internal/path"

// ReplicationThreshold is the number of shared releases at a leaf that
// triggers a replication candidate.
const ReplicationThreshold = 20

// lockRequest is a lock request. done is closed exactly once, the instant
// the request is granted: by requestLocked when it is granted immediately,
// or by servicePending when it was queued as a waiter.
type lockRequest struct {
	exclusive bool
	done      chan struct{}
}

func newLockRequest(exclusive bool) *lockRequest {
	return &lockRequest{exclusive: exclusive, done: make(chan struct{})}
}

func (r *lockRequest) grant() {
	close(r.done)
}

// node is one entry of the path tree. All mutable fields (children,
// readers, waiters, readCount) are only ever touched while the owning
// Tree's mutex is held; node itself carries no lock of its own.
type node struct {
	path        path.Path
	isDirectory bool
	children    map[string]*node

	readers       int // -1 exclusive, 0 free, n>0 shared holders
	waiters       []*lockRequest
	writersQueued int // count of waiters that are exclusive, for O(1) writer-preference checks
	readCount     int // shared releases since the last replication trigger
}

func newNode(p path.Path, isDirectory bool) *node {
	return &node{path: p, isDirectory: isDirectory, children: make(map[string]*node)}
}

// requestLocked decides whether the request can be granted immediately
// or must be enqueued. Must be called with the owning Tree's mutex held.
func (n *node) requestLocked(exclusive bool) *lockRequest {
	req := newLockRequest(exclusive)
	grantable := false
	if exclusive {
		grantable = n.readers == 0 && n.writersQueued == 0
	} else {
		grantable = n.readers != -1 && n.writersQueued == 0
	}
	if grantable {
		if exclusive {
			n.readers = -1
		} else {
			n.readers++
		}
		req.grant()
		return req
	}
	if exclusive {
		n.writersQueued++
	}
	n.waiters = append(n.waiters, req)
	return req
}

// servicePending drains as many head-of-queue waiters as the current
// reader/writer state allows. Must be called with the owning Tree's
// mutex held, right after any change to n.readers.
func (n *node) servicePending() {
	for len(n.waiters) > 0 {
		head := n.waiters[0]
		if head.exclusive {
			if n.readers != 0 {
				return
			}
			n.readers = -1
			n.writersQueued--
			n.waiters = n.waiters[1:]
			head.grant()
			return
		}
		if n.readers == -1 {
			return
		}
		n.readers++
		n.waiters = n.waiters[1:]
		head.grant()
	}
}

// releaseLocked applies one release of the given mode and services any
// waiters the release unblocks. Must be called with the Tree's mutex held.
func (n *node) releaseLocked(exclusive bool) {
	if exclusive {
		n.readers = 0
	} else {
		n.readers--
	}
	if n.readers == 0 {
		n.servicePending()
	}
}
