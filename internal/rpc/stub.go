package rpc

import (
	"fmt"
	"net"
	"reflect"
	"time"

	"github.com/lfcarvalho/distfs/internal/apierr"
)

// Stub is the common base embedded by every generated client proxy. It
// carries the two pieces of a remote handle's identity — which interface
// it implements and which address it targets — and implements the
// universal equality/hash/string-form methods locally, never round
// tripping them to the server, per the stub factory's design.
type Stub struct {
	descriptor  reflect.Type
	network     string
	address     string
	dialTimeout time.Duration
}

// NewStub builds a stub bound to a raw address. Constructing a stub for a
// non-remote interface (one whose methods don't all declare the
// transport-failure error) is a fatal error.
func NewStub(descriptor reflect.Type, network, address string) (Stub, error) {
	if err := isRemoteInterface(descriptor); err != nil {
		return Stub{}, apierr.Fatalf("NewStub", "%v", err)
	}
	return Stub{descriptor: descriptor, network: network, address: address, dialTimeout: 10 * time.Second}, nil
}

// NewStubFromSkeleton binds a stub to an already-started skeleton's own
// address. The skeleton must be started, or bound to a fixed port.
func NewStubFromSkeleton(descriptor reflect.Type, skeleton *Skeleton) (Stub, error) {
	addr := skeleton.Addr()
	if addr == nil {
		fixed := skeleton.network == "unix" && skeleton.address != ""
		if _, port, err := net.SplitHostPort(skeleton.address); err == nil && port != "" && port != "0" {
			fixed = true
		}
		if !fixed {
			return Stub{}, apierr.Fatalf("NewStubFromSkeleton", "skeleton is not started and has no fixed address")
		}
		return NewStub(descriptor, skeleton.network, skeleton.address)
	}
	return NewStub(descriptor, addr.Network(), addr.String())
}

// NewStubFromSkeletonHost binds a stub to an already-started skeleton's
// port, but with a caller-supplied host, for NAT/firewall deployments
// where the skeleton listens on an address its clients cannot dial.
func NewStubFromSkeletonHost(descriptor reflect.Type, skeleton *Skeleton, host string) (Stub, error) {
	addr := skeleton.Addr()
	if addr == nil {
		return Stub{}, apierr.Fatalf("NewStubFromSkeletonHost", "skeleton is not started")
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return Stub{}, apierr.Fatalf("NewStubFromSkeletonHost", "%v", err)
	}
	return NewStub(descriptor, addr.Network(), net.JoinHostPort(host, port))
}

// Address returns the remote address this stub targets.
func (s Stub) Address() string { return s.address }

// Network returns the transport network ("tcp", "unix", ...) this stub dials.
func (s Stub) Network() string { return s.network }

// Equal reports whether two stubs implement the same interface and carry
// the same network address. Never makes a network call.
func (s Stub) Equal(other Stub) bool {
	return s.descriptor == other.descriptor && s.network == other.network && s.address == other.address
}

// Hash combines the interface identity and the address, for use as a map key component.
func (s Stub) Hash() uint64 {
	h := fnv64a(s.descriptor.String())
	h = fnv64aAppend(h, s.network)
	h = fnv64aAppend(h, s.address)
	return h
}

// String concatenates the interface identity and the address.
func (s Stub) String() string {
	return fmt.Sprintf("%s@%s:%s", s.descriptor, s.network, s.address)
}

// Invoke opens a connection, sends a call envelope, and returns the
// decoded result (nil if the method has no non-error return), or a
// re-raised remote exception, or an rpc-error wrapping a transport
// failure.
func (s Stub) Invoke(method string, args ...interface{}) (interface{}, error) {
	conn, err := net.DialTimeout(s.network, s.address, s.dialTimeout)
	if err != nil {
		return nil, apierr.RPCErrorf("Stub.Invoke", "dial %s %s: %v", s.network, s.address, err)
	}
	defer func() { _ = conn.Close() }()

	call := &CallEnvelope{Method: method, Types: typeTags(args), Args: args}
	if err := writeEnvelope(conn, call); err != nil {
		return nil, apierr.RPCErrorf("Stub.Invoke", "writing call envelope: %v", err)
	}

	var response ResponseEnvelope
	if err := readEnvelope(conn, &response); err != nil {
		return nil, apierr.RPCErrorf("Stub.Invoke", "reading response envelope: %v", err)
	}
	if response.Err != nil {
		// The invocation-target sentinel: the wrapped exception's class
		// (Kind) survives the round trip unchanged.
		return nil, response.Err
	}
	return response.Result, nil
}

func fnv64a(s string) uint64 {
	return fnv64aAppend(14695981039346656037, s)
}

func fnv64aAppend(h uint64, s string) uint64 {
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
