package rpc

import (
	"io"
	"net"
	"reflect"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lfcarvalho/distfs/internal/apierr"
	"github.com/lfcarvalho/distfs/internal/netutil"
)

// Skeleton binds a listening socket and dispatches each accepted
// connection's single call envelope to a target object implementing the
// descriptor interface, on a fresh worker goroutine.
type Skeleton struct {
	descriptor reflect.Type
	target     reflect.Value
	network    string
	address    string

	// ListenError is invoked from the listener loop on accept errors. It
	// returns whether the skeleton should shut down; the default (nil)
	// always shuts down.
	ListenError func(error) bool

	// ServiceError is invoked from a worker on any non-EOF failure
	// reading a call envelope or writing its response envelope. Dispatch
	// failures are not passed to it; they go back to the caller in the
	// response envelope. The default logs.
	ServiceError func(error)

	// Stopped is invoked exactly once, after the listener has
	// terminated, with the cause (nil for a deliberate Stop).
	Stopped func(cause error)

	mu       sync.Mutex
	listener net.Listener
	running  bool
	stopOnce sync.Once
	wg       sync.WaitGroup

	log *log.Entry
}

// NewSkeleton validates that target implements descriptor and that every
// method of descriptor declares the transport-failure error, then
// prepares (but does not start) a skeleton bound to network/address. Port
// 0 (for "tcp") means OS-assigned.
func NewSkeleton(descriptor reflect.Type, target interface{}, network, address string) (*Skeleton, error) {
	if descriptor == nil || descriptor.Kind() != reflect.Interface {
		return nil, apierr.Fatalf("NewSkeleton", "descriptor must be an interface type")
	}
	if err := isRemoteInterface(descriptor); err != nil {
		return nil, apierr.Fatalf("NewSkeleton", "%v", err)
	}
	targetValue := reflect.ValueOf(target)
	if !targetValue.Type().Implements(descriptor) {
		return nil, apierr.Fatalf("NewSkeleton", "%T does not implement %s", target, descriptor)
	}
	return &Skeleton{
		descriptor: descriptor,
		target:     targetValue,
		network:    network,
		address:    address,
		log:        log.WithField("interface", descriptor.String()),
	}, nil
}

// Addr returns the bound address. Valid only after Start returns
// successfully; useful to discover the OS-assigned port.
func (s *Skeleton) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listening socket and spawns the accept loop. It returns
// once the socket is bound; it does not wait for the server to stop.
func (s *Skeleton) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return apierr.IllegalStatef("Skeleton.Start", "already running")
	}
	listener, err := netutil.Listen(s.network, s.address)
	if err != nil {
		return apierr.RPCErrorf("Skeleton.Start", "listen on %s %s: %v", s.network, s.address, err)
	}
	s.listener = listener
	s.running = true
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Skeleton) acceptLoop() {
	defer s.wg.Done()
	var cause error
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.isRunning() {
				// Stop() closed the listener; this is the expected exit path.
				break
			}
			shutDown := true
			if s.ListenError != nil {
				shutDown = s.ListenError(err)
			}
			if shutDown {
				cause = err
				break
			}
			continue
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
	s.finish(cause)
}

func (s *Skeleton) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Skeleton) finish(cause error) {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	if s.Stopped != nil {
		s.stopOnce.Do(func() { s.Stopped(cause) })
	}
}

func (s *Skeleton) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	var call CallEnvelope
	if err := readEnvelope(conn, &call); err != nil {
		if err != io.EOF {
			s.onServiceError(apierr.RPCErrorf("Skeleton.serve", "reading call envelope: %v", err))
		}
		return
	}

	response := s.dispatch(&call)
	if err := writeEnvelope(conn, response); err != nil {
		s.onServiceError(apierr.RPCErrorf("Skeleton.serve", "writing response envelope: %v", err))
	}
}

func (s *Skeleton) dispatch(call *CallEnvelope) *ResponseEnvelope {
	method, ok := s.descriptor.MethodByName(call.Method)
	if !ok {
		return &ResponseEnvelope{Err: apierr.InvalidArgumentf("Skeleton.dispatch", "no such method %q on %s", call.Method, s.descriptor)}
	}
	wantTypes := typeTags(call.Args)
	_ = method // overload resolution is by name only in Go; type tags are still validated below.
	in := make([]reflect.Value, len(call.Args))
	sig := s.target.MethodByName(call.Method).Type()
	if sig.NumIn() != len(call.Args) {
		return &ResponseEnvelope{Err: apierr.InvalidArgumentf("Skeleton.dispatch", "%s: expected %d args (%v), got %d", call.Method, sig.NumIn(), wantTypes, len(call.Args))}
	}
	for i, a := range call.Args {
		if a == nil {
			in[i] = reflect.Zero(sig.In(i))
			continue
		}
		av := reflect.ValueOf(a)
		if !av.Type().AssignableTo(sig.In(i)) {
			if av.Type().ConvertibleTo(sig.In(i)) {
				av = av.Convert(sig.In(i))
			} else {
				return &ResponseEnvelope{Err: apierr.InvalidArgumentf("Skeleton.dispatch", "%s: argument %d: have %s, want %s", call.Method, i, av.Type(), sig.In(i))}
			}
		}
		in[i] = av
	}

	out := s.target.MethodByName(call.Method).Call(in)
	return s.toResponse(out)
}

func (s *Skeleton) toResponse(out []reflect.Value) *ResponseEnvelope {
	errValue := out[len(out)-1]
	if !errValue.IsNil() {
		err := errValue.Interface().(error)
		if apiErr, ok := err.(*apierr.Error); ok {
			return &ResponseEnvelope{Err: apiErr}
		}
		return &ResponseEnvelope{Err: apierr.IOErrorf("Skeleton.dispatch", "%v", err)}
	}
	switch len(out) {
	case 1:
		return &ResponseEnvelope{}
	case 2:
		return &ResponseEnvelope{Result: out[0].Interface()}
	default:
		results := make([]interface{}, len(out)-1)
		for i := range results {
			results[i] = out[i].Interface()
		}
		return &ResponseEnvelope{Result: results}
	}
}

func (s *Skeleton) onServiceError(err error) {
	if s.ServiceError != nil {
		s.ServiceError(err)
		return
	}
	s.log.WithField("cause", err).Warning("service error")
}

// Stop is idempotent. It closes the listening socket, which unblocks the
// accept loop; in-flight workers run their single call to completion.
// Once the accept loop has exited, Stopped is invoked exactly once.
func (s *Skeleton) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		_ = listener.Close()
	}
	return nil
}

// Wait blocks until the accept loop and all in-flight workers have
// returned. Intended for tests and graceful shutdown.
func (s *Skeleton) Wait() {
	s.wg.Wait()
}
