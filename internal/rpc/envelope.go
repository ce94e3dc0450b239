// Package rpc implements the reflective request/response transport
// described by the naming/storage protocol: a call envelope carrying a
// method name, its argument type tags, and the arguments, and a response
// envelope carrying either a result or an exception. One envelope pair is
// exchanged per TCP connection, encoded with encoding/gob, which already
// gives the self-delimited records the wire format requires without
// inventing a bespoke codec (see DESIGN.md).
package rpc

import (
	"encoding/gob"
	"fmt"
	"net"
	"reflect"

	"github.com/lfcarvalho/distfs/internal/apierr"
)

func init() {
	// bool, string, and the sized integer types are stored as interface{}
	// payloads inside CallEnvelope.Args and ResponseEnvelope.Result, so
	// gob needs them pre-registered like any other concrete type.
	gob.Register(bool(false))
	gob.Register(int(0))
	gob.Register(int32(0))
	gob.Register(int64(0))
	gob.Register("")
}

// CallEnvelope is the record a stub sends to a skeleton.
type CallEnvelope struct {
	Method string
	Types  []string
	Args   []interface{}
}

// ResponseEnvelope is the record a skeleton sends back to a stub.
type ResponseEnvelope struct {
	Result interface{}
	Err    *apierr.Error
}

// typeTag returns a portable name for v's type. A stub records these
// tags in CallEnvelope.Types; the skeleton resolves the method by name
// alone and does not consult that field, checking the argument values
// against the method signature instead.
func typeTag(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

func typeTags(args []interface{}) []string {
	tags := make([]string, len(args))
	for i, a := range args {
		tags[i] = typeTag(a)
	}
	return tags
}

// writeEnvelope gob-encodes v onto conn. gob.Encoder writes one
// self-delimited record per Encode call, which is exactly the framing the
// wire format needs for "one request and one response per connection".
func writeEnvelope(conn net.Conn, v interface{}) error {
	return gob.NewEncoder(conn).Encode(v)
}

func readEnvelope(conn net.Conn, v interface{}) error {
	return gob.NewDecoder(conn).Decode(v)
}

// isRemoteInterface returns nil if t is an interface type and every
// method it declares has a final return value of type error — the Go
// rendition of "declares the protocol's transport-failure error" — and
// otherwise an error naming the problem.
func isRemoteInterface(t reflect.Type) error {
	if t.Kind() != reflect.Interface {
		return fmt.Errorf("rpc: %s is not an interface", t)
	}
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.Type.NumOut() == 0 || m.Type.Out(m.Type.NumOut()-1) != reflect.TypeOf((*error)(nil)).Elem() {
			return fmt.Errorf("rpc: method %s of %s does not declare a transport-failure error", m.Name, t)
		}
	}
	return nil
}
