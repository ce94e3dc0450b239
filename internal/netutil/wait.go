package netutil

import (
	"net"
	"time"
)

// WaitForListener retries dialing network/address until it accepts a
// connection or timeout elapses, returning the last dial error on
// timeout. Storage servers use this to wait for the naming server's
// Registration endpoint to come up before their first register call.
func WaitForListener(network, address string, timeout time.Duration) error {
	start := time.Now()
	var lastErr error
	for time.Since(start) < timeout {
		if lastErr = tryDial(network, address); lastErr == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return lastErr
}

func tryDial(network, address string) error {
	conn, err := net.Dial(network, address)
	if err == nil {
		_ = conn.Close()
	}
	return err
}
