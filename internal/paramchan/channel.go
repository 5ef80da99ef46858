// Package paramchan implements the parameter channel: a filesystem-addressed,
// connection-oriented stream endpoint that pushes parameter snapshots from
// the controller into the running simulation. The channel is unidirectional
// and services at most one peer at a time; the simulation's first connection
// attempt is accepted lazily inside Send.
package paramchan

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/orbitctl/orbitctl/internal/log"
)

var (
	// ErrBind means the listening endpoint could not be created. Fatal to
	// controller startup.
	ErrBind = errors.New("parameter channel bind failed")

	// ErrNoPeer means no simulation connection is held and none was pending.
	// Expected and recoverable; the caller may retry on the next apply.
	ErrNoPeer = errors.New("no simulation peer connected")

	// ErrSend means a held peer failed mid-write and has been discarded.
	// Recoverable; the next Send attempts a fresh accept.
	ErrSend = errors.New("parameter send failed")
)

const (
	// defaultAcceptWait bounds the lazy accept inside Send. The deadline sits
	// slightly in the future so a pending connection is always dequeued while
	// an empty queue turns into a timeout instead of a block.
	defaultAcceptWait = 10 * time.Millisecond

	// defaultWriteTimeout bounds a single snapshot write. A wedged peer fails
	// the call instead of suspending the UI loop.
	defaultWriteTimeout = time.Second
)

// Channel is a listening parameter endpoint with at most one connected peer.
// It is owned by the UI loop and is not safe for concurrent use.
type Channel struct {
	path         string
	listener     *net.UnixListener
	peer         *net.UnixConn
	acceptWait   time.Duration
	writeTimeout time.Duration
	sanitize     Sanitizer
}

// Option configures a Channel at Open time.
type Option func(*Channel)

// WithAcceptWait overrides the bound on the lazy accept inside Send.
func WithAcceptWait(d time.Duration) Option {
	return func(c *Channel) { c.acceptWait = d }
}

// WithWriteTimeout overrides the bound on a single snapshot write.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Channel) { c.writeTimeout = d }
}

// WithSanitizer installs a value rewriter applied to both snapshot fields
// before serialization. Used by the channel-escape experiment.
func WithSanitizer(fn Sanitizer) Option {
	return func(c *Channel) { c.sanitize = fn }
}

// Open removes any pre-existing endpoint at path, binds a fresh listening
// socket there, and begins listening for the simulation's connection.
// Failures wrap ErrBind.
func Open(path string, opts ...Option) (*Channel, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty socket path", ErrBind)
	}

	// A stale endpoint from a previous run would make the bind fail with
	// "address already in use"; unlink it first.
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: remove stale endpoint %s: %v", ErrBind, path, err)
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("%w: listen on %s: %v", ErrBind, path, err)
	}

	c := &Channel{
		path:         path,
		listener:     listener,
		acceptWait:   defaultAcceptWait,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	log.Info(log.CatChannel, "Parameter channel listening", "socket", path)
	return c, nil
}

// Send delivers one snapshot to the simulation. If no peer is held it first
// attempts a bounded accept of one pending connection, failing with ErrNoPeer
// when none is waiting. Any write failure discards the held peer and fails
// with ErrSend; the next Send starts over with a fresh accept.
func (c *Channel) Send(snapshot Snapshot) error {
	if c.listener == nil {
		return fmt.Errorf("%w: channel is closed", ErrSend)
	}

	if c.peer == nil {
		if err := c.accept(); err != nil {
			return err
		}
	}

	payload := c.encode(snapshot)

	if c.writeTimeout > 0 {
		_ = c.peer.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	n, err := c.peer.Write(payload)
	if err == nil && n < len(payload) {
		err = io.ErrShortWrite
	}
	if err != nil {
		c.dropPeer("write failed")
		return fmt.Errorf("%w: %v", ErrSend, err)
	}

	log.Debug(log.CatChannel, "Snapshot delivered", "bytes", n)
	return nil
}

// accept performs the bounded lazy accept of one pending connection.
func (c *Channel) accept() error {
	if err := c.listener.SetDeadline(time.Now().Add(c.acceptWait)); err != nil {
		return fmt.Errorf("%w: arm accept deadline: %v", ErrSend, err)
	}

	conn, err := c.listener.AcceptUnix()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			log.Debug(log.CatChannel, "No pending simulation connection", "socket", c.path)
			return fmt.Errorf("%w: %s", ErrNoPeer, c.path)
		}
		return fmt.Errorf("%w: accept: %v", ErrSend, err)
	}

	c.peer = conn
	log.Info(log.CatChannel, "Simulation connected", "socket", c.path)
	return nil
}

// encode applies the sanitizer, when installed, and serializes the snapshot.
func (c *Channel) encode(snapshot Snapshot) []byte {
	if c.sanitize != nil {
		snapshot.OrbitalSpeed = c.sanitize(snapshot.OrbitalSpeed)
		snapshot.Altitude = c.sanitize(snapshot.Altitude)
	}
	return snapshot.Encode()
}

// dropPeer closes and forgets the held connection, returning the channel to
// its accepting state.
func (c *Channel) dropPeer(reason string) {
	if c.peer == nil {
		return
	}
	_ = c.peer.Close()
	c.peer = nil
	log.Warn(log.CatChannel, "Simulation peer discarded", "reason", reason)
}

// Connected reports whether a peer is currently held. UI status only; the
// peer may die between this call and the next Send.
func (c *Channel) Connected() bool {
	return c.peer != nil
}

// Path returns the endpoint's filesystem address.
func (c *Channel) Path() string {
	return c.path
}

// Close tears down the peer and the listener and unlinks the endpoint.
func (c *Channel) Close() error {
	c.dropPeer("channel closing")

	var firstErr error
	if c.listener != nil {
		if err := c.listener.Close(); err != nil {
			firstErr = err
		}
		c.listener = nil
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
		firstErr = err
	}

	log.Info(log.CatChannel, "Parameter channel closed", "socket", c.path)
	return firstErr
}
