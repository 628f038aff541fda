package launcher

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/vtnerd/MaidSafe-Drive/metrics"
)

// DefaultHandshakeSocket is used when a Config leaves HandshakeSocket
// unset.
const DefaultHandshakeSocket = "/tmp/maidsafe-drive.sock"

// status is the wire payload exchanged over the handshake socket: the
// nearest portable POSIX equivalent of the named-shared-memory mount-status
// flag the original implementation polls, plus a Query flag the status
// subcommand sets to ask the running daemon for its metrics snapshots.
type status struct {
	Mounted bool `json:"mounted"`
	Unmount bool `json:"unmount"`
	Query   bool `json:"query"`
}

// Handshake is the launcher side of the mount-status protocol: it listens
// on a Unix domain socket, blocks the caller until the mount adapter
// reports Mounted, later signals Unmount to trigger teardown, and answers
// status-subcommand queries with the daemon's current metrics.Registry
// snapshots.
type Handshake struct {
	socketPath string
	log        *zap.Logger
	registry   *metrics.Registry

	listener net.Listener
	mounted  chan struct{}
	unmount  chan struct{}
}

// NewHandshake removes any stale socket file at socketPath and starts
// listening on it. registry is queried on every Query request; it may be
// nil, in which case queries get back an empty snapshot list.
func NewHandshake(socketPath string, log *zap.Logger, registry *metrics.Registry) (*Handshake, error) {
	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on handshake socket %s: %w", socketPath, err)
	}

	h := &Handshake{
		socketPath: socketPath,
		log:        log,
		registry:   registry,
		listener:   listener,
		mounted:    make(chan struct{}),
		unmount:    make(chan struct{}),
	}
	go h.serve()
	return h, nil
}

func (h *Handshake) serve() {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			return
		}
		go h.handle(conn)
	}
}

func (h *Handshake) handle(conn net.Conn) {
	defer conn.Close()

	var msg status
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		h.log.Warn("handshake: malformed message", zap.Error(err))
		return
	}

	if msg.Query {
		var snapshots []metrics.Snapshot
		if h.registry != nil {
			snapshots = h.registry.Snapshots()
		}
		if err := json.NewEncoder(conn).Encode(snapshots); err != nil {
			h.log.Warn("handshake: failed to write status reply", zap.Error(err))
		}
		return
	}

	if msg.Mounted {
		close(h.mounted)
	}
	if msg.Unmount {
		close(h.unmount)
	}
}

// WaitMounted blocks until the mount adapter reports it has finished
// mounting.
func (h *Handshake) WaitMounted() {
	<-h.mounted
}

// WaitUnmount blocks until the mount adapter reports an unmount request,
// the signal DirectoryHandler teardown waits on before running FlushAll.
func (h *Handshake) WaitUnmount() {
	<-h.unmount
}

// Unmount returns the channel that closes when an unmount request arrives,
// for callers that want to select on it alongside other shutdown signals.
func (h *Handshake) Unmount() <-chan struct{} {
	return h.unmount
}

// Close stops listening and removes the socket file.
func (h *Handshake) Close() error {
	err := h.listener.Close()
	_ = os.Remove(h.socketPath)
	return err
}

// SignalMounted connects to socketPath and reports mounted=true, the call
// the mount adapter makes once FUSE has finished its initial handshake.
func SignalMounted(socketPath string) error {
	return send(socketPath, status{Mounted: true})
}

// SignalUnmount connects to socketPath and reports unmount=true.
func SignalUnmount(socketPath string) error {
	return send(socketPath, status{Unmount: true})
}

func send(socketPath string, msg status) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("dial handshake socket %s: %w", socketPath, err)
	}
	defer conn.Close()
	return json.NewEncoder(conn).Encode(msg)
}

// QueryStatus connects to a running daemon's handshake socket, asks for its
// current metrics.Registry snapshots, and returns them. It is what the
// status subcommand calls.
func QueryStatus(socketPath string) ([]metrics.Snapshot, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial handshake socket %s: %w", socketPath, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(status{Query: true}); err != nil {
		return nil, fmt.Errorf("send status query: %w", err)
	}

	var snapshots []metrics.Snapshot
	if err := json.NewDecoder(conn).Decode(&snapshots); err != nil {
		return nil, fmt.Errorf("read status reply: %w", err)
	}
	return snapshots, nil
}
