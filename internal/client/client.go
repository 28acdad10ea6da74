// Package client holds the per-connection Client type shared by the
// frontend, lobby, and handler packages (spec.md §3: "Client represents
// one connected player").
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/crypto"
	"github.com/openpso/server/internal/license"
	"github.com/openpso/server/internal/model"
	"github.com/openpso/server/internal/protocol"
)

// DrainTimeout bounds how long a closing connection's write buffer is
// flushed before the connection is torn down regardless (spec.md §3
// supplemental detail, grounded on newserv's Client destructor-time flush
// behavior — see DESIGN.md).
const DrainTimeout = 5 * time.Second

// Client is one connected player's full session state.
type Client struct {
	Version constants.Version
	Conn    net.Conn

	InCipher  crypto.Stream
	OutCipher crypto.Stream
	Framer    *protocol.Framer

	Privileges constants.Privilege

	// LobbyID is the containing Lobby or Game's id; games use negative ids
	// by convention (spec.md §4G), so this is signed, the same type as
	// Lobby.ID.
	LobbyID       int32
	LobbyClientID int // 0-11, also used as the 8-bit subcommand client id

	CheatInfiniteHP bool
	CheatInfiniteTP bool

	PendingBankWithdraw *BankOp

	License *license.License
	Player  *model.Player

	Log *slog.Logger

	mu               sync.Mutex
	shouldDisconnect bool
	draining         bool
	cancelDrain      context.CancelFunc

	// sendMu is the "only two fields are under the lock — the connection
	// handle and the send buffer" lock of spec.md §5: it serializes every
	// write to Conn (and every advance of OutCipher's keystream) so a
	// lobby broadcast running on another goroutine can never interleave
	// its bytes with this client's own reply to a command it just
	// dispatched.
	sendMu sync.Mutex
}

// BankOp records an in-flight bank withdraw/deposit awaiting the matching
// follow-up subcommand (spec.md §3: "pending-bank operations").
type BankOp struct {
	Withdraw bool
	ItemID   uint32
	Amount   uint32
}

// New creates a Client freshly accepted on conn, with no cipher installed
// yet (handshake assigns one).
func New(version constants.Version, conn net.Conn, log *slog.Logger) *Client {
	return &Client{
		Version: version,
		Conn:    conn,
		Framer:  protocol.NewFramer(version, nil),
		Log:     log,
	}
}

// Send frames, encrypts, and writes one command to this client's
// connection. It is the only path that ever writes to Conn, and is safe
// to call concurrently from the client's own read loop and from any
// number of lobby/server broadcast goroutines at once (spec.md §5:
// "Broadcasts to a lobby enumerate clients under the lobby's read-lock,
// then send (each send takes that client's own write-lock briefly)").
func (c *Client) Send(command uint16, flag uint32, payload []byte) error {
	headerSize := c.Version.HeaderSize()
	total := headerSize + len(payload)
	aligned := total
	if rem := aligned % headerSize; rem != 0 {
		aligned += headerSize - rem
	}

	buf := make([]byte, aligned)
	if _, err := protocol.EncodeHeader(c.Version, buf, protocol.Header{Command: command, Flag: flag, Size: total}); err != nil {
		return fmt.Errorf("client: encode command %#02x: %w", command, err)
	}
	copy(buf[headerSize:], payload)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.OutCipher != nil {
		if err := c.OutCipher.Encrypt(buf, aligned); err != nil {
			return fmt.Errorf("client: encrypt command %#02x: %w", command, err)
		}
	}
	_, err := c.Conn.Write(buf)
	return err
}

// SetCiphers installs the session ciphers once a handshake completes.
func (c *Client) SetCiphers(in, out crypto.Stream) {
	c.InCipher = in
	c.OutCipher = out
	c.Framer.SetCipher(in)
}

// MarkForDisconnect flags the client to be dropped once its current
// command finishes processing (spec.md §4C step 4: "Handlers may throw;
// the exception is caught, logged, and the client is marked for
// disconnect").
func (c *Client) MarkForDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldDisconnect = true
}

// ShouldDisconnect reports whether MarkForDisconnect has been called.
func (c *Client) ShouldDisconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shouldDisconnect
}

// BeginDraining enters the draining substate: reads stop, but writes keep
// flushing until the buffer empties or DrainTimeout elapses (spec.md §3:
// "the connection enters a draining substate in which reads are disabled
// but the framework continues flushing writes until empty").
func (c *Client) BeginDraining(ctx context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draining {
		return ctx
	}
	c.draining = true
	drainCtx, cancel := context.WithTimeout(ctx, DrainTimeout)
	c.cancelDrain = cancel
	return drainCtx
}

// IsDraining reports whether the connection has entered the draining
// substate.
func (c *Client) IsDraining() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draining
}

// FinishDraining releases the drain deadline's resources once the write
// buffer has emptied (or the deadline fired).
func (c *Client) FinishDraining() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelDrain != nil {
		c.cancelDrain()
	}
}
