// Package proxy implements the single-client GameCube relay server
// described in spec.md §4J: a transparent man-in-the-middle that keeps
// exactly one client tethered to a configured upstream server, installing
// its own copy of the session cipher so it can recognize and rewrite the
// reconnect command without touching anything else on the wire.
package proxy

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/crypto"
	"github.com/openpso/server/internal/protocol"
)

// ErrBusy is returned by Accept when a session is already active; the
// proxy rejects concurrent connections (spec.md §4J step 1).
var ErrBusy = errors.New("proxy: a session is already active")

// copyrightSize is the fixed-length banner GC's 02/17 init-encryption
// command embeds ahead of the two 4-byte keys: the same 0x40-byte
// copyright field, then server key, then client key, that
// internal/handlers' sendServerInit writes; documented as a resolved Open
// Question in DESIGN.md.
const copyrightSize = 0x40

// Server relays a single GameCube-dialect connection to upstream, rewriting
// 0x19 (reconnect) commands so the client stays tethered to the proxy.
type Server struct {
	ListenAddr      string
	UpstreamAddr    string
	Log             *slog.Logger
	active          atomic.Bool
	proxyPublicIP   net.IP
	proxyPublicPort uint16
}

// New returns a Server. publicIP/publicPort are what gets written into a
// rewritten reconnect command — the address and port the client should
// come back to, which is this proxy's own listener, not the real upstream.
func New(listenAddr, upstreamAddr string, publicIP net.IP, publicPort uint16, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		ListenAddr:      listenAddr,
		UpstreamAddr:    upstreamAddr,
		Log:             log,
		proxyPublicIP:   publicIP,
		proxyPublicPort: publicPort,
	}
}

// Run listens on s.ListenAddr until ctx is canceled, relaying one session
// at a time and rejecting additional connection attempts while one is
// active.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return fmt.Errorf("proxy: listen %s: %w", s.ListenAddr, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("proxy: accept: %w", err)
		}

		if !s.active.CompareAndSwap(false, true) {
			s.Log.Warn("rejecting connection, a session is already active", "remote", conn.RemoteAddr())
			conn.Close()
			continue
		}

		go func() {
			defer s.active.Store(false)
			s.handleSession(ctx, conn)
		}()
	}
}

func (s *Server) handleSession(ctx context.Context, client net.Conn) {
	defer client.Close()
	log := s.Log.With("remote", client.RemoteAddr())

	upstream, err := net.Dial("tcp", s.UpstreamAddr)
	if err != nil {
		log.Error("dial upstream failed", "upstream", s.UpstreamAddr, "error", err)
		return
	}
	defer upstream.Close()

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := &session{
		log:             log,
		proxyPublicIP:   s.proxyPublicIP,
		proxyPublicPort: s.proxyPublicPort,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		sess.relayUpstreamToClient(sessCtx, upstream, client)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		sess.relayClientToUpstream(sessCtx, client, upstream)
	}()

	<-sessCtx.Done()
	client.Close()
	upstream.Close()
	wg.Wait()
	log.Info("proxy session ended")
}

// session holds the per-connection cipher state. Both directions start
// with a nil cipher (plaintext) until the 02/17 init-encryption command
// installs keys; the client-to-upstream cipher is the "inverted" pairing
// spec.md §4J describes, so that decoding what the client sends matches
// what a real client's own encrypt would have produced from the same key.
type session struct {
	log  *slog.Logger
	mu   sync.Mutex

	upstreamToClientCipher crypto.Stream
	clientToUpstreamCipher crypto.Stream

	proxyPublicIP   net.IP
	proxyPublicPort uint16
}

func (s *session) installCiphers(serverKey, clientKey uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upstreamToClientCipher = crypto.NewGCCipher(serverKey)
	s.clientToUpstreamCipher = crypto.NewGCCipher(clientKey)
}

// relayUpstreamToClient is the direction spec.md §4J requires inspecting:
// it frames each command through a cloned cipher so it can recognize
// 02/17 (install ciphers) and 19 (reconnect, rewritten in place), and
// otherwise forwards the original bytes unmodified.
func (s *session) relayUpstreamToClient(ctx context.Context, upstream, client net.Conn) {
	framer := protocol.NewFramer(constants.VersionGC, nil)
	buf := make([]byte, 4096)

	for {
		if ctx.Err() != nil {
			return
		}
		n, err := upstream.Read(buf)
		if n > 0 {
			framer.Feed(buf[:n])
			forwarded, ferr := s.drainUpstreamCommands(framer)
			if ferr != nil {
				s.log.Warn("malformed command from upstream, closing session", "error", ferr)
				return
			}
			if len(forwarded) > 0 {
				if _, werr := client.Write(forwarded); werr != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// drainUpstreamCommands pulls every complete command currently buffered in
// framer and inspects/rewrites the ones the proxy cares about, returning
// the bytes that should be written to the client.
func (s *session) drainUpstreamCommands(framer *protocol.Framer) (forwarded []byte, err error) {
	s.mu.Lock()
	cipher := s.upstreamToClientCipher
	s.mu.Unlock()
	framer.SetCipher(cipher)

	for {
		preCommandCipher := cloneOrNil(cipher)

		hdr, payload, ok, ferr := framer.Next()
		if ferr != nil {
			return forwarded, ferr
		}
		if !ok {
			break
		}

		switch hdr.Command {
		case constants.CommandServerInit, constants.CommandServerInit9:
			serverKey, clientKey, perr := parseInitEncryptionKeys(payload)
			if perr != nil {
				s.log.Warn("could not parse init-encryption keys, leaving session unencrypted", "error", perr)
			} else {
				s.installCiphers(serverKey, clientKey)
			}
			forwarded = appendEncoded(forwarded, constants.VersionGC, hdr, payload, preCommandCipher)

		case constants.CommandReconnect:
			rewritten, perr := rewriteReconnect(payload, s.proxyPublicIP, s.proxyPublicPort)
			if perr != nil {
				s.log.Warn("could not rewrite reconnect command, forwarding unmodified", "error", perr)
				forwarded = appendEncoded(forwarded, constants.VersionGC, hdr, payload, preCommandCipher)
				continue
			}
			s.log.Info("rewrote reconnect command to tether client to proxy",
				"proxy_ip", s.proxyPublicIP, "proxy_port", s.proxyPublicPort)
			forwarded = appendEncoded(forwarded, constants.VersionGC, hdr, rewritten, preCommandCipher)

		default:
			forwarded = appendEncoded(forwarded, constants.VersionGC, hdr, payload, preCommandCipher)
		}
	}

	return forwarded, nil
}

func cloneOrNil(c crypto.Stream) crypto.Stream {
	if c == nil {
		return nil
	}
	return c.Clone()
}

// appendEncoded re-serializes a (possibly modified) command using cipher,
// a clone captured from before this command was consumed off the wire, so
// its keystream position matches what the original bytes were encrypted
// with.
func appendEncoded(dst []byte, version constants.Version, hdr protocol.Header, payload []byte, cipher crypto.Stream) []byte {
	headerSize := version.HeaderSize()
	total := headerSize + len(payload)
	aligned := roundUp(total, headerSize)

	buf := make([]byte, aligned)
	hdr.Size = total
	n, err := protocol.EncodeHeader(version, buf, hdr)
	if err != nil {
		// Unreachable for a version/header pair this package constructs
		// itself, but fall back to forwarding nothing rather than a
		// corrupt packet.
		return dst
	}
	copy(buf[n:], payload)

	if cipher != nil {
		if err := cipher.Encrypt(buf, aligned); err != nil {
			return dst
		}
	}
	return append(dst, buf...)
}

func roundUp(size, boundary int) int {
	if size%boundary == 0 {
		return size
	}
	return size + (boundary - size%boundary)
}

// relayClientToUpstream is pure passthrough: spec.md §4J only requires
// inspecting the upstream-to-client direction, so client bytes are
// forwarded unmodified. The inverted cipher is still constructed in
// installCiphers so the proxy could decode this direction if a future
// subcommand whitelist needed it, matching "install GC ciphers on both
// directions" even though nothing mutates this side today.
func (s *session) relayClientToUpstream(ctx context.Context, client, upstream net.Conn) {
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := client.Read(buf)
		if n > 0 {
			if _, werr := upstream.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("client read error", "error", err)
			}
			return
		}
	}
}

// parseInitEncryptionKeys extracts the server and client cipher keys from
// a 02/17 command payload: a fixed copyright banner followed by two
// little-endian uint32 keys.
func parseInitEncryptionKeys(payload []byte) (serverKey, clientKey uint32, err error) {
	need := copyrightSize + 8
	if len(payload) < need {
		return 0, 0, fmt.Errorf("init-encryption payload too short: have %d, need %d", len(payload), need)
	}
	serverKey = binary.LittleEndian.Uint32(payload[copyrightSize : copyrightSize+4])
	clientKey = binary.LittleEndian.Uint32(payload[copyrightSize+4 : copyrightSize+8])
	return serverKey, clientKey, nil
}

// rewriteReconnect rewrites a 0x19 command's destination IP and port to
// point at the proxy's own listener, keeping the client tethered through
// its reconnection (spec.md §4J step 4). The payload layout is a 4-byte
// IPv4 address followed by a little-endian uint16 port, the conventional
// newserv reconnect-command shape.
func rewriteReconnect(payload []byte, ip net.IP, port uint16) ([]byte, error) {
	if len(payload) < 6 {
		return nil, fmt.Errorf("reconnect payload too short: have %d, need 6", len(payload))
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("proxy public address %v is not IPv4", ip)
	}

	out := append([]byte(nil), payload...)
	copy(out[0:4], ip4)
	binary.LittleEndian.PutUint16(out[4:6], port)
	return out, nil
}
