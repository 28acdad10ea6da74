// Package serverstate holds the process-wide registry tying every lobby
// and game together: id/name lookup, the lobby/game id allocators, the
// license store, and the handful of static indices handlers consult on
// every command (spec.md §4G).
package serverstate

import (
	"fmt"
	"net"
	"sync"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/crypto"
	"github.com/openpso/server/internal/license"
	"github.com/openpso/server/internal/lobby"
)

// PortConfig binds one listening port to a client version and server
// behavior (spec.md §1: "each configured port serves exactly one version
// and one behavior").
type PortConfig struct {
	Port     uint16
	Version  constants.Version
	Behavior string
}

// MenuItem is one line of a static menu (main menu, information menu).
type MenuItem struct {
	ID    uint32
	Flags uint32
	Text  string
}

// State is the process-wide server registry. All fields reachable from
// multiple connections are guarded by mu; static-data and config fields
// set up once at startup are not (spec.md §4G: "read-mostly startup
// configuration needs no lock of its own").
type State struct {
	Name string

	Ports []PortConfig

	Licenses *license.Store

	// BBKeys holds every loaded Blue Burst key file (spec.md §4B: "the
	// server may hold several" key files for different client patches).
	// Handshake uses only BBKeys[0]; crypto.DetectBBKey is not called on
	// the handshake path (see DESIGN.md).
	BBKeys []*crypto.BBKeyFile

	MainMenu           []MenuItem
	InformationMenu    []MenuItem
	InformationContent []string

	LocalAddress    net.IP
	ExternalAddress net.IP

	mu          sync.RWMutex
	idToLobby   map[int32]*lobby.Lobby
	nameToLobby map[string]*lobby.Lobby
	nextLobbyID int32
	nextGameID  int32
}

// New creates an empty registry bound to the given license store.
func New(name string, licenses *license.Store) *State {
	return &State{
		Name:        name,
		Licenses:    licenses,
		idToLobby:   make(map[int32]*lobby.Lobby),
		nameToLobby: make(map[string]*lobby.Lobby),
		nextLobbyID: 1,
		nextGameID:  -1,
	}
}

// NextLobbyID returns the next id for a persistent, public lobby
// (positive, increasing).
func (s *State) NextLobbyID() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextLobbyID
	s.nextLobbyID++
	return id
}

// NextGameID returns the next id for a player-created game (negative,
// decreasing, per spec.md §4G's "games have negative ids by convention").
func (s *State) NextGameID() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextGameID
	s.nextGameID--
	return id
}

// AddLobby registers l under both its id and name.
func (s *State) AddLobby(l *lobby.Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idToLobby[l.ID] = l
	if l.Name != "" {
		s.nameToLobby[l.Name] = l
	}
}

// RemoveLobby unregisters the lobby with the given id, if present.
func (s *State) RemoveLobby(id int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.idToLobby[id]
	if !ok {
		return
	}
	delete(s.idToLobby, id)
	if l.Name != "" {
		delete(s.nameToLobby, l.Name)
	}
}

// FindLobbyByID returns the lobby or game with the given id, or nil.
func (s *State) FindLobbyByID(id int32) *lobby.Lobby {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idToLobby[id]
}

// FindLobbyByName returns the lobby with the given name, or nil. Games
// are never registered by name (spec.md §4G: "only persistent lobbies
// are name-addressable").
func (s *State) FindLobbyByName(name string) *lobby.Lobby {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nameToLobby[name]
}

// AllLobbies returns a snapshot of every registered lobby and game.
func (s *State) AllLobbies() []*lobby.Lobby {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*lobby.Lobby, 0, len(s.idToLobby))
	for _, l := range s.idToLobby {
		out = append(out, l)
	}
	return out
}

// FindClientBySerial scans every registered lobby and game for a client
// whose license carries the given serial number (spec.md §4G: "finding a
// player anywhere on the server by serial number or name").
func (s *State) FindClientBySerial(serial uint32) *client.Client {
	for _, l := range s.AllLobbies() {
		if c := l.FindClientBySerial(serial); c != nil {
			return c
		}
	}
	return nil
}

// AddClientToAvailableLobby places c into a public lobby with a free slot
// (spec.md §4G, grounded on original_source's
// add_client_to_available_lobby). Lobbies are scanned in AllLobbies' map
// order, not registration order, so which of several open lobbies is
// chosen is not defined.
func (s *State) AddClientToAvailableLobby(c *client.Client) error {
	for _, l := range s.AllLobbies() {
		if l.IsGame() || l.Flags&lobby.FlagPublic == 0 {
			continue
		}
		if err := l.Add(c); err == nil {
			return nil
		}
	}
	return fmt.Errorf("serverstate: no public lobby has a free slot")
}

// BroadcastAll sends to every client in every registered lobby and game
// (spec.md §4I: "$ann <text> ... broadcasts to whole server"). Since
// every connected client occupies exactly one lobby or game slot,
// enumerating all_lobbies() reaches the entire server.
func (s *State) BroadcastAll(send func(c *client.Client) error) {
	for _, l := range s.AllLobbies() {
		l.Broadcast(nil, send)
	}
}

// ConnectAddressForClient picks which address (local vs external) a
// client should be told to reconnect to, based on whether its peer
// address falls within the server's known local subnet set (spec.md §4J,
// grounded on original_source's connect_address_for_client: LAN clients
// get the local address, everyone else gets the external one).
func (s *State) ConnectAddressForClient(c *client.Client) net.IP {
	remote, ok := c.Conn.RemoteAddr().(*net.TCPAddr)
	if !ok || remote.IP == nil {
		return s.ExternalAddress
	}
	if remote.IP.IsLoopback() || remote.IP.IsPrivate() {
		return s.LocalAddress
	}
	return s.ExternalAddress
}
