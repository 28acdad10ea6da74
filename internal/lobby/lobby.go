// Package lobby implements lobby and game containers: client membership
// with leader election, in-game item-ID allocation, and the floor-item
// table (spec.md §4F).
package lobby

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/model"
)

// ErrNoSpace is returned by Add/Move when the destination has no free
// client slot (spec.md §4F: "fail with 'no space left in lobby'").
var ErrNoSpace = errors.New("lobby: no space left in lobby")

// ErrClientMismatch is returned by Remove when the client's recorded slot
// doesn't hold that client (a consistency fault, not a normal runtime
// error path — grounded on original_source's Lobby::remove_client_locked
// logic_error).
var ErrClientMismatch = errors.New("lobby: client slot mismatch")

// ErrItemNotFound is returned by RemoveItem when no floor item has the
// given id.
var ErrItemNotFound = errors.New("lobby: floor item not present")

// Flags mirrors original_source's LobbyFlag bitset distinguishing lobbies
// from games and tracking a handful of per-container toggles.
type Flags uint32

const (
	FlagIsGame                  Flags = 0x01
	FlagCheatsEnabled           Flags = 0x02 // game only
	FlagPublic                  Flags = 0x04 // lobby only
	FlagEpisode3                Flags = 0x08 // lobby only
	FlagQuestInProgress         Flags = 0x10 // game only
	FlagJoinableQuestInProgress Flags = 0x20 // game only
	FlagDefault                 Flags = 0x40 // lobby only
	FlagPersistent              Flags = 0x80
)

// Lobby is a lobby or game container. Games and lobbies share this type;
// games set FlagIsGame and use a negative id (spec.md §4G: "games have
// negative IDs by convention").
type Lobby struct {
	mu sync.RWMutex

	ID   int32
	Name string

	Flags      Flags
	Version    constants.Version
	SectionID  uint8
	Episode    uint8
	Difficulty uint8
	Event      uint8
	Block      uint8
	LeaderID   int

	MaxClients int
	clients    []*client.Client // len == MaxClients; nil entries are empty slots

	Enemies    []model.DroppedItem
	Variations [constants.VariationsCount]uint32

	nextItemID     [constants.LobbyMaxClients]uint32
	nextGameItemID uint32
	floorItems     map[uint32]model.DroppedItem

	NextDropItem model.DroppedItem
}

// NewLobby creates an empty lobby with maxClients slots (12 for lobbies,
// 4 for games per spec.md §3's constants).
func NewLobby(id int32, name string, maxClients int, flags Flags) *Lobby {
	return &Lobby{
		ID:         id,
		Name:       name,
		Flags:      flags,
		MaxClients: maxClients,
		clients:    make([]*client.Client, maxClients),
		floorItems: make(map[uint32]model.DroppedItem),
	}
}

// IsGame reports whether this container is a game rather than a lobby.
func (l *Lobby) IsGame() bool { return l.Flags&FlagIsGame != 0 }

// CountClients returns the number of occupied slots.
func (l *Lobby) CountClients() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.countClientsLocked()
}

func (l *Lobby) countClientsLocked() int {
	n := 0
	for _, c := range l.clients {
		if c != nil {
			n++
		}
	}
	return n
}

// reassignLeaderLocked picks the lowest-indexed remaining occupied slot as
// leader, or 0 if the container is now empty (spec.md §4F: "Reassign
// leader: lowest-indexed remaining slot becomes new leader; if none
// remain, leader_id = 0").
func (l *Lobby) reassignLeaderLocked(leavingIndex int) {
	for i := 0; i < l.MaxClients; i++ {
		if i == leavingIndex {
			continue
		}
		if l.clients[i] != nil {
			l.LeaderID = i
			return
		}
	}
	l.LeaderID = 0
}

// Add inserts c into the first empty slot, scanning from the highest
// index down (spec.md §4F: "scan clients[max-1..0] for the first empty
// slot"). If the lobby was previously empty, c becomes leader.
func (l *Lobby) Add(c *client.Client) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addLocked(c)
}

func (l *Lobby) addLocked(c *client.Client) error {
	wasEmpty := l.countClientsLocked() == 0

	index := -1
	for i := l.MaxClients - 1; i >= 0; i-- {
		if l.clients[i] == nil {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("lobby %d: %w", l.ID, ErrNoSpace)
	}

	l.clients[index] = c
	c.LobbyClientID = index
	c.LobbyID = l.ID

	if wasEmpty {
		l.LeaderID = index
	}
	return nil
}

// Remove clears c's slot, unassigns its lobby id (unless a concurrent move
// already reassigned it elsewhere), and reassigns the leader (spec.md
// §4F).
func (l *Lobby) Remove(c *client.Client) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.removeLocked(c)
}

func (l *Lobby) removeLocked(c *client.Client) error {
	idx := c.LobbyClientID
	if idx < 0 || idx >= l.MaxClients || l.clients[idx] != c {
		return fmt.Errorf("lobby %d: client's recorded slot %d: %w", l.ID, idx, ErrClientMismatch)
	}

	l.clients[idx] = nil
	if c.LobbyID == l.ID {
		c.LobbyID = 0
	}
	l.reassignLeaderLocked(idx)
	return nil
}

// lobbyAddr gives each Lobby a stable ordinal for lock ordering. The
// original implementation compares the two containers' raw memory
// addresses; Go's allocator doesn't expose a meaningful total order for
// that, so this takes the address of the (never-moved, heap-allocated)
// Lobby struct itself via unsafe.Pointer, which preserves the same
// property the original relies on — a fixed, arbitrary but consistent
// ordering between any two distinct Lobby pointers for the lifetime of
// the process.
func lobbyAddr(l *Lobby) uintptr {
	return uintptr(unsafe.Pointer(l))
}

// Move relocates c from src to dst, holding both containers' locks in
// ascending memory-address order to avoid deadlock (spec.md §4F: "acquire
// B and A's write locks in ascending memory-address order"). The move is
// observed externally as atomic.
func Move(src, dst *Lobby, c *client.Client) error {
	if src == dst {
		return nil
	}

	first, second := src, dst
	if lobbyAddr(dst) < lobbyAddr(src) {
		first, second = dst, src
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if dst.countClientsLocked() >= dst.MaxClients {
		return fmt.Errorf("lobby %d: %w", dst.ID, ErrNoSpace)
	}
	if err := src.removeLocked(c); err != nil {
		return err
	}
	return dst.addLocked(c)
}

// Clients returns a snapshot slice of occupied slots (nil entries
// excluded), safe to use after releasing the lock.
func (l *Lobby) Clients() []*client.Client {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*client.Client, 0, l.MaxClients)
	for _, c := range l.clients {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Broadcast enumerates clients under the lobby's read-lock, then sends to
// each one outside the lock, skipping exclude and any send that fails
// (spec.md §5: "Broadcasts to a lobby enumerate clients under the
// lobby's read-lock, then send... A recipient leaving the lobby
// mid-broadcast just means it is skipped"). send failures are not fatal
// to the broadcast; each is reported through the recipient's own logger.
func (l *Lobby) Broadcast(exclude *client.Client, send func(*client.Client) error) {
	for _, c := range l.Clients() {
		if c == exclude {
			continue
		}
		if err := send(c); err != nil {
			c.Log.Warn("broadcast send failed", "error", err)
		}
	}
}

// FindClientBySerial returns the first client whose license carries the
// given serial number, or nil. Name-based lookup is a ServerState-level
// concern (spec.md §4G) since it requires decoding each player's UTF-16
// display name via internal/textenc, which this package doesn't depend
// on.
func (l *Lobby) FindClientBySerial(serial uint32) *client.Client {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, c := range l.clients {
		if c != nil && c.License != nil && c.License.SerialNumber == serial {
			return c
		}
	}
	return nil
}
