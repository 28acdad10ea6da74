package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/serverstate"
)

// Func is one (version, command) handler. It receives the command's flag
// word and payload (header already stripped by internal/protocol) and may
// mutate state, Client, or the Lobby/Game the client currently occupies.
type Func func(ctx context.Context, s *serverstate.State, c *client.Client, flag uint32, payload []byte) error

type key struct {
	Version constants.Version
	Command uint16
}

// Registry is the (version, command id) → handler map (spec.md §4I).
// Safe for concurrent Register calls at startup and concurrent Dispatch
// calls once built; in practice Register only ever runs during
// initialization and Dispatch only after, but the mutex makes both safe
// regardless of call order.
type Registry struct {
	mu       sync.RWMutex
	handlers map[key]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[key]Func)}
}

// Register binds handler to every version in versions for the given
// command id. Commands whose wire format is identical across dialects
// (e.g. chat, 06) register once per applicable version; commands that
// differ per dialect (e.g. 93, a DCv1 login on one and a BB login on the
// other) are registered with per-version handler funcs instead.
func (r *Registry) Register(command uint16, handler Func, versions ...constants.Version) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range versions {
		r.handlers[key{Version: v, Command: command}] = handler
	}
}

// Dispatch looks up and invokes the handler for (version, command),
// returning ErrUnknownCommand (wrapped) if none is registered.
func (r *Registry) Dispatch(ctx context.Context, s *serverstate.State, c *client.Client, command uint16, flag uint32, payload []byte) error {
	r.mu.RLock()
	h, ok := r.handlers[key{Version: c.Version, Command: command}]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("command %#02x (version %s): %w", command, c.Version, ErrUnknownCommand)
	}
	if err := h(ctx, s, c, flag, payload); err != nil {
		return fmt.Errorf("command %#02x (version %s): %w", command, c.Version, err)
	}
	return nil
}

// AllVersions is shorthand for registering a handler against every client
// dialect at once.
func AllVersions() []constants.Version {
	return []constants.Version{
		constants.VersionDCv1,
		constants.VersionDCv2,
		constants.VersionPC,
		constants.VersionGC,
		constants.VersionEp3,
		constants.VersionBB,
	}
}
