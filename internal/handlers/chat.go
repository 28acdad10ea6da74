package handlers

import (
	"fmt"
	"strings"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/lobby"
	"github.com/openpso/server/internal/serverstate"
)

// Precondition gates a chat command before its body runs. Returning a
// non-empty reason fails the gate; the registry sends that reason back to
// the caller and never invokes Run (spec.md §4I: "a one-line red-tinted
// user-visible message is returned via the chat channel" and "a message
// that fails every precondition never mutates ServerState, Lobby, or
// Client state beyond sending one text message to the caller").
type Precondition func(s *serverstate.State, c *client.Client) (reason string, ok bool)

// redMessage prefixes s with the client-side red-color directive PSO's text
// renderer recognizes (spec.md §7: "one-line red message" for precondition
// failures). The prefix is a literal three-character sequence, applied
// before the text passes through encodeText/EncodeColorEscapes.
func redMessage(s string) string {
	return "$C6" + s
}

// RequiresPrivilege fails unless c's privilege bitmask includes priv.
func RequiresPrivilege(priv constants.Privilege) Precondition {
	return func(_ *serverstate.State, c *client.Client) (string, bool) {
		if c.Privileges&priv == 0 {
			return redMessage("You do not have permission to use this command."), false
		}
		return "", true
	}
}

// RequiresVersion fails unless c's version is one of the given versions.
func RequiresVersion(versions ...constants.Version) Precondition {
	return func(_ *serverstate.State, c *client.Client) (string, bool) {
		for _, v := range versions {
			if c.Version == v {
				return "", true
			}
		}
		return redMessage("This command isn't available on your game version."), false
	}
}

// RequiresInGame fails unless c is currently in a game (not a lobby).
func RequiresInGame(s *serverstate.State, c *client.Client) (string, bool) {
	l := s.FindLobbyByID(c.LobbyID)
	if l == nil || !l.IsGame() {
		return redMessage("This command only works inside a game."), false
	}
	return "", true
}

// RequiresInLobby fails unless c is currently in a lobby (not a game).
func RequiresInLobby(s *serverstate.State, c *client.Client) (string, bool) {
	l := s.FindLobbyByID(c.LobbyID)
	if l == nil || l.IsGame() {
		return redMessage("This command only works in the lobby."), false
	}
	return "", true
}

// RequiresLeader fails unless c is the current game/lobby's leader.
func RequiresLeader(s *serverstate.State, c *client.Client) (string, bool) {
	l := s.FindLobbyByID(c.LobbyID)
	if l == nil || l.LeaderID != c.LobbyClientID {
		return redMessage("Only the leader can use this command."), false
	}
	return "", true
}

// RequiresCheatsEnabled fails unless the client's current game has cheats
// toggled on.
func RequiresCheatsEnabled(s *serverstate.State, c *client.Client) (string, bool) {
	l := s.FindLobbyByID(c.LobbyID)
	if l == nil || l.Flags&lobby.FlagCheatsEnabled == 0 {
		return redMessage("Cheats are not enabled in this game."), false
	}
	return "", true
}

// ChatCommandFunc is a chat command's body, run only once every
// precondition has passed. It returns the reply text shown to the caller
// (empty for no reply).
type ChatCommandFunc func(s *serverstate.State, c *client.Client, args string) (reply string, err error)

// ChatCommand is one registered `$name` command.
type ChatCommand struct {
	Name          string
	Preconditions []Precondition
	Run           ChatCommandFunc
}

// ChatRegistry is the canonical-name → ChatCommand map (spec.md §4I: "a
// map from a canonical name to a function with precondition checks").
type ChatRegistry struct {
	commands map[string]ChatCommand
}

// NewChatRegistry returns an empty chat command registry.
func NewChatRegistry() *ChatRegistry {
	return &ChatRegistry{commands: make(map[string]ChatCommand)}
}

// Register adds cmd, keyed by its lowercased name.
func (r *ChatRegistry) Register(cmd ChatCommand) {
	r.commands[strings.ToLower(cmd.Name)] = cmd
}

// IsChatCommand reports whether text (the raw chat message) is a chat
// command invocation rather than ordinary chat (spec.md §4I: "if the text
// begins with $").
func IsChatCommand(text string) bool {
	return strings.HasPrefix(text, "$")
}

// Dispatch parses "$name args" out of text and runs the matching command,
// evaluating every precondition before Run. On any precondition failure
// or unknown command name, it returns a reply string and no error — these
// are expected, user-facing outcomes, not exceptional ones (spec.md §9:
// "replace thrown exceptions with a result type or early-return").
func (r *ChatRegistry) Dispatch(s *serverstate.State, c *client.Client, text string) (reply string, err error) {
	if !IsChatCommand(text) {
		return "", fmt.Errorf("chat command dispatch: %q: %w", text, ErrProtocolViolation)
	}

	name, args, _ := strings.Cut(strings.TrimPrefix(text, "$"), " ")
	name = strings.ToLower(name)

	cmd, ok := r.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command: $%s", name), nil
	}

	for _, pre := range cmd.Preconditions {
		if reason, ok := pre(s, c); !ok {
			return reason, nil
		}
	}

	reply, err = cmd.Run(s, c, args)
	if err != nil {
		return "", fmt.Errorf("chat command $%s: %w", name, err)
	}
	return reply, nil
}
