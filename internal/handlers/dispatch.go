package handlers

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/serverstate"
	"github.com/openpso/server/internal/textenc"
)

func decodeText(version constants.Version, payload []byte) string {
	if version.UsesShiftJIS() {
		return string(utf16.Decode(textenc.DecodeShiftJIS(payload)))
	}
	return textenc.DecodeUTF16LEString(payload)
}

func encodeText(version constants.Version, text string) []byte {
	if version.UsesShiftJIS() {
		return textenc.EncodeShiftJIS(stringToUnits(text))
	}
	return textenc.EncodeUTF16LEString(text)
}

func stringToUnits(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for _, r := range s {
		units = append(units, uint16(r))
	}
	return units
}

// ReadLoop owns one client's connection for its lifetime: it sends the
// version-appropriate handshake-init command (spec.md §4I "Handshake"),
// then feeds raw bytes into c.Framer, dispatches each decoded command
// through registry, and additionally runs chat text starting with "$"
// through chatRegistry, replying over the same connection. It returns
// when the connection closes, the client is marked for disconnect, or
// ctx is canceled.
func ReadLoop(ctx context.Context, s *serverstate.State, registry *Registry, chatRegistry *ChatRegistry, c *client.Client) error {
	initCommand := constants.CommandServerInit
	switch c.Version {
	case constants.VersionBB:
		initCommand = constants.CommandWelcomeBb
	case constants.VersionEp3:
		initCommand = constants.CommandServerInit9
	}
	if err := registry.Dispatch(ctx, s, c, initCommand, 0, nil); err != nil && !errors.Is(err, ErrUnknownCommand) {
		return fmt.Errorf("handlers: sending handshake init: %w", err)
	}

	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.ShouldDisconnect() {
			return nil
		}

		n, err := c.Conn.Read(buf)
		if n > 0 {
			c.Framer.Feed(buf[:n])
			if derr := drain(ctx, s, registry, chatRegistry, c); derr != nil {
				return derr
			}
		}
		if err != nil {
			return fmt.Errorf("handlers: read loop: %w", err)
		}
	}
}

func drain(ctx context.Context, s *serverstate.State, registry *Registry, chatRegistry *ChatRegistry, c *client.Client) error {
	for {
		hdr, payload, ok, err := c.Framer.Next()
		if err != nil {
			return fmt.Errorf("handlers: %w", ErrProtocolViolation)
		}
		if !ok {
			return nil
		}

		if hdr.Command == constants.CommandChat {
			text := decodeText(c.Version, payload)
			if IsChatCommand(text) {
				reply, rerr := chatRegistry.Dispatch(s, c, text)
				if rerr != nil && !errors.Is(rerr, ErrProtocolViolation) {
					return rerr
				}
				if reply != "" {
					if werr := c.Send(hdr.Command, 0, encodeText(c.Version, reply)); werr != nil {
						return werr
					}
				}
				continue
			}
		}

		if derr := registry.Dispatch(ctx, s, c, hdr.Command, hdr.Flag, payload); derr != nil {
			if errors.Is(derr, ErrUnknownCommand) {
				continue
			}
			return derr
		}
	}
}
