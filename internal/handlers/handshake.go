package handlers

import (
	"bytes"
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/crypto"
	"github.com/openpso/server/internal/license"
	"github.com/openpso/server/internal/serverstate"
)

// copyrightDCPCV3 and copyrightBB are the fixed strings every client
// dialect's server-init packet must open with (original_source's comments
// on S_ServerInitDefault_DC_PC_V3_02_17_91_9B and
// S_ServerInitDefault_BB_03_9B: the client refuses to proceed without
// them).
const (
	copyrightDCPCV3 = "DreamCast Lobby Server. Copyright SEGA Enterprises. 1999"
	copyrightBB     = "Phantasy Star Online Blue Burst Game Server. Copyright 1999-2004 SONICTEAM."
)

// RegisterHandshakeHandlers wires the login/handshake command family
// (spec.md §4I "Handshake": "cipher initialization, credential
// verification, client-config exchange") into r. The server-initiated
// commands (02/17/03) are dispatched once by ReadLoop at connection
// accept time; the client-initiated commands (93/9A/9C/9D/9E/DB) are
// dispatched as the client's replies arrive.
func RegisterHandshakeHandlers(r *Registry) {
	r.Register(constants.CommandServerInit, sendServerInit, constants.VersionDCv1, constants.VersionDCv2, constants.VersionPC, constants.VersionGC)
	r.Register(constants.CommandServerInit9, sendServerInit, constants.VersionEp3)
	r.Register(constants.CommandWelcomeBb, sendWelcomeBB, constants.VersionBB)

	r.Register(constants.CommandLoginV1Dc, handleLoginV1, constants.VersionDCv1)
	r.Register(constants.CommandAuthBb, handleAuthBB, constants.VersionBB)

	r.Register(constants.CommandLoginV2, handleLoginV2, constants.VersionDCv2, constants.VersionPC, constants.VersionGC, constants.VersionEp3)

	r.Register(constants.CommandLoginCheckBb, handleRegisterBB, constants.VersionBB)

	r.Register(constants.CommandLoginBb, handleLogin9D, constants.VersionDCv2, constants.VersionPC, constants.VersionGC, constants.VersionEp3)

	r.Register(constants.CommandResumeBb, handleLogin9E, constants.VersionGC, constants.VersionEp3, constants.VersionBB)

	r.Register(constants.CommandLoginDbBb, handleVerifyLicenseDB, constants.VersionGC, constants.VersionEp3, constants.VersionBB)
}

// cstring trims b at its first NUL byte, the convention every fixed-width
// ptext field in original_source's command structs uses.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func fieldAt(payload []byte, offset, length int) []byte {
	if offset < 0 || offset+length > len(payload) {
		return nil
	}
	return payload[offset : offset+length]
}

// randomBytes fills and returns n cryptographically random bytes, used for
// the per-connection cipher seeds/keys every server-init command embeds.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := cryptorand.Read(b); err != nil {
		return nil, fmt.Errorf("handshake: generating random key material: %w", err)
	}
	return b, nil
}

func randomUint32() (uint32, error) {
	b, err := randomBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// sendServerInit is command 02/17's server-initiated half: it installs
// this connection's session cipher and tells the client the keys to use
// for its own outgoing stream (spec.md §4B, grounded on
// original_source's S_ServerInitDefault_DC_PC_V3_02_17_91_9B: a 0x40-byte
// copyright string followed by a server key and a client key, both plain
// 32-bit values on every non-BB dialect).
func sendServerInit(_ context.Context, _ *serverstate.State, c *client.Client, _ uint32, _ []byte) error {
	serverKey, err := randomUint32()
	if err != nil {
		return err
	}
	clientKey, err := randomUint32()
	if err != nil {
		return err
	}

	if c.Version == constants.VersionPC {
		c.SetCiphers(crypto.NewPCCipher(clientKey), crypto.NewPCCipher(serverKey))
	} else {
		c.SetCiphers(crypto.NewGCCipher(clientKey), crypto.NewGCCipher(serverKey))
	}

	payload := make([]byte, 0x40+4+4)
	copy(payload, copyrightDCPCV3)
	binary.LittleEndian.PutUint32(payload[0x40:0x44], serverKey)
	binary.LittleEndian.PutUint32(payload[0x44:0x48], clientKey)

	command := constants.CommandServerInit
	if c.Version == constants.VersionEp3 {
		command = constants.CommandServerInit9
	}
	return c.Send(uint16(command), 0, payload)
}

// sendWelcomeBB is command 03's BB variant: the copyright string and the
// two 0x30-byte seeds BBCipher derives its keystream from (original_source's
// S_ServerInitDefault_BB_03_9B). Without at least one loaded BB key file
// (State.BBKeys, filled from the configured key file paths) the seeds
// are still sent so the handshake doesn't stall, but no cipher is
// installed and every later BB command on this connection travels
// unencrypted; this is a known limitation, not a crash.
func sendWelcomeBB(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, _ []byte) error {
	serverSeed, err := randomBytes(0x30)
	if err != nil {
		return err
	}
	clientSeed, err := randomBytes(0x30)
	if err != nil {
		return err
	}

	if len(s.BBKeys) > 0 {
		var serverSeedArr, clientSeedArr [0x30]byte
		copy(serverSeedArr[:], serverSeed)
		copy(clientSeedArr[:], clientSeed)

		out, err := crypto.NewBBCipher(s.BBKeys[0], serverSeedArr)
		if err != nil {
			return fmt.Errorf("handshake: building BB outbound cipher: %w", err)
		}
		in, err := crypto.NewBBCipher(s.BBKeys[0], clientSeedArr)
		if err != nil {
			return fmt.Errorf("handshake: building BB inbound cipher: %w", err)
		}
		c.SetCiphers(in, out)
	} else {
		c.Log.Warn("no BB key file configured; BB session will run unencrypted")
	}

	payload := make([]byte, 0x60+0x30+0x30)
	copy(payload, copyrightBB)
	copy(payload[0x60:0x90], serverSeed)
	copy(payload[0x90:0xC0], clientSeed)
	return c.Send(constants.CommandWelcomeBb, 0, payload)
}

// loginResult codes mirror original_source's 9A reply table: 0 is success,
// nonzero values are client-displayed rejection reasons (spec.md §7 "Auth
// failure: command-specific reject code, no disconnect").
const (
	loginResultOK                = 0x00
	loginResultAccessKeyInvalid  = 0x03
	loginResultSerialInvalid     = 0x04
	loginResultConnectionSuspend = 0x0F
)

// loginResultFor maps a license.Store verification error to the reply
// code the client expects, so a failed login produces a specific,
// user-visible rejection instead of a silent drop.
func loginResultFor(err error) uint32 {
	switch {
	case err == nil:
		return loginResultOK
	case isErr(err, license.ErrBanned):
		return loginResultConnectionSuspend
	case isErr(err, license.ErrIncorrectAccessKey), isErr(err, license.ErrIncorrectPassword):
		return loginResultAccessKeyInvalid
	default:
		return loginResultSerialInvalid
	}
}

func isErr(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// completeLogin attaches lic to c, places it in a lobby if it isn't in one
// yet, and reports the authentication result to the caller via the
// version-appropriate reply. Failures are reported, not fatal: spec.md §7
// treats auth failure as "command-specific reject code, no disconnect".
func completeLogin(s *serverstate.State, c *client.Client, replyCommand uint16, lic license.License, verifyErr error) error {
	if verifyErr != nil {
		c.Log.Info("login rejected", "error", verifyErr)
		return c.Send(replyCommand, loginResultFor(verifyErr), nil)
	}

	stored := lic
	c.License = &stored
	c.Privileges = lic.Privileges

	if c.LobbyID == 0 {
		if err := s.AddClientToAvailableLobby(c); err != nil {
			c.Log.Warn("no lobby available for newly logged-in client", "error", err)
		} else if err := sendLobbyList(s, c); err != nil {
			c.Log.Warn("failed to send initial lobby list", "error", err)
		}
	}
	return c.Send(replyCommand, loginResultOK, nil)
}

// handleLoginV1 verifies a Dreamcast v1 login (spec.md §4E's "first 8
// characters of the access key" rule), grounded on original_source's
// C_LoginV1_DC_93: fixed-width serial_number/access_key fields at offsets
// 0x18/0x29 once the leading player_tag/guild_card_number/unknowns/
// sub_version/is_extended/language/unused1 block (0x18 bytes) is skipped.
func handleLoginV1(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, payload []byte) error {
	serial := cstring(fieldAt(payload, 0x18, 0x11))
	accessKey := cstring(fieldAt(payload, 0x29, 0x11))

	serialNum, convErr := parseSerial(serial)
	if convErr != nil {
		return c.Send(constants.CommandLoginV1Dc, loginResultSerialInvalid, nil)
	}

	lic, err := s.Licenses.VerifyV1(serialNum, accessKey)
	return completeLogin(s, c, constants.CommandLoginV1Dc, lic, err)
}

// handleAuthBB verifies a Blue Burst login (spec.md §4E's username/password
// rule), grounded on original_source's C_Login_BB_93: username/password at
// offsets 0x10/0x40 once player_tag/guild_card_number/unused/team_id (0x10
// bytes) are skipped.
func handleAuthBB(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, payload []byte) error {
	username := cstring(fieldAt(payload, 0x10, 0x30))
	password := cstring(fieldAt(payload, 0x40, 0x30))

	lic, err := s.Licenses.VerifyBB(username, password)
	return completeLogin(s, c, constants.CommandAuthBb, lic, err)
}

// handleLoginV2 verifies a DCv2/PC/GC/Ep3 "initial login" (no client
// config yet), grounded on original_source's C_Login_DC_PC_V3_9A: the
// version-2 serial_number/access_key pair sits right after the v1 pair,
// at offsets 0x10/0x20.
func handleLoginV2(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, payload []byte) error {
	serial := cstring(fieldAt(payload, 0x10, 0x10))
	accessKey := cstring(fieldAt(payload, 0x20, 0x10))

	serialNum, convErr := parseSerial(serial)
	if convErr != nil {
		return c.Send(constants.CommandLoginV2, loginResultSerialInvalid, nil)
	}

	lic, err := s.Licenses.VerifyV2(serialNum, accessKey)
	return completeLogin(s, c, constants.CommandLoginV2, lic, err)
}

// handleRegisterBB treats command 9C as a login verification rather than
// account creation: this server has no self-service registration flow, so
// an existing BB license (username/password at offsets 0x04/0x34, per
// original_source's C_Register_BB_9C) is required up front, matching
// spec.md §4E's closed license store.
func handleRegisterBB(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, payload []byte) error {
	username := cstring(fieldAt(payload, 0x04, 0x30))
	password := cstring(fieldAt(payload, 0x34, 0x30))

	lic, err := s.Licenses.VerifyBB(username, password)
	return completeLogin(s, c, constants.CommandLoginCheckBb, lic, err)
}

// handleLogin9D verifies a DCv2/PC/GC/Ep3 login "without client config",
// grounded on original_source's C_Login_DC_PC_GC_9D: the version-2
// serial_number/access_key pair at offsets 0x18/0x28.
func handleLogin9D(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, payload []byte) error {
	serial := cstring(fieldAt(payload, 0x18, 0x10))
	accessKey := cstring(fieldAt(payload, 0x28, 0x10))

	serialNum, convErr := parseSerial(serial)
	if convErr != nil {
		return c.Send(constants.CommandLoginBb, loginResultSerialInvalid, nil)
	}

	var lic license.License
	var err error
	if c.Version == constants.VersionGC || c.Version == constants.VersionEp3 {
		lic, err = s.Licenses.VerifyGC(serialNum, accessKey, "")
	} else {
		lic, err = s.Licenses.VerifyV2(serialNum, accessKey)
	}
	return completeLogin(s, c, constants.CommandLoginBb, lic, err)
}

// handleLogin9E verifies a V3/BB login "with client config", grounded on
// original_source's C_Login_GC_9E (serial_number/access_key at 0x18/0x28,
// same layout as 9D with a trailing client_config union V3 clients attach)
// and C_LoginExtended_BB_9E (username/password at 0x48/0x58 once the
// leading player_tag through unknown_a6 block is skipped).
func handleLogin9E(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, payload []byte) error {
	if c.Version == constants.VersionBB {
		username := cstring(fieldAt(payload, 0x48, 0x30))
		password := cstring(fieldAt(payload, 0x58, 0x30))
		lic, err := s.Licenses.VerifyBB(username, password)
		return completeLogin(s, c, constants.CommandResumeBb, lic, err)
	}

	serial := cstring(fieldAt(payload, 0x18, 0x10))
	accessKey := cstring(fieldAt(payload, 0x28, 0x10))
	serialNum, convErr := parseSerial(serial)
	if convErr != nil {
		return c.Send(constants.CommandResumeBb, loginResultSerialInvalid, nil)
	}
	lic, err := s.Licenses.VerifyGC(serialNum, accessKey, "")
	return completeLogin(s, c, constants.CommandResumeBb, lic, err)
}

// handleVerifyLicenseDB verifies command DB, replying with command 9A as
// original_source documents ("Server should respond with a 9A command"),
// grounded on C_VerifyLicense_V3_DB (serial_number/access_key at 0x20/0x30)
// and C_VerifyLicense_BB_DB (username/password at 0x40/0x70).
func handleVerifyLicenseDB(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, payload []byte) error {
	if c.Version == constants.VersionBB {
		username := cstring(fieldAt(payload, 0x40, 0x30))
		password := cstring(fieldAt(payload, 0x70, 0x30))
		lic, err := s.Licenses.VerifyBB(username, password)
		return completeLogin(s, c, constants.CommandLoginV2, lic, err)
	}

	serial := cstring(fieldAt(payload, 0x20, 0x10))
	accessKey := cstring(fieldAt(payload, 0x30, 0x10))
	serialNum, convErr := parseSerial(serial)
	if convErr != nil {
		return c.Send(constants.CommandLoginV2, loginResultSerialInvalid, nil)
	}
	lic, err := s.Licenses.VerifyGC(serialNum, accessKey, "")
	return completeLogin(s, c, constants.CommandLoginV2, lic, err)
}

// parseSerial converts a login command's decimal serial-number text field
// to the numeric form the license store indexes by.
func parseSerial(s string) (uint32, error) {
	var n uint32
	if s == "" {
		return 0, fmt.Errorf("handshake: empty serial number")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("handshake: serial number %q is not decimal", s)
		}
		n = n*10 + uint32(r-'0')
	}
	return n, nil
}
