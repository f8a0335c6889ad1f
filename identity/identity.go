// Package identity loads or creates a persisted private identity keyed by a
// storage directory (component C). The real mesh transport library owns the
// on-wire cryptographic identity format; this package only needs a stable
// keypair and its derived AddressHash, grounded on the identity-derivation
// contract described in
// _examples/original_source/crates/reticulum_mobile/src/node.rs.
/*
 * Copyright (c) 2024-2026, FreeTAKTeam. All rights reserved.
 */
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ed25519"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
)

const identityFileName = "identity.hex"

// Identity is a private cryptographic identity plus its derived AddressHash.
type Identity struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// Hex returns the full private key, hex-encoded — the on-disk format. Never
// expose this outside of identity persistence: every other consumer (status,
// descriptors, directory entries) wants AddressHex instead.
func (id *Identity) Hex() string { return hex.EncodeToString(id.PrivateKey) }

// AddressHex is the public identity hash: sha256 of the public key, 64 hex
// digits (spec §4.C's public-key-hash derivation). This is what travels
// anywhere this identity needs a stable text reference — NodeStatus,
// DestinationDescriptor, directory entries — since those all cross process
// or wire boundaries where the private key must never appear.
func (id *Identity) AddressHex() string {
	sum := sha256.Sum256(id.PublicKey)
	return hex.EncodeToString(sum[:])
}

// DestinationAddress derives the AddressHash for (identity, name), per the
// Destination contract in spec §3: a destination is identity + a two-tuple
// name, reduced to a 16-byte address.
func (id *Identity) DestinationAddress(name rtypes.DestinationName) rtypes.AddressHash {
	h := sha256.New()
	h.Write(id.PublicKey)
	h.Write([]byte(name.Namespace))
	h.Write([]byte{0})
	h.Write([]byte(name.Kind))
	sum := h.Sum(nil)
	var addr rtypes.AddressHash
	copy(addr[:], sum[:16])
	return addr
}

// LoadOrCreate implements the Component C contract:
//   - blank/absent storageDir -> deterministic dev-fallback identity from name
//   - otherwise read-or-generate <storageDir>/identity.hex
func LoadOrCreate(storageDir, name string) (*Identity, error) {
	storageDir = strings.TrimSpace(storageDir)
	if storageDir == "" {
		return deterministicFromName(name), nil
	}

	if err := os.MkdirAll(storageDir, 0o700); err != nil {
		return nil, rtypes.WrapError(rtypes.ErrIO, err, "create storage dir %q", storageDir)
	}

	path := filepath.Join(storageDir, identityFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return parseHexIdentity(strings.TrimSpace(string(data)))
	case os.IsNotExist(err):
		id, genErr := generate()
		if genErr != nil {
			return nil, rtypes.WrapError(rtypes.ErrIO, genErr, "generate identity")
		}
		if writeErr := os.WriteFile(path, []byte(id.Hex()), 0o600); writeErr != nil {
			return nil, rtypes.WrapError(rtypes.ErrIO, writeErr, "write identity file %q", path)
		}
		return id, nil
	default:
		return nil, rtypes.WrapError(rtypes.ErrIO, err, "read identity file %q", path)
	}
}

// RatchetStorePath is the opaque path the transport config is pointed at;
// this package never reads or writes it, only computes the location.
func RatchetStorePath(storageDir string) string {
	if strings.TrimSpace(storageDir) == "" {
		return ""
	}
	return filepath.Join(storageDir, "ratchets.dat")
}

func generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(nil) // crypto/rand under the hood
	if err != nil {
		return nil, err
	}
	return &Identity{PrivateKey: priv, PublicKey: pub}, nil
}

func parseHexIdentity(s string) (*Identity, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != ed25519.PrivateKeySize {
		return nil, rtypes.NewError(rtypes.ErrIO, "malformed identity.hex (%d bytes)", len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{PrivateKey: priv, PublicKey: pub}, nil
}

// deterministicFromName is the dev-only fallback: the ed25519 seed is
// SHA-256(SHA-256(name) || 0x00), so two starts with the same name and no storage
// directory always yield byte-identical identities (spec §8 boundary case).
func deterministicFromName(name string) *Identity {
	seed := sha256.Sum256([]byte(name))
	var expanded [ed25519.SeedSize]byte
	stream := sha256.Sum256(append(seed[:], byte(0)))
	copy(expanded[:], stream[:])
	priv := ed25519.NewKeyFromSeed(expanded[:])
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{PrivateKey: priv, PublicKey: pub}
}
