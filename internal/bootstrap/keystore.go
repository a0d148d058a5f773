// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package bootstrap provides default implementations of the capability
// boundaries spec.md §1 delegates to external systems (WireGuard key
// management, datapath install/uninstall, workload identity
// resolution), so a single binary can run end to end without a
// separately deployed dataplane. Production deployments are expected
// to swap these for real ones the same way the teacher's
// internal/vpn.Manager swapped providers per transport.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"patronus.dev/core/internal/perrs"
)

// FileKeyStore persists one WireGuard keypair per site under a
// directory, generating a fresh keypair the first time a site is seen
// and caching it in memory thereafter. It implements mesh.KeyStore.
type FileKeyStore struct {
	dir string

	mu    sync.Mutex
	local map[string]wgtypes.Key
	peers map[string]wgtypes.Key
}

// NewFileKeyStore creates a FileKeyStore rooted at dir, creating it if
// absent.
func NewFileKeyStore(dir string) (*FileKeyStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, perrs.Wrap(err, perrs.KindInternal, "create keystore directory")
	}
	return &FileKeyStore{dir: dir, local: make(map[string]wgtypes.Key), peers: make(map[string]wgtypes.Key)}, nil
}

// LocalPrivateKey returns siteID's private key, generating and
// persisting one on first use.
func (ks *FileKeyStore) LocalPrivateKey(siteID string) (wgtypes.Key, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if k, ok := ks.local[siteID]; ok {
		return k, nil
	}

	path := ks.keyPath(siteID)
	if raw, err := os.ReadFile(path); err == nil {
		k, err := wgtypes.ParseKey(string(raw))
		if err != nil {
			return wgtypes.Key{}, perrs.Wrap(err, perrs.KindInternal, "parse stored private key")
		}
		ks.local[siteID] = k
		return k, nil
	}

	k, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return wgtypes.Key{}, perrs.Wrap(err, perrs.KindInternal, "generate private key")
	}
	if err := os.WriteFile(path, []byte(k.String()), 0o600); err != nil {
		return wgtypes.Key{}, perrs.Wrap(err, perrs.KindInternal, "persist private key")
	}
	ks.local[siteID] = k
	return k, nil
}

// PeerPublicKey returns the public key registered for siteID, if any.
// PublishPeer is how a public key is registered for another site,
// typically derived from that site's own LocalPrivateKey once known.
func (ks *FileKeyStore) PeerPublicKey(siteID string) (wgtypes.Key, bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	k, ok := ks.peers[siteID]
	return k, ok
}

// PublishPeer registers pub as siteID's known public key, so future
// PeerPublicKey calls for that site resolve it.
func (ks *FileKeyStore) PublishPeer(siteID string, pub wgtypes.Key) {
	ks.mu.Lock()
	ks.peers[siteID] = pub
	ks.mu.Unlock()
}

func (ks *FileKeyStore) keyPath(siteID string) string {
	return filepath.Join(ks.dir, fmt.Sprintf("%s.key", siteID))
}
