// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mesh

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

// KeyStore resolves the local WireGuard private key and the known
// public key for a remote Path peer. The teacher's vpn.Manager read
// keys straight out of static HCL config (WireGuardConfig.PrivateKey /
// WireGuardPeer.PublicKey); here the Mesh Manager needs them per Site,
// since peers come and go as the topology is reconciled.
type KeyStore interface {
	LocalPrivateKey(siteID string) (wgtypes.Key, error)
	PeerPublicKey(siteID string) (wgtypes.Key, bool)
}

// WireGuardTunnel implements Tunnel against a real WireGuard kernel
// (or userspace) device via wgctrl, generalizing the teacher's
// per-provider Start/Stop lifecycle (internal/vpn.Manager) into
// per-Path peer add/remove against one interface per site.
type WireGuardTunnel struct {
	client    *wgctrl.Client
	keys      KeyStore
	logger    *logging.Logger
	keepalive time.Duration
}

// NewWireGuardTunnel opens the wgctrl netlink client used to configure
// every local WireGuard interface this process manages.
func NewWireGuardTunnel(keys KeyStore, keepalive time.Duration, logger *logging.Logger) (*WireGuardTunnel, error) {
	client, err := wgctrl.New()
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindInternal, "open wgctrl client")
	}
	return &WireGuardTunnel{client: client, keys: keys, keepalive: keepalive, logger: logger}, nil
}

func (t *WireGuardTunnel) Close() error {
	return t.client.Close()
}

// Ensure configures src's local interface with a peer for dst,
// deriving the interface name from the src site ID (sanitized) and
// the peer's AllowedIPs from dst's endpoint address, per §4.6.
func (t *WireGuardTunnel) Ensure(ctx context.Context, path model.Path, src, dst model.Endpoint) (model.TunnelDescriptor, error) {
	iface := interfaceName(path.SrcSiteID)

	peerPub, ok := t.keys.PeerPublicKey(path.DstSiteID)
	if !ok {
		return model.TunnelDescriptor{}, perrs.Errorf(perrs.KindNotFound, "no known WireGuard public key for site %q", path.DstSiteID)
	}

	endpoint, err := resolveUDPAddr(dst.Address)
	if err != nil {
		return model.TunnelDescriptor{}, perrs.Wrapf(err, perrs.KindValidation, "resolve endpoint %q", dst.Address)
	}
	allowedIP, err := hostCIDR(dst.Address)
	if err != nil {
		return model.TunnelDescriptor{}, perrs.Wrapf(err, perrs.KindValidation, "derive allowed-ips for %q", dst.Address)
	}

	peerCfg := wgtypes.PeerConfig{
		PublicKey:                   peerPub,
		Endpoint:                    endpoint,
		AllowedIPs:                  []net.IPNet{allowedIP},
		PersistentKeepaliveInterval: &t.keepalive,
		ReplaceAllowedIPs:           true,
	}

	cfg := wgtypes.Config{Peers: []wgtypes.PeerConfig{peerCfg}}
	if err := t.client.ConfigureDevice(iface, cfg); err != nil {
		return model.TunnelDescriptor{}, perrs.Wrapf(err, perrs.KindTransientIO, "configure wireguard device %q", iface)
	}

	t.logger.Info("wireguard peer configured", "interface", iface, "path_id", path.ID, "peer", peerPub.String())
	return model.TunnelDescriptor{PeerPublicKey: peerPub[:]}, nil
}

// Teardown removes dst's peer entry from src's interface. Removing an
// absent peer is a no-op in wgctrl, satisfying the idempotence §4.6
// requires of a repeated reconcile.
func (t *WireGuardTunnel) Teardown(ctx context.Context, path model.Path) error {
	if path.Tunnel == nil || len(path.Tunnel.PeerPublicKey) != wgtypes.KeyLen {
		return nil
	}
	var key wgtypes.Key
	copy(key[:], path.Tunnel.PeerPublicKey)

	iface := interfaceName(path.SrcSiteID)
	cfg := wgtypes.Config{Peers: []wgtypes.PeerConfig{{PublicKey: key, Remove: true}}}
	if err := t.client.ConfigureDevice(iface, cfg); err != nil {
		return perrs.Wrapf(err, perrs.KindTransientIO, "remove wireguard peer from %q", iface)
	}
	return nil
}

func interfaceName(siteID string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, strings.ToLower(siteID))
	name := "pt-" + sanitized
	if len(name) > 15 { // IFNAMSIZ-1 on Linux
		name = name[:15]
	}
	return name
}

func resolveUDPAddr(hostPort string) (*net.UDPAddr, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, fmt.Errorf("resolve host %q: %w", host, err)
		}
		ip = ips[0]
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}

func hostCIDR(hostPort string) (net.IPNet, error) {
	host, _, err := net.SplitHostPort(hostPort)
	if err != nil {
		return net.IPNet{}, err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return net.IPNet{}, fmt.Errorf("invalid address %q", host)
	}
	if ip4 := ip.To4(); ip4 != nil {
		return net.IPNet{IP: ip4, Mask: net.CIDRMask(32, 32)}, nil
	}
	return net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}, nil
}
