package pathmon

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

type InterfaceKind string

const (
	KindWifi          InterfaceKind = "wifi"
	KindCellular      InterfaceKind = "cellular"
	KindWiredEthernet InterfaceKind = "wiredEthernet"
	KindBluetooth     InterfaceKind = "bluetooth"
	KindLoopback      InterfaceKind = "loopback"
	KindOther         InterfaceKind = "other"
)

// Snapshot is an immutable description of the active network interface at a
// point in time. A nil *Snapshot means the OS reported no usable path.
type Snapshot struct {
	// Name is the BSD/device name of the interface, e.g. "en0". It is the
	// identity key of the snapshot.
	Name string `json:"name"`

	// IPv4 and IPv6 are the interface addresses. Empty means the address
	// could not be determined; both may be empty.
	IPv4 string `json:"ipv4,omitempty"`
	IPv6 string `json:"ipv6,omitempty"`

	// GatewayV4 and GatewayV6 are best-effort default gateway addresses
	// obtained from the routing table.
	GatewayV4 string `json:"gatewayV4,omitempty"`
	GatewayV6 string `json:"gatewayV6,omitempty"`

	Kind InterfaceKind `json:"kind"`

	// CapturedAt is the capture time in seconds since the Unix epoch.
	CapturedAt int64 `json:"capturedAt"`
}

// SameState reports whether two snapshots describe the same interface state.
// Only Name and the addresses participate: Kind, gateways and CapturedAt are
// metadata and never make two snapshots differ.
func SameState(a, b *Snapshot) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name && a.IPv4 == b.IPv4 && a.IPv6 == b.IPv6
}

// Fingerprint returns a short stable hash over the snapshot's identity and
// addresses. Used for ETags and log correlation.
func (s *Snapshot) Fingerprint() string {
	if s == nil {
		return ""
	}
	sum := blake2b.Sum256([]byte(s.Name + "|" + s.IPv4 + "|" + s.IPv6))
	return hex.EncodeToString(sum[:8])
}

func (s *Snapshot) String() string {
	if s == nil {
		return "<no path>"
	}
	return fmt.Sprintf("%s(%s) ipv4=%q ipv6=%q", s.Name, s.Kind, s.IPv4, s.IPv6)
}
