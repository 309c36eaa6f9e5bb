package pathmon

import (
	"context"
	"net"
	"strings"
)

// PathInterface is one interface reported as available by the OS path.
type PathInterface struct {
	Name string
	Kind InterfaceKind
}

// PathUpdate is a raw path event as delivered by a platform Source. It is the
// untranslated view of the OS routing state; the notifier reduces it to a
// Snapshot.
type PathUpdate struct {
	// Satisfied is false when the OS reports no usable path at all.
	Satisfied bool

	// Interfaces lists the available interfaces in OS preference order.
	Interfaces []PathInterface

	// InUse reports whether the named interface is actively carrying
	// traffic for the path. May be nil when the platform cannot tell.
	InUse func(name string) bool

	// GatewayV4 and GatewayV6 are the default gateway addresses, best
	// effort, empty when unknown.
	GatewayV4 string
	GatewayV6 string
}

// Source monitors the OS network path using platform-specific event
// mechanisms (netlink on Linux, route sockets on macOS).
type Source interface {
	// Start begins watching for path changes.
	// Calls callback for each raw update, serially on the source's own
	// goroutine. Blocks until ctx is cancelled or an error occurs.
	Start(ctx context.Context, callback func(PathUpdate)) error
}

// AddressLookup resolves an interface name to its best-effort IPv4 and IPv6
// addresses. Failures surface as empty strings, never as errors.
type AddressLookup func(name string) (ipv4, ipv6 string)

// selectInterface picks the interface a snapshot should describe: the first
// one the path reports in use, else the first non-virtual one, else a
// virtual interface as a last resort.
func selectInterface(u PathUpdate) (PathInterface, bool) {
	if u.InUse != nil {
		for _, pi := range u.Interfaces {
			if u.InUse(pi.Name) {
				return pi, true
			}
		}
	}
	for _, pi := range u.Interfaces {
		if pi.Kind != KindOther {
			return pi, true
		}
	}
	if len(u.Interfaces) > 0 {
		return u.Interfaces[0], true
	}
	return PathInterface{}, false
}

// snapshotFromUpdate reduces a raw update to a Snapshot. An unsatisfied path
// or an empty interface list yields nil, which is itself a meaningful value
// (loss of connectivity).
func snapshotFromUpdate(u PathUpdate, lookup AddressLookup, now int64) *Snapshot {
	if !u.Satisfied {
		return nil
	}
	pi, ok := selectInterface(u)
	if !ok {
		return nil
	}
	snap := &Snapshot{
		Name:       pi.Name,
		Kind:       pi.Kind,
		GatewayV4:  u.GatewayV4,
		GatewayV6:  u.GatewayV6,
		CapturedAt: now,
	}
	if lookup != nil {
		snap.IPv4, snap.IPv6 = lookup(pi.Name)
	}
	return snap
}

// kindForInterface classifies an interface by flags and naming convention.
// Best effort: anything unrecognized is Other.
func kindForInterface(name string, flags net.Flags) InterfaceKind {
	if flags&net.FlagLoopback != 0 {
		return KindLoopback
	}
	switch {
	case hasAnyPrefix(name, "wlan", "wlp", "wlx", "wifi", "ath"):
		return KindWifi
	case hasAnyPrefix(name, "wwan", "wwp", "pdp_ip", "rmnet"):
		return KindCellular
	case hasAnyPrefix(name, "bnep", "bt-"):
		return KindBluetooth
	case hasAnyPrefix(name, "utun", "tun", "tap", "ipsec", "gif", "stf",
		"awdl", "llw", "veth", "docker", "br-", "bridge", "virbr", "vmnet"):
		return KindOther
	case hasAnyPrefix(name, "eth", "eno", "enp", "ens", "enx", "en", "em"):
		return KindWiredEthernet
	case strings.HasPrefix(name, "lo"):
		return KindLoopback
	default:
		return KindOther
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// collectInterfaces enumerates the up, address-capable interfaces in OS
// order, classified by kind.
func collectInterfaces() []PathInterface {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	out := make([]PathInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		out = append(out, PathInterface{
			Name: iface.Name,
			Kind: kindForInterface(iface.Name, iface.Flags),
		})
	}
	return out
}

// defaultAddressLookup reads the interface's addresses via the net package,
// preferring globally routable addresses over link-local ones.
func defaultAddressLookup(name string) (ipv4, ipv6 string) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", ""
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", ""
	}
	var linkLocal6 string
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP
		if v4 := ip.To4(); v4 != nil {
			if ipv4 == "" {
				ipv4 = v4.String()
			}
			continue
		}
		if ip.IsLinkLocalUnicast() {
			if linkLocal6 == "" {
				linkLocal6 = ip.String()
			}
			continue
		}
		if ipv6 == "" {
			ipv6 = ip.String()
		}
	}
	if ipv6 == "" {
		ipv6 = linkLocal6
	}
	return ipv4, ipv6
}
