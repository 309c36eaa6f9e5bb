//go:build darwin

package pathmon

import (
	"context"
	"net"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/route"
	"golang.org/x/sys/unix"
)

type darwinSource struct{}

// NewSource creates a macOS path source driven by an AF_ROUTE socket.
func NewSource() Source {
	return &darwinSource{}
}

func (s *darwinSource) Start(ctx context.Context, callback func(PathUpdate)) error {
	fd, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, unix.AF_UNSPEC)
	if err != nil {
		return err
	}

	// Closing the socket unblocks the read below when ctx is cancelled.
	go func() {
		<-ctx.Done()
		unix.Close(fd)
	}()

	log.Debug("Darwin path source initialized")

	// Initial state before any route message arrives.
	callback(s.buildUpdate())

	buf := make([]byte, 4096)

	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.WithError(err).Warn("Error reading from route socket")
				continue
			}
		}

		msgs, err := route.ParseRIB(route.RIBTypeRoute, buf[:n])
		if err != nil {
			log.WithError(err).Trace("Unparseable route message")
			continue
		}

		relevant := false
		for _, m := range msgs {
			switch m.(type) {
			case *route.RouteMessage, *route.InterfaceMessage, *route.InterfaceAddrMessage:
				relevant = true
			}
		}
		if relevant {
			callback(s.buildUpdate())
		}
	}
}

// buildUpdate rescans interfaces and fetches the routing table via sysctl.
// Default routes give the satisfied bit, the gateway addresses and the
// in-use links.
func (s *darwinSource) buildUpdate() PathUpdate {
	u := PathUpdate{Interfaces: collectInterfaces()}

	inUse := make(map[string]bool)
	rib, err := route.FetchRIB(unix.AF_UNSPEC, route.RIBTypeRoute, 0)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch routing table")
	} else if msgs, err := route.ParseRIB(route.RIBTypeRoute, rib); err == nil {
		for _, m := range msgs {
			rm, ok := m.(*route.RouteMessage)
			if !ok {
				continue
			}
			if rm.Flags&unix.RTF_UP == 0 || rm.Flags&unix.RTF_GATEWAY == 0 {
				continue
			}
			if !isDefaultDst(rm.Addrs) {
				continue
			}
			iface, err := net.InterfaceByIndex(rm.Index)
			if err != nil {
				continue
			}
			u.Satisfied = true
			inUse[iface.Name] = true
			if len(rm.Addrs) <= unix.RTAX_GATEWAY {
				continue
			}
			gw := routeAddrString(rm.Addrs[unix.RTAX_GATEWAY])
			if gw == "" {
				continue
			}
			if net.ParseIP(gw).To4() != nil {
				if u.GatewayV4 == "" {
					u.GatewayV4 = gw
				}
			} else if u.GatewayV6 == "" {
				u.GatewayV6 = gw
			}
		}
	}
	u.InUse = func(name string) bool { return inUse[name] }
	return u
}

func isDefaultDst(addrs []route.Addr) bool {
	if len(addrs) <= unix.RTAX_DST {
		return false
	}
	switch a := addrs[unix.RTAX_DST].(type) {
	case *route.Inet4Addr:
		return a.IP == [4]byte{}
	case *route.Inet6Addr:
		return a.IP == [16]byte{}
	}
	return false
}

func routeAddrString(a route.Addr) string {
	switch a := a.(type) {
	case *route.Inet4Addr:
		return net.IP(a.IP[:]).String()
	case *route.Inet6Addr:
		return net.IP(a.IP[:]).String()
	}
	return ""
}
