//go:build linux

package pathmon

import (
	"context"
	"net"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

type linuxSource struct{}

// NewSource creates a Linux path source driven by netlink link, address and
// route subscriptions.
func NewSource() Source {
	return &linuxSource{}
}

func (s *linuxSource) Start(ctx context.Context, callback func(PathUpdate)) error {
	linkCh := make(chan netlink.LinkUpdate, 16)
	linkDone := make(chan struct{})

	addrCh := make(chan netlink.AddrUpdate, 16)
	addrDone := make(chan struct{})

	routeCh := make(chan netlink.RouteUpdate, 16)
	routeDone := make(chan struct{})

	if err := netlink.LinkSubscribe(linkCh, linkDone); err != nil {
		return err
	}
	if err := netlink.AddrSubscribe(addrCh, addrDone); err != nil {
		close(linkDone)
		return err
	}
	if err := netlink.RouteSubscribe(routeCh, routeDone); err != nil {
		close(linkDone)
		close(addrDone)
		return err
	}

	defer close(linkDone)
	defer close(addrDone)
	defer close(routeDone)

	log.Debug("Linux path source initialized")

	// Initial state before any kernel event arrives.
	callback(s.buildUpdate())

	for {
		select {
		case <-ctx.Done():
			return nil

		case update := <-linkCh:
			log.WithField("link", update.Link.Attrs().Name).Trace("Link update")
			callback(s.buildUpdate())

		case update := <-addrCh:
			log.WithField("linkIndex", update.LinkIndex).Trace("Address update")
			callback(s.buildUpdate())

		case update := <-routeCh:
			log.WithField("type", update.Type).Trace("Route update")
			callback(s.buildUpdate())
		}
	}
}

// buildUpdate rescans interfaces and the routing table. Default routes give
// the satisfied bit, the gateway addresses and the in-use links.
func (s *linuxSource) buildUpdate() PathUpdate {
	u := PathUpdate{Interfaces: collectInterfaces()}

	inUse := make(map[string]bool)
	routes, err := netlink.RouteList(nil, netlink.FAMILY_ALL)
	if err != nil {
		log.WithError(err).Warn("Failed to list routes")
	}
	for _, rt := range routes {
		if rt.Dst != nil {
			continue // default routes only
		}
		iface, err := net.InterfaceByIndex(rt.LinkIndex)
		if err != nil {
			continue
		}
		u.Satisfied = true
		inUse[iface.Name] = true
		if rt.Gw == nil {
			continue
		}
		if rt.Gw.To4() != nil {
			if u.GatewayV4 == "" {
				u.GatewayV4 = rt.Gw.String()
			}
		} else if u.GatewayV6 == "" {
			u.GatewayV6 = rt.Gw.String()
		}
	}
	u.InUse = func(name string) bool { return inUse[name] }
	return u
}
