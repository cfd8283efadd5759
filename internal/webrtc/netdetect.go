package webrtc

import (
	"net"
	"strings"
)

// cgnatBlock is the shared address space used by carrier-grade NAT and by
// overlay VPNs such as WARP and Tailscale.
var cgnatBlock = mustCIDR("100.64.0.0/10")

var tunnelNameHints = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

func mustCIDR(s string) *net.IPNet {
	_, block, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return block
}

// BehindTunnel reports whether an active interface looks like a VPN tunnel
// or has a CGNAT address. Direct paths rarely work there, so the caller
// should prefer TURN relay candidates.
func BehindTunnel() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isTunnelName(iface.Name) {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && cgnatBlock.Contains(ipnet.IP) {
				return true
			}
		}
	}
	return false
}

func isTunnelName(name string) bool {
	name = strings.ToLower(name)
	for _, hint := range tunnelNameHints {
		if strings.HasPrefix(name, hint) {
			return true
		}
	}
	return false
}
