package engine

import "net"

// LocalIPAddress returns the first non-loopback IPv4 address of an up
// interface, falling back to a global IPv6 address. ok is false when the
// host has neither.
func LocalIPAddress() (addr string, ok bool) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", false
	}

	var v6 string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, isNet := a.(*net.IPNet)
			if !isNet {
				continue
			}
			ip := ipnet.IP
			if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
				continue
			}
			if ip4 := ip.To4(); ip4 != nil {
				return ip4.String(), true
			}
			if v6 == "" {
				v6 = ip.String()
			}
		}
	}
	return v6, v6 != ""
}
