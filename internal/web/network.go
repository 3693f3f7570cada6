package web

import (
	"net"
	"sort"
)

// localInterfaceAddrs lists IPv4 addresses of interfaces that are up, as
// "iface: cidr", so /api/status shows where the service is reachable.
func localInterfaceAddrs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	out := make([]string, 0, 8)
	for _, iface := range ifaces {
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagLoopback) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		out = append(out, formatInterfaceAddrs(iface.Name, addrs)...)
	}
	sort.Strings(out)
	return out
}

func formatInterfaceAddrs(name string, addrs []net.Addr) []string {
	var out []string
	for _, a := range addrs {
		var ip net.IP
		var ipnet *net.IPNet
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
			ipnet = v
		case *net.IPAddr:
			ip = v.IP
		}
		ip4 := ip.To4()
		if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
			continue
		}
		if ipnet != nil {
			out = append(out, name+": "+ipnet.String())
		} else {
			out = append(out, name+": "+ip4.String())
		}
	}
	return out
}
