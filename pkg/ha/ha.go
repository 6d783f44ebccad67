// Package ha gates mutating work on high-availability role: only the node
// owning the HA service address may run a synchronisation.
package ha

import (
	"fmt"
	"net"
)

// ProceedOnService reports whether this node currently owns the HA service
// address. An empty address disables the gate. The stdlib net package is
// all this needs: the check is a plain comparison of the resolved service
// IPs against the addresses bound to local interfaces.
func ProceedOnService(addr string) (bool, error) {
	if addr == "" {
		return true, nil
	}

	serviceIPs, err := net.LookupHost(addr)
	if err != nil {
		return false, fmt.Errorf("failed to resolve HA service address %s: %w", addr, err)
	}

	localAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return false, fmt.Errorf("failed to list local interface addresses: %w", err)
	}

	local := make(map[string]bool, len(localAddrs))
	for _, a := range localAddrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			local[ipNet.IP.String()] = true
		}
	}

	for _, ip := range serviceIPs {
		if local[ip] {
			return true, nil
		}
	}
	return false, nil
}
