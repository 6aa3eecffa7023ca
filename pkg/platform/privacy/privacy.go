// Package privacy provides helpers for keeping personal data out of logs.
package privacy

import (
	"net"
	"strings"
)

// AnonymizeIP truncates an IP address to a network prefix suitable for
// logging: IPv4 keeps the first three octets, IPv6 keeps the /48 prefix.
// Invalid input is reported as "invalid" rather than echoed, so malformed
// headers cannot smuggle arbitrary strings into log fields.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "invalid"
	}

	if v4 := parsed.To4(); v4 != nil {
		return (&net.IPNet{IP: v4.Mask(net.CIDRMask(24, 32)), Mask: net.CIDRMask(24, 32)}).String()
	}
	return (&net.IPNet{IP: parsed.Mask(net.CIDRMask(48, 128)), Mask: net.CIDRMask(48, 128)}).String()
}
