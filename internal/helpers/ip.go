package helpers

import (
	"net"
	"strings"
)

// IPClass is the SSRF classification of an address.
type IPClass int

const (
	IPPublic IPClass = iota
	IPLoopback
	IPPrivate
	IPLinkLocal
	IPUnspecified
)

func (c IPClass) String() string {
	switch c {
	case IPPublic:
		return "public"
	case IPLoopback:
		return "loopback"
	case IPPrivate:
		return "private"
	case IPLinkLocal:
		return "link-local"
	case IPUnspecified:
		return "unspecified"
	default:
		return "unknown"
	}
}

// ClassifyIP classifies ip. A nil ip is unspecified. Link-local covers
// both unicast and multicast so cloud metadata endpoints such as
// 169.254.169.254 are caught.
func ClassifyIP(ip net.IP) IPClass {
	switch {
	case ip == nil || ip.IsUnspecified():
		return IPUnspecified
	case ip.IsLoopback():
		return IPLoopback
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return IPLinkLocal
	case ip.IsPrivate():
		return IPPrivate
	default:
		return IPPublic
	}
}

// ClassifyHost classifies a URL hostname. Names other than "localhost" are
// not resolved and report IPPublic.
func ClassifyHost(host string) IPClass {
	if strings.EqualFold(host, "localhost") {
		return IPLoopback
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if ip := net.ParseIP(host); ip != nil {
		return ClassifyIP(ip)
	}
	return IPPublic
}
