package util

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
)

// RedactPasteContent keeps a few characters on each side so log lines stay
// correlatable without carrying the body.
func RedactPasteContent(content string) string {
	r := []rune(content)
	if len(r) == 0 {
		return ""
	}
	if len(r) <= 20 {
		return "[REDACTED]"
	}
	return string(r[:10]) + "...[REDACTED]..." + string(r[len(r)-10:])
}

func RedactIP(ip string) string {
	host, _, err := net.SplitHostPort(ip)
	if err == nil {
		ip = host
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		hash := sha256.Sum256([]byte(ip))
		return "hash:" + hex.EncodeToString(hash[:8])
	}
	if ipv4 := parsed.To4(); ipv4 != nil {
		ipv4[3] = 0
		return ipv4.String()
	}
	ipv6 := parsed.To16()
	for i := 4; i < 16; i++ {
		ipv6[i] = 0
	}
	return ipv6.String()
}
