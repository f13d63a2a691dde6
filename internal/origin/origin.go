// Package origin validates browser Origin headers for the WebSocket upgrade.
package origin

import (
	"net/url"
	"strconv"
	"strings"
)

// Normalize validates an Origin header and reduces it to a canonical
// scheme://host[:port] form: lowercase scheme and hostname, default ports
// stripped. The special Origin value "null" is passed through as-is.
func Normalize(header string) (string, bool) {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return "", false
	}
	if trimmed == "null" {
		return "null", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	rawHostname, rawPort, ok := splitHostPort(u.Host)
	if !ok {
		return "", false
	}

	hostname := strings.ToLower(rawHostname)
	if hostname == "" {
		return "", false
	}

	var port uint64
	if rawPort != "" {
		n, err := strconv.ParseUint(rawPort, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		port = n
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		port = 0
	}

	host := hostname
	if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	if port != 0 {
		host = host + ":" + strconv.FormatUint(port, 10)
	}
	return scheme + "://" + host, true
}

// Checker decides whether an Origin header may open a signaling connection.
//
// An empty allowlist admits every origin: the room token is the actual gate
// and non-browser clients send no Origin header at all. A non-empty allowlist
// admits only the origins it names, compared in normalized form; the entry
// "*" admits any syntactically valid origin.
type Checker struct {
	allowAll bool
	allowed  map[string]struct{}
}

func NewChecker(allowlist []string) *Checker {
	if len(allowlist) == 0 {
		return &Checker{allowAll: true}
	}
	c := &Checker{allowed: make(map[string]struct{}, len(allowlist))}
	for _, entry := range allowlist {
		if entry == "*" {
			c.allowAll = true
			continue
		}
		if normalized, ok := Normalize(entry); ok {
			c.allowed[normalized] = struct{}{}
		}
	}
	return c
}

// Allowed reports whether the given Origin header value is acceptable. A
// missing header is always acceptable since only browsers send one.
func (c *Checker) Allowed(header string) bool {
	if strings.TrimSpace(header) == "" {
		return true
	}
	normalized, ok := Normalize(header)
	if !ok {
		return false
	}
	if c.allowAll {
		return true
	}
	_, ok = c.allowed[normalized]
	return ok
}

// splitHostPort splits an authority host[:port] string. The hostname is
// returned without brackets for IPv6 literals; the port is returned as-is
// and is empty when absent.
func splitHostPort(rawHost string) (hostname, port string, ok bool) {
	if rawHost == "" {
		return "", "", false
	}

	if strings.HasPrefix(rawHost, "[") {
		end := strings.IndexByte(rawHost, ']')
		if end < 0 {
			return "", "", false
		}
		hostname = rawHost[1:end]
		rest := rawHost[end+1:]
		if rest == "" {
			return hostname, "", true
		}
		if !strings.HasPrefix(rest, ":") {
			return "", "", false
		}
		port = rest[1:]
		if port == "" {
			return "", "", false
		}
		return hostname, port, true
	}

	switch strings.Count(rawHost, ":") {
	case 0:
		return rawHost, "", true
	case 1:
		parts := strings.SplitN(rawHost, ":", 2)
		if parts[0] == "" || parts[1] == "" {
			return "", "", false
		}
		return parts[0], parts[1], true
	default:
		// Unbracketed IPv6 literals are not valid in the authority component.
		return "", "", false
	}
}
