package access

import (
	"net"
	"net/url"
	"strings"
)

// Env is the execution context a session runs in.
type Env struct {
	Host    string
	Path    string
	InFrame bool
	Query   url.Values
	// LocalOverride is the development flag that grants mutation on a
	// recognized development host.
	LocalOverride bool
}

// EnvFromURL parses the page address a session was opened with.
func EnvFromURL(raw string, inFrame, localOverride bool) (Env, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Env{}, err
	}
	return Env{
		Host:          u.Hostname(),
		Path:          u.Path,
		InFrame:       inFrame,
		Query:         u.Query(),
		LocalOverride: localOverride,
	}, nil
}

// Embedded reports whether the session is displayed inside another page:
// an iframe, or any of the ui=0, noui=1 or non-empty embed toggles. embed=0
// and embed=false do not count.
func (e Env) Embedded() bool {
	if e.InFrame {
		return true
	}
	if e.Query == nil {
		return false
	}
	if e.Query.Get("ui") == "0" || e.Query.Get("noui") == "1" {
		return true
	}
	switch strings.ToLower(e.Query.Get("embed")) {
	case "", "0", "false":
		return false
	}
	return true
}

// Policy lists where mutation may happen.
type Policy struct {
	AdminHosts []string
	AdminPaths []string
	DevHosts   []string
}

// DefaultPolicy allows the admin page on the usual development hosts only.
func DefaultPolicy() Policy {
	return Policy{
		AdminPaths: []string{"/admin", "/admin/", "/admin.html"},
		DevHosts:   []string{"localhost", "127.0.0.1", "::1"},
	}
}

// hostAllowed matches host exactly or, for entries starting with a dot, as a
// subdomain suffix.
func hostAllowed(host string, allowed []string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	for _, a := range allowed {
		a = normalizeHost(a)
		switch {
		case a == "":
		case strings.HasPrefix(a, "."):
			if strings.HasSuffix(host, a) || host == a[1:] {
				return true
			}
		case host == a:
			return true
		}
	}
	return false
}

func pathAllowed(path string, allowed []string) bool {
	if path == "" {
		path = "/"
	}
	for _, a := range allowed {
		if path == a {
			return true
		}
	}
	return false
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if host, _, err := net.SplitHostPort(h); err == nil {
		h = host
	}
	return strings.Trim(h, "[]")
}
