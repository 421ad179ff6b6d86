package cookiejar

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Cookie is a single cookie record captured from a Set-Cookie response header.
// Records are append-only and never mutated after creation.
type Cookie struct {
	Domain string `json:"domain"`
	Path   string `json:"path"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// Jar accumulates the cookies of a single login attempt across every HTTP hop
// of the flow. It is a short-lived session accumulator, not a general-purpose
// cookie jar: records are only appended, duplicates are kept, and expiry
// attributes are ignored.
//
// A Jar is exclusively owned by one login attempt and is not safe for
// concurrent use.
type Jar struct {
	cookies []Cookie
}

// New creates an empty cookie jar.
func New() *Jar {
	return &Jar{}
}

// Store parses one Set-Cookie header value received from sourceURL and
// appends the resulting record. When the cookie carries no Domain attribute
// the source host is used; when it carries no Path attribute the path
// defaults to "/".
func (j *Jar) Store(sourceURL, setCookie string) error {
	c, err := http.ParseSetCookie(setCookie)
	if err != nil {
		return fmt.Errorf("failed to parse set-cookie value: %w", err)
	}

	domain := c.Domain
	if domain == "" {
		u, err := url.Parse(sourceURL)
		if err != nil {
			return fmt.Errorf("failed to parse source url: %w", err)
		}
		domain = u.Hostname()
	}

	path := c.Path
	if path == "" {
		path = "/"
	}

	j.cookies = append(j.cookies, Cookie{
		Domain: domain,
		Path:   path,
		Name:   c.Name,
		Value:  c.Value,
	})
	return nil
}

// StoreFromResponse captures every Set-Cookie header of one response.
// Unparseable values are skipped so a single malformed cookie does not lose
// the rest of the hop's cookies.
func (j *Jar) StoreFromResponse(sourceURL string, header http.Header) {
	for _, sc := range header.Values("Set-Cookie") {
		if err := j.Store(sourceURL, sc); err != nil {
			continue
		}
	}
}

// CookieHeader returns the "name=value; name=value" Cookie header value for
// all stored cookies matching targetURL, or the empty string when none match.
func (j *Jar) CookieHeader(targetURL string) (string, error) {
	return HeaderFor(j.cookies, targetURL)
}

// Export returns every cookie record accumulated so far, in storage order.
func (j *Jar) Export() []Cookie {
	out := make([]Cookie, len(j.cookies))
	copy(out, j.cookies)
	return out
}

// Len reports the number of stored cookie records.
func (j *Jar) Len() int {
	return len(j.cookies)
}

// HeaderFor builds a Cookie header value for targetURL from an exported
// cookie list. A cookie matches when its domain equals the target host or is
// a parent domain of it (a leading dot on the stored domain is ignored), and
// its path is a prefix of the target path.
func HeaderFor(cookies []Cookie, targetURL string) (string, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse target url: %w", err)
	}

	host := u.Hostname()
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	var pairs []string
	for _, c := range cookies {
		if !domainMatches(host, c.Domain) {
			continue
		}
		if !strings.HasPrefix(path, c.Path) {
			continue
		}
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; "), nil
}

// domainMatches reports whether host is covered by the cookie domain, using
// an exact match or a dot-boundary suffix match.
func domainMatches(host, domain string) bool {
	domain = strings.TrimPrefix(domain, ".")
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}
