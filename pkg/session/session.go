package session

import (
	"time"

	"github.com/zenlink-im/zenlink-go/pkg/cookiejar"
)

// UserInfo is the identity extracted from the user-info endpoint at the end
// of a successful login.
type UserInfo struct {
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Session is the usable credential set produced by a completed QR login:
// every cookie accumulated across the flow, the generated device identifier,
// the user agent the cookies were issued against, and the resolved identity.
type Session struct {
	Cookies   []cookiejar.Cookie `json:"cookies"`
	IMEI      string             `json:"imei"`
	UserAgent string             `json:"user_agent"`
	UserInfo  UserInfo           `json:"user_info"`
	CreatedAt time.Time          `json:"created_at"`
}

// CookieHeader builds the Cookie header value for targetURL from the
// session's exported cookies.
func (s *Session) CookieHeader(targetURL string) (string, error) {
	return cookiejar.HeaderFor(s.Cookies, targetURL)
}
