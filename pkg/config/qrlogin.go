package config

import (
	"time"

	"github.com/sosodev/duration"
)

// QRLoginConfig contains QR login flow settings.
// Fields have no env tags - populate manually or from your own env loading.
type QRLoginConfig struct {
	// BaseURL is the login host the handshake runs against
	BaseURL string

	// AccountBaseURL is the host serving the user-info endpoint
	AccountBaseURL string

	// ContinueURL is the post-login destination sent with every step
	ContinueURL string

	// UserAgent is the user agent the whole attempt is performed under
	UserAgent string

	// QRExpiration is the QR code validity window (ISO 8601 format, e.g., "PT100S")
	QRExpiration string

	// MaxRedirects bounds the manual session-check redirect walk
	MaxRedirects int
}

// DefaultQRLoginConfig returns a QRLoginConfig with production defaults
func DefaultQRLoginConfig() QRLoginConfig {
	return QRLoginConfig{
		BaseURL:        "https://id.zenlink.me",
		AccountBaseURL: "https://account.zenlink.me",
		ContinueURL:    "https://chat.zenlink.me/",
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		QRExpiration:   "PT100S",
		MaxRedirects:   10,
	}
}

// NewQRLoginConfigFromEnv loads QRLoginConfig from standard environment variables.
// This is an optional convenience function - you can also populate the struct manually.
//
// Environment variables:
//   - ZENLINK_BASE_URL: Login host (default: "https://id.zenlink.me")
//   - ZENLINK_ACCOUNT_BASE_URL: User-info host (default: "https://account.zenlink.me")
//   - ZENLINK_CONTINUE_URL: Post-login destination (default: "https://chat.zenlink.me/")
//   - ZENLINK_USER_AGENT: Attempt user agent
//   - ZENLINK_QR_EXPIRATION: QR validity window in ISO 8601 format (default: "PT100S")
//   - ZENLINK_MAX_REDIRECTS: Session-check redirect bound (default: 10)
func NewQRLoginConfigFromEnv() QRLoginConfig {
	defaults := DefaultQRLoginConfig()
	return QRLoginConfig{
		BaseURL:        GetEnvOrDefault("ZENLINK_BASE_URL", defaults.BaseURL),
		AccountBaseURL: GetEnvOrDefault("ZENLINK_ACCOUNT_BASE_URL", defaults.AccountBaseURL),
		ContinueURL:    GetEnvOrDefault("ZENLINK_CONTINUE_URL", defaults.ContinueURL),
		UserAgent:      GetEnvOrDefault("ZENLINK_USER_AGENT", defaults.UserAgent),
		QRExpiration:   GetEnvOrDefault("ZENLINK_QR_EXPIRATION", defaults.QRExpiration),
		MaxRedirects:   GetEnvInt("ZENLINK_MAX_REDIRECTS", defaults.MaxRedirects),
	}
}

// ParseQRExpiration parses the QRExpiration field as a time.Duration.
// Supports ISO 8601 duration format (e.g., "PT100S") and Go duration format (e.g., "100s").
func (c *QRLoginConfig) ParseQRExpiration() (time.Duration, error) {
	return parseISO8601OrGoDuration(c.QRExpiration)
}

// parseISO8601OrGoDuration tries to parse as ISO 8601 first, then as Go duration
func parseISO8601OrGoDuration(s string) (time.Duration, error) {
	// Try ISO 8601 format first
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}

	// Fall back to Go duration format
	return time.ParseDuration(s)
}
