package cookiejar

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreDefaultsDomainAndPath(t *testing.T) {
	jar := New()

	err := jar.Store("https://id.zenlink.me/qr-login", "zsid=abc123")
	require.NoError(t, err)

	cookies := jar.Export()
	require.Len(t, cookies, 1)
	assert.Equal(t, "id.zenlink.me", cookies[0].Domain)
	assert.Equal(t, "/", cookies[0].Path)
	assert.Equal(t, "zsid", cookies[0].Name)
	assert.Equal(t, "abc123", cookies[0].Value)
}

func TestStoreKeepsExplicitAttributes(t *testing.T) {
	jar := New()

	err := jar.Store("https://id.zenlink.me/qr-login", "token=xyz; Domain=.zenlink.me; Path=/api; HttpOnly")
	require.NoError(t, err)

	cookies := jar.Export()
	require.Len(t, cookies, 1)
	assert.Equal(t, ".zenlink.me", cookies[0].Domain)
	assert.Equal(t, "/api", cookies[0].Path)
}

func TestStoreRejectsMalformedValue(t *testing.T) {
	jar := New()

	err := jar.Store("https://id.zenlink.me/", "not a cookie at all;;;")
	assert.Error(t, err)
	assert.Equal(t, 0, jar.Len())
}

func TestStoreFromResponseCapturesAllHeaders(t *testing.T) {
	jar := New()
	header := http.Header{}
	header.Add("Set-Cookie", "a=1")
	header.Add("Set-Cookie", "b=2; Path=/login")

	jar.StoreFromResponse("https://id.zenlink.me/qr-login", header)

	assert.Equal(t, 2, jar.Len())
}

func TestCookieHeaderDomainAndPathMatching(t *testing.T) {
	jar := New()
	require.NoError(t, jar.Store("https://id.zenlink.me/", "exact=1"))
	require.NoError(t, jar.Store("https://id.zenlink.me/", "parent=2; Domain=.zenlink.me"))
	require.NoError(t, jar.Store("https://id.zenlink.me/", "other=3; Domain=other.example.com"))
	require.NoError(t, jar.Store("https://id.zenlink.me/", "scoped=4; Path=/api/login"))

	header, err := jar.CookieHeader("https://id.zenlink.me/api/login/qr/generate")
	require.NoError(t, err)
	assert.Equal(t, "exact=1; parent=2; scoped=4", header)

	// Cookie on the parent domain is visible from a sibling host, the
	// host-scoped ones are not.
	header, err = jar.CookieHeader("https://account.zenlink.me/api/profile/me")
	require.NoError(t, err)
	assert.Equal(t, "parent=2", header)

	// Path prefix must match.
	header, err = jar.CookieHeader("https://id.zenlink.me/other")
	require.NoError(t, err)
	assert.Equal(t, "exact=1; parent=2", header)
}

func TestCookieHeaderNoSuffixMatchWithoutDotBoundary(t *testing.T) {
	jar := New()
	require.NoError(t, jar.Store("https://id.zenlink.me/", "c=1; Domain=link.me"))

	header, err := jar.CookieHeader("https://zenlink.me/")
	require.NoError(t, err)
	assert.Equal(t, "", header)
}

func TestCookieHeaderEmptyWhenNothingMatches(t *testing.T) {
	jar := New()

	header, err := jar.CookieHeader("https://id.zenlink.me/")
	require.NoError(t, err)
	assert.Equal(t, "", header)
}

func TestExportKeepsDuplicates(t *testing.T) {
	jar := New()
	require.NoError(t, jar.Store("https://id.zenlink.me/", "zsid=first"))
	require.NoError(t, jar.Store("https://id.zenlink.me/", "zsid=second"))

	cookies := jar.Export()
	require.Len(t, cookies, 2)
	assert.Equal(t, "first", cookies[0].Value)
	assert.Equal(t, "second", cookies[1].Value)
}
