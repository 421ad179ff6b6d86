package qrlogin

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenlink-im/zenlink-go/pkg/cookiejar"
)

func stepOrchestrator(t *testing.T, serverURL string, opts ...Option) *Orchestrator {
	t.Helper()
	base := []Option{
		WithBaseURL(serverURL),
		WithAccountBaseURL(serverURL),
		WithUserAgent("test-agent"),
	}
	o := New(ObserverFunc(func(Event) {}), append(base, opts...)...)
	t.Cleanup(o.Close)
	return o
}

// redirectChain serves a session-check that redirects `hops` times before
// answering 200, dropping a distinct cookie on every response.
func redirectChain(t *testing.T, hops int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login/session", func(w http.ResponseWriter, r *http.Request) {
		hop := 0
		if h := r.URL.Query().Get("hop"); h != "" {
			hop, _ = strconv.Atoi(h)
		}
		http.SetCookie(w, &http.Cookie{Name: fmt.Sprintf("hop%d", hop), Value: "1"})
		if hop < hops {
			http.Redirect(w, r, fmt.Sprintf("/api/login/session?hop=%d", hop+1), http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestCheckSessionWithinRedirectBound(t *testing.T) {
	server := redirectChain(t, 9)
	o := stepOrchestrator(t, server.URL)
	jar := cookiejar.New()

	lerr := o.checkSession(jar)
	require.Nil(t, lerr)

	// 9 redirects plus the final 200 leave one cookie per hop.
	assert.Equal(t, 10, jar.Len())
}

func TestCheckSessionExceedingRedirectBound(t *testing.T) {
	server := redirectChain(t, 11)
	o := stepOrchestrator(t, server.URL)

	lerr := o.checkSession(cookiejar.New())
	require.NotNil(t, lerr)
	assert.Equal(t, ErrKindFlow, lerr.Kind)
}

func TestCheckSessionUnexpectedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login/session", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	o := stepOrchestrator(t, server.URL)
	lerr := o.checkSession(cookiejar.New())
	require.NotNil(t, lerr)
	assert.Equal(t, ErrKindProtocol, lerr.Kind)
	assert.Equal(t, http.StatusForbidden, lerr.Code)
}

func TestPostCheckedLenientOnNonJSONBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/verify-client", func(w http.ResponseWriter, r *http.Request) {
		// Some deployments answer this step with a plain page.
		fmt.Fprint(w, "<html>OK</html>")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	o := stepOrchestrator(t, server.URL)
	lerr := o.postVerifyClient(cookiejar.New(), "637")
	assert.Nil(t, lerr)
}

func TestPostCheckedRejectsServiceError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/login-info", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, `{"error_code":21,"error_message":"unsupported client"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	o := stepOrchestrator(t, server.URL)
	lerr := o.postLoginInfo(cookiejar.New(), "637")
	require.NotNil(t, lerr)
	assert.Equal(t, ErrKindProtocol, lerr.Kind)
	assert.Equal(t, 21, lerr.Code)
}

func TestPostCheckedRejectsNon200(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/login-info", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	o := stepOrchestrator(t, server.URL)
	lerr := o.postLoginInfo(cookiejar.New(), "637")
	require.NotNil(t, lerr)
	assert.Equal(t, ErrKindProtocol, lerr.Kind)
	assert.Equal(t, http.StatusGatewayTimeout, lerr.Code)
}

func TestPollScanClassification(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantPending bool
		wantKind    ErrorKind
	}{
		{name: "pending", body: `{"error_code":8}`, wantPending: true},
		{name: "scanned", body: `{"error_code":0,"data":{"avatar":"a","display_name":"n"}}`},
		{name: "success without data", body: `{"error_code":0}`, wantKind: ErrKindStructural},
		{name: "unknown code", body: `{"error_code":-7,"error_message":"bad code"}`, wantKind: ErrKindProtocol},
		{name: "not json", body: `<html/>`, wantKind: ErrKindStructural},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/login/qr/waiting-scan", func(w http.ResponseWriter, r *http.Request) {
				respondJSON(w, tt.body)
			})
			server := httptest.NewServer(mux)
			t.Cleanup(server.Close)

			o := stepOrchestrator(t, server.URL)
			outcome := o.pollScan(cookiejar.New(), "637", "ABC123")

			assert.Equal(t, tt.wantPending, outcome.pending)
			if tt.wantKind != "" {
				require.NotNil(t, outcome.err)
				assert.Equal(t, tt.wantKind, outcome.err.Kind)
			} else {
				assert.Nil(t, outcome.err)
			}
		})
	}
}

func TestPollConfirmClassification(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantPending  bool
		wantDeclined bool
		wantKind     ErrorKind
	}{
		{name: "pending", body: `{"error_code":8}`, wantPending: true},
		{name: "declined", body: `{"error_code":-13}`, wantDeclined: true},
		{name: "confirmed", body: `{"error_code":0}`},
		{name: "unknown code", body: `{"error_code":500}`, wantKind: ErrKindProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/login/qr/waiting-confirm", func(w http.ResponseWriter, r *http.Request) {
				respondJSON(w, tt.body)
			})
			server := httptest.NewServer(mux)
			t.Cleanup(server.Close)

			o := stepOrchestrator(t, server.URL)
			outcome := o.pollConfirm(cookiejar.New(), "637", "ABC123")

			assert.Equal(t, tt.wantPending, outcome.pending)
			assert.Equal(t, tt.wantDeclined, outcome.declined)
			if tt.wantKind != "" {
				require.NotNil(t, outcome.err)
				assert.Equal(t, tt.wantKind, outcome.err.Kind)
			}
		})
	}
}

func TestStepsSendVersionAndCookies(t *testing.T) {
	var gotVersion, gotCookie string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/qr/waiting-scan", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotVersion = r.PostFormValue("version")
		gotCookie = r.Header.Get("Cookie")
		respondJSON(w, `{"error_code":8}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	o := stepOrchestrator(t, server.URL)
	jar := cookiejar.New()
	require.NoError(t, jar.Store(server.URL+"/qr-login", "zsid=abc"))

	o.pollScan(jar, "637", "ABC123")

	assert.Equal(t, "637", gotVersion)
	assert.Equal(t, "zsid=abc", gotCookie)
}
