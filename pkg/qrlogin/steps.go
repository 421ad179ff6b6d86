package qrlogin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/zenlink-im/zenlink-go/pkg/cookiejar"
	"github.com/zenlink-im/zenlink-go/pkg/session"
)

// Service error codes of the login API.
const (
	codeSuccess  = 0
	codePending  = 8
	codeDeclined = -13
)

// Endpoint paths. Every step except the user-info fetch runs against the
// login host; user-info lives on the account host.
const (
	loginPagePath      = "/qr-login"
	loginInfoPath      = "/api/login/login-info"
	verifyClientPath   = "/api/login/verify-client"
	qrGeneratePath     = "/api/login/qr/generate"
	waitingScanPath    = "/api/login/qr/waiting-scan"
	waitingConfirmPath = "/api/login/qr/waiting-confirm"
	sessionCheckPath   = "/api/login/session"
	userInfoPath       = "/api/profile/me"
)

const qrImagePrefix = "data:image/png;base64,"

// envelope is the common JSON wrapper of every login API response.
type envelope struct {
	ErrorCode    int             `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
	Data         json.RawMessage `json:"data"`
}

// qrPayload is the data object of a qr/generate response.
type qrPayload struct {
	Code    string    `json:"code"`
	Image   string    `json:"image"`
	Options QROptions `json:"options"`
}

// scanPayload is the data object of a waiting-scan response once the code
// has been scanned.
type scanPayload struct {
	Avatar      string `json:"avatar"`
	DisplayName string `json:"display_name"`
}

type scanOutcome struct {
	pending     bool
	avatar      string
	displayName string
	err         *LoginError
}

type confirmOutcome struct {
	pending  bool
	declined bool
	err      *LoginError
}

// headers builds the request headers for one step, attaching the attempt's
// accumulated cookies that match targetURL.
func (o *Orchestrator) headers(jar *cookiejar.Jar, targetURL string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", o.userAgent)
	h.Set("Accept", "application/json, text/plain, */*")
	if cookieHeader, err := jar.CookieHeader(targetURL); err == nil && cookieHeader != "" {
		h.Set("Cookie", cookieHeader)
	}
	return h
}

// fetchLoginPage loads the login landing page, captures its cookies and
// extracts the build version token from the HTML.
func (o *Orchestrator) fetchLoginPage(jar *cookiejar.Jar) (string, *LoginError) {
	pageURL := o.baseURL + loginPagePath + "?continue=" + url.QueryEscape(o.continueURL)

	resp, err := o.transport.Get(o.ctx, pageURL, o.headers(jar, pageURL))
	if err != nil {
		return "", newNetworkError("login page request failed", err)
	}
	jar.StoreFromResponse(pageURL, resp.Header)

	if resp.StatusCode != http.StatusOK {
		return "", newProtocolError(resp.StatusCode, "unexpected login page status")
	}
	return extractVersion(string(resp.Body))
}

// postLoginInfo announces the client to the service before QR generation.
func (o *Orchestrator) postLoginInfo(jar *cookiejar.Jar, version string) *LoginError {
	return o.postChecked(jar, loginInfoPath, version, "login-info")
}

// postVerifyClient completes the pre-QR client verification handshake.
func (o *Orchestrator) postVerifyClient(jar *cookiejar.Jar, version string) *LoginError {
	return o.postChecked(jar, verifyClientPath, version, "verify-client")
}

// postChecked POSTs a version-bearing form and checks the envelope's success
// code. A 200 response whose body does not decode as JSON is treated as
// success: the service is known to answer these two steps with a non-JSON
// body on some deployments.
func (o *Orchestrator) postChecked(jar *cookiejar.Jar, path, version, step string) *LoginError {
	stepURL := o.baseURL + path
	data := url.Values{}
	data.Set("continue", o.continueURL)
	data.Set("version", version)

	resp, err := o.transport.PostForm(o.ctx, stepURL, data, o.headers(jar, stepURL))
	if err != nil {
		return newNetworkError(step+" request failed", err)
	}
	jar.StoreFromResponse(stepURL, resp.Header)

	if resp.StatusCode != http.StatusOK {
		return newProtocolError(resp.StatusCode, "unexpected "+step+" status")
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		slog.Warn("treating undecodable response as success", "step", step, "error", err)
		return nil
	}
	if env.ErrorCode != codeSuccess {
		return newProtocolError(env.ErrorCode, fmt.Sprintf("%s failed: %s", step, env.ErrorMessage))
	}
	return nil
}

// generateQR requests a fresh QR code. The returned image has the data-URL
// prefix already stripped.
func (o *Orchestrator) generateQR(jar *cookiejar.Jar, version string) (qrPayload, *LoginError) {
	stepURL := o.baseURL + qrGeneratePath
	data := url.Values{}
	data.Set("continue", o.continueURL)
	data.Set("version", version)

	resp, err := o.transport.PostForm(o.ctx, stepURL, data, o.headers(jar, stepURL))
	if err != nil {
		return qrPayload{}, newNetworkError("qr generate request failed", err)
	}
	jar.StoreFromResponse(stepURL, resp.Header)

	if resp.StatusCode != http.StatusOK {
		return qrPayload{}, newProtocolError(resp.StatusCode, "unexpected qr generate status")
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return qrPayload{}, newStructuralError("qr generate response is not valid JSON")
	}
	if env.ErrorCode != codeSuccess {
		return qrPayload{}, newProtocolError(env.ErrorCode, "qr generate failed: "+env.ErrorMessage)
	}
	if env.Data == nil {
		return qrPayload{}, newStructuralError("qr generate response missing data")
	}

	var qr qrPayload
	if err := json.Unmarshal(env.Data, &qr); err != nil {
		return qrPayload{}, newStructuralError("qr generate data has unexpected shape")
	}
	if qr.Code == "" {
		return qrPayload{}, newStructuralError("qr generate data missing code")
	}

	qr.Image = strings.TrimPrefix(qr.Image, qrImagePrefix)
	return qr, nil
}

// pollScan issues one waiting-scan long-poll round and classifies the reply.
func (o *Orchestrator) pollScan(jar *cookiejar.Jar, version, code string) scanOutcome {
	env, lerr := o.poll(jar, waitingScanPath, version, code, "waiting-scan")
	if lerr != nil {
		return scanOutcome{err: lerr}
	}

	switch {
	case env.ErrorCode == codePending:
		return scanOutcome{pending: true}
	case env.ErrorCode == codeSuccess && env.Data != nil:
		var payload scanPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return scanOutcome{err: newStructuralError("waiting-scan data has unexpected shape")}
		}
		return scanOutcome{avatar: payload.Avatar, displayName: payload.DisplayName}
	case env.ErrorCode == codeSuccess:
		return scanOutcome{err: newStructuralError("waiting-scan response missing data")}
	default:
		return scanOutcome{err: newProtocolError(env.ErrorCode, "waiting-scan failed: "+env.ErrorMessage)}
	}
}

// pollConfirm issues one waiting-confirm long-poll round and classifies the
// reply.
func (o *Orchestrator) pollConfirm(jar *cookiejar.Jar, version, code string) confirmOutcome {
	env, lerr := o.poll(jar, waitingConfirmPath, version, code, "waiting-confirm")
	if lerr != nil {
		return confirmOutcome{err: lerr}
	}

	switch env.ErrorCode {
	case codePending:
		return confirmOutcome{pending: true}
	case codeDeclined:
		return confirmOutcome{declined: true}
	case codeSuccess:
		return confirmOutcome{}
	default:
		return confirmOutcome{err: newProtocolError(env.ErrorCode, "waiting-confirm failed: "+env.ErrorMessage)}
	}
}

// poll performs the shared request/decode portion of the two waiting
// endpoints. Classification stays in the callers.
func (o *Orchestrator) poll(jar *cookiejar.Jar, path, version, code, step string) (envelope, *LoginError) {
	stepURL := o.baseURL + path
	data := url.Values{}
	data.Set("code", code)
	data.Set("continue", o.continueURL)
	data.Set("version", version)

	resp, err := o.transport.PostForm(o.ctx, stepURL, data, o.headers(jar, stepURL))
	if err != nil {
		return envelope{}, newNetworkError(step+" request failed", err)
	}
	jar.StoreFromResponse(stepURL, resp.Header)

	if resp.StatusCode != http.StatusOK {
		return envelope{}, newProtocolError(resp.StatusCode, "unexpected "+step+" status")
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return envelope{}, newStructuralError(step + " response is not valid JSON")
	}
	return env, nil
}

// checkSession walks the session-check redirect chain by hand so cookies can
// be captured at every hop. The walk is bounded by the configured redirect
// limit; a terminal 200 ends it successfully.
func (o *Orchestrator) checkSession(jar *cookiejar.Jar) *LoginError {
	current := o.baseURL + sessionCheckPath + "?continue=" + url.QueryEscape(o.continueURL)

	for hop := 0; hop <= o.maxRedirects; hop++ {
		resp, err := o.transport.GetNoRedirect(o.ctx, current, o.headers(jar, current))
		if err != nil {
			return newNetworkError("session check request failed", err)
		}
		jar.StoreFromResponse(current, resp.Header)

		if resp.StatusCode == http.StatusOK {
			return nil
		}
		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			return newProtocolError(resp.StatusCode, "unexpected session check status")
		}

		location := resp.Header.Get("Location")
		if location == "" {
			return newStructuralError("session check redirect missing location header")
		}

		base, parseErr := url.Parse(current)
		if parseErr != nil {
			return newStructuralError("session check url is not parseable")
		}
		next, parseErr := base.Parse(location)
		if parseErr != nil {
			return newStructuralError("session check redirect location is not parseable")
		}
		current = next.String()
	}

	return newFlowError("too many redirects during session check")
}

// fetchUserInfo loads the user-info endpoint on the account host and resolves
// the identity from its data object.
func (o *Orchestrator) fetchUserInfo(jar *cookiejar.Jar) (session.UserInfo, *LoginError) {
	infoURL := o.accountBaseURL + userInfoPath

	resp, err := o.transport.Get(o.ctx, infoURL, o.headers(jar, infoURL))
	if err != nil {
		return session.UserInfo{}, newNetworkError("user info request failed", err)
	}
	jar.StoreFromResponse(infoURL, resp.Header)

	if resp.StatusCode != http.StatusOK {
		return session.UserInfo{}, newProtocolError(resp.StatusCode, "unexpected user info status")
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return session.UserInfo{}, newStructuralError("user info response is not valid JSON")
	}
	if env.ErrorCode != codeSuccess {
		return session.UserInfo{}, newProtocolError(env.ErrorCode, "user info failed: "+env.ErrorMessage)
	}
	if env.Data == nil {
		return session.UserInfo{}, newStructuralError("user info response missing data")
	}

	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return session.UserInfo{}, newStructuralError("user info data has unexpected shape")
	}
	return extractIdentity(data)
}
