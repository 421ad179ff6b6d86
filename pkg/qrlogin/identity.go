package qrlogin

import (
	"log/slog"

	"github.com/zenlink-im/zenlink-go/pkg/session"
)

// extractIdentity classifies the user-info data object into (uid, name,
// avatar). The service returns the data in several distinct shapes; the
// predicates below are evaluated strictly top to bottom and the first match
// wins. The ordering encodes observed server behavior, not logical necessity,
// so it must not be rearranged.
func extractIdentity(data map[string]any) (session.UserInfo, *LoginError) {
	uid, hasUID := stringField(data, "uid")
	info, hasInfo := mapField(data, "info")
	logged, hasLogged := boolField(data, "logged")

	// 1-2: uid plus an info object; name/avatar fall back to empty strings
	// when the keys are missing.
	if hasUID && hasInfo {
		name, _ := stringField(info, "name")
		avatar, _ := stringField(info, "avatar")
		return session.UserInfo{UID: uid, Name: name, Avatar: avatar}, nil
	}

	// 3-4: info object without a uid.
	if hasInfo {
		name, _ := stringField(info, "name")
		avatar, _ := stringField(info, "avatar")
		return session.UserInfo{Name: name, Avatar: avatar}, nil
	}

	// 5-6: no info object but the service reports the session as logged in;
	// uid may or may not be present.
	if hasLogged && logged {
		return session.UserInfo{UID: uid}, nil
	}

	if hasLogged && !logged {
		// 7: not logged in but a password confirmation is pending. The
		// session is still usable, proceed with whatever uid is present.
		if confirm, ok := boolField(data, "require_confirm_pwd"); ok && confirm {
			slog.Warn("user info requires password confirmation, proceeding with partial identity", "uid", uid)
			return session.UserInfo{UID: uid}, nil
		}

		// 8: not logged in, no pending confirmation.
		return session.UserInfo{}, newProtocolError(0, "user info reports session not logged in")
	}

	return session.UserInfo{}, newStructuralError("user info data matches no known shape")
}

// stringField returns m[key] when it is present as a string.
func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// boolField returns m[key] when it is present as a bool.
func boolField(m map[string]any, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// mapField returns m[key] when it is present as a JSON object.
func mapField(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	sub, ok := v.(map[string]any)
	return sub, ok
}
