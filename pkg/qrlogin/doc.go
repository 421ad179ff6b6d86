// Package qrlogin drives the QR-code login handshake of the Zenlink chat
// platform.
//
// A login attempt is a multi-round-trip flow: fetch the login page and
// extract the build version, announce and verify the client, generate a QR
// code, long-poll until a phone scans it, long-poll again until the phone
// confirms, then walk the session-check redirects and fetch the user's
// identity. Two independent human actions (scan, confirm) and one expiry
// timer are correlated by a single worker goroutine per attempt.
//
// # Architecture
//
// Orchestrator coordinates:
//   - cookiejar.Jar - per-attempt cookie accumulation across every hop
//   - httpclient.Client - raw transport, redirects driven manually where needed
//   - Observer - the embedder's event sink (QR rendering, UI updates)
//
// External commands (Abort, Retry) and asynchronous completions (poll
// results, timer fires) are mailbox messages tagged with the epoch they were
// scheduled under; the worker silently drops any message from a previous
// epoch. That tag is the only cancellation mechanism - in-flight network
// calls are never killed, their responses just become no-ops.
//
// # Basic Usage
//
//	observer := qrlogin.ObserverFunc(func(event qrlogin.Event) {
//		switch event.Type {
//		case qrlogin.EventQRGenerated:
//			renderQR(event.Image)
//		case qrlogin.EventLoginComplete:
//			saveSession(event.Session)
//		}
//	})
//
//	o := qrlogin.New(observer)
//	defer o.Close()
//	o.Start()
package qrlogin
