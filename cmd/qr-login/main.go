package main

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jinzhu/copier"
	"github.com/zenlink-im/zenlink-go/pkg/config"
	"github.com/zenlink-im/zenlink-go/pkg/qrlogin"
	"github.com/zenlink-im/zenlink-go/pkg/session"
)

type QRLoginEnvConfig struct {
	BaseURL        string `env:"ZENLINK_BASE_URL" env-default:"https://id.zenlink.me"`
	AccountBaseURL string `env:"ZENLINK_ACCOUNT_BASE_URL" env-default:"https://account.zenlink.me"`
	ContinueURL    string `env:"ZENLINK_CONTINUE_URL" env-default:"https://chat.zenlink.me/"`
	UserAgent      string `env:"ZENLINK_USER_AGENT" env-default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	QRExpiration   string `env:"ZENLINK_QR_EXPIRATION" env-default:"PT100S"`
	MaxRedirects   int    `env:"ZENLINK_MAX_REDIRECTS" env-default:"10"`
}

type AppConfig struct {
	Addr        string `env:"QR_LOGIN_ADDR" env-default:"localhost:4000"`
	DataDir     string `env:"QR_LOGIN_DATA_DIR" env-default:"./data"`
	SessionName string `env:"QR_LOGIN_SESSION_NAME" env-default:"default"`
}

type Config struct {
	QRLoginEnvConfig QRLoginEnvConfig
	AppConfig        AppConfig
}

// loginView is the /qr and /status presentation state fed by login events.
type loginView struct {
	mutex   sync.Mutex
	qrImage []byte
	status  string
}

func (v *loginView) set(status string, qrImage []byte) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.status = status
	if qrImage != nil {
		v.qrImage = qrImage
	}
}

func (v *loginView) snapshot() (string, []byte) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.status, v.qrImage
}

func main() {
	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	qrCfg := config.DefaultQRLoginConfig()
	copier.Copy(&qrCfg, &cfg.QRLoginEnvConfig)

	qrExpiration, err := qrCfg.ParseQRExpiration()
	if err != nil {
		slog.Error("Invalid QR expiration", "value", qrCfg.QRExpiration, "error", err)
		os.Exit(-1)
	}

	repo, err := session.NewFileSessionRepository(cfg.AppConfig.DataDir)
	if err != nil {
		slog.Error("Failed creating session repository", "dataDir", cfg.AppConfig.DataDir, "error", err)
		os.Exit(-1)
	}

	view := &loginView{status: "starting"}

	// A retry after a terminal event can terminate a second time; the done
	// channel must only be closed once.
	done := make(chan struct{})
	var doneOnce sync.Once
	finish := func() { doneOnce.Do(func() { close(done) }) }

	observer := qrlogin.ObserverFunc(func(event qrlogin.Event) {
		switch event.Type {
		case qrlogin.EventQRGenerated:
			image, err := base64.StdEncoding.DecodeString(event.Image)
			if err != nil {
				slog.Error("Failed decoding QR image", "error", err)
				image = nil
			}
			view.set("waiting for scan", image)
			slog.Info("QR code generated, open /qr in a browser and scan it", "code", event.Code)
		case qrlogin.EventQRScanned:
			view.set("scanned by "+event.DisplayName+", confirm on the phone", nil)
			slog.Info("QR code scanned", "displayName", event.DisplayName)
		case qrlogin.EventQRExpired:
			view.set("QR code expired, POST /retry for a fresh one", nil)
			slog.Warn("QR code expired")
		case qrlogin.EventQRDeclined:
			view.set("login declined on the phone", nil)
			slog.Warn("Login declined", "code", event.Code)
			finish()
		case qrlogin.EventLoginComplete:
			view.set("login complete", nil)
			if err := repo.Save(context.Background(), cfg.AppConfig.SessionName, *event.Session); err != nil {
				slog.Error("Failed saving session", "name", cfg.AppConfig.SessionName, "error", err)
			} else {
				slog.Info("Session saved",
					"name", cfg.AppConfig.SessionName,
					"uid", event.Session.UserInfo.UID,
					"cookies", len(event.Session.Cookies))
			}
			finish()
		case qrlogin.EventLoginError:
			view.set("login failed: "+event.Err.Error(), nil)
			slog.Error("Login failed", "error", event.Err)
			finish()
		}
	})

	orchestrator := qrlogin.New(observer,
		qrlogin.WithBaseURL(qrCfg.BaseURL),
		qrlogin.WithAccountBaseURL(qrCfg.AccountBaseURL),
		qrlogin.WithContinueURL(qrCfg.ContinueURL),
		qrlogin.WithUserAgent(qrCfg.UserAgent),
		qrlogin.WithQRExpiration(qrExpiration),
		qrlogin.WithMaxRedirects(qrCfg.MaxRedirects),
	)
	defer orchestrator.Close()

	r := chi.NewRouter()
	r.Get("/qr", func(w http.ResponseWriter, req *http.Request) {
		_, image := view.snapshot()
		if image == nil {
			http.Error(w, "no QR code available yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(image)
	})
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		status, _ := view.snapshot()
		render.JSON(w, req, map[string]string{
			"status": status,
			"state":  string(orchestrator.State()),
		})
	})
	r.Post("/retry", func(w http.ResponseWriter, req *http.Request) {
		orchestrator.Retry()
		render.NoContent(w, req)
	})
	r.Post("/abort", func(w http.ResponseWriter, req *http.Request) {
		orchestrator.Abort()
		render.NoContent(w, req)
	})

	go func() {
		slog.Info("Serving login UI", "addr", cfg.AppConfig.Addr)
		if err := http.ListenAndServe(cfg.AppConfig.Addr, r); err != nil {
			slog.Error("HTTP server stopped", "error", err)
		}
	}()

	orchestrator.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-done:
	case <-stop:
		slog.Info("Interrupted, aborting login attempt")
		orchestrator.Abort()
	}
}
