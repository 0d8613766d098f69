package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

// ErrStateMismatch means the callback did not carry the state we issued.
var ErrStateMismatch = errors.New("auth: oauth state mismatch")

// LoginFlow runs the authorization-code flow against a local callback.
type LoginFlow struct {
	cfg        *oauth2.Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewLoginFlow constructs a LoginFlow. httpClient may be nil.
func NewLoginFlow(cfg Config, httpClient *http.Client, logger *zap.Logger) *LoginFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginFlow{cfg: cfg.OAuthConfig(), httpClient: httpClient, logger: logger.Named("login")}
}

type loginResult struct {
	bundle domain.TokenBundle
	err    error
}

// Run listens on the redirect URL's host, passes the consent URL to open and
// waits for the provider to call back.
func (f *LoginFlow) Run(ctx context.Context, open func(authURL string)) (domain.TokenBundle, error) {
	redirect, err := url.Parse(f.cfg.RedirectURL)
	if err != nil {
		return domain.TokenBundle{}, fmt.Errorf("auth: redirect url: %w", err)
	}
	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return domain.TokenBundle{}, fmt.Errorf("auth: listen for callback: %w", err)
	}
	return f.Serve(ctx, ln, open)
}

// Serve is Run on an existing listener.
func (f *LoginFlow) Serve(ctx context.Context, ln net.Listener, open func(authURL string)) (domain.TokenBundle, error) {
	path := "/"
	if redirect, err := url.Parse(f.cfg.RedirectURL); err == nil && redirect.Path != "" {
		path = redirect.Path
	}

	state := uuid.NewString()
	results := make(chan loginResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(path, f.callback(state, results))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Warn("callback server stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := f.cfg.AuthCodeURL(state)
	f.logger.Info("waiting for authorization", zap.String("callback", ln.Addr().String()))
	open(authURL)

	select {
	case <-ctx.Done():
		return domain.TokenBundle{}, fmt.Errorf("auth: login canceled: %w", ctx.Err())
	case res := <-results:
		return res.bundle, res.err
	}
}

func (f *LoginFlow) callback(state string, results chan<- loginResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var res loginResult
		switch {
		case q.Get("state") != state:
			res.err = ErrStateMismatch
		case q.Get("error") != "":
			res.err = fmt.Errorf("auth: authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New("auth: callback without code")
		default:
			res.bundle, res.err = f.Exchange(r.Context(), q.Get("code"))
		}

		if res.err != nil {
			http.Error(w, "Login failed. You can close this window.", http.StatusBadRequest)
		} else {
			_, _ = w.Write([]byte("Login complete. You can close this window."))
		}

		select {
		case results <- res:
		default:
		}
	}
}

// Exchange trades an authorization code for a token bundle.
func (f *LoginFlow) Exchange(ctx context.Context, code string) (domain.TokenBundle, error) {
	if f.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}
	tok, err := f.cfg.Exchange(ctx, code)
	if err != nil {
		return domain.TokenBundle{}, fmt.Errorf("auth: exchange code: %w", err)
	}
	return bundleFromToken(tok, ""), nil
}
