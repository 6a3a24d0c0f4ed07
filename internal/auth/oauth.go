package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/FranLegon/mailbox-usage-report/internal/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	// CallbackAddr is where the local server waits for the authorization code.
	CallbackAddr = "localhost:8400"
	RedirectURL  = "http://" + CallbackAddr + "/callback"

	loginTimeout = 5 * time.Minute
)

// Scopes needed to read another mailbox's folders and the usage reports.
var Scopes = []string{
	"https://graph.microsoft.com/User.Read.All",
	"https://graph.microsoft.com/Mail.Read.Shared",
	"https://graph.microsoft.com/Reports.Read.All",
	"offline_access",
}

// OAuthConfig returns the delegated OAuth2 configuration for a tenant.
func OAuthConfig(tenantID, clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  RedirectURL,
		Scopes:       Scopes,
		Endpoint:     microsoft.AzureADEndpoint(tenantID),
	}
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler accepts exactly one authorization response for state.
func callbackHandler(state string, results chan<- callbackResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("state") != state:
			res.err = errors.New("state mismatch")
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s: %s", q.Get("error"), q.Get("error_description"))
		case q.Get("code") == "":
			res.err = errors.New("no authorization code received")
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: %v. You can close this window.", res.err)
		} else {
			fmt.Fprint(w, "Authorization successful! You can close this window and return to the terminal.")
		}

		select {
		case results <- res:
		default:
		}
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// PerformOAuthFlow runs the authorization code flow through a local callback
// server and returns the refresh token.
func PerformOAuthFlow(ctx context.Context, config *oauth2.Config) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", err
	}

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(state, results))

	ln, err := net.Listen("tcp", CallbackAddr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server: %w", err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			results <- callbackResult{err: fmt.Errorf("server error: %w", err)}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("Please visit this URL to authorize the application:")
	logger.Info("%s", config.AuthCodeURL(state, oauth2.AccessTypeOffline))

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(loginTimeout):
		return "", fmt.Errorf("OAuth flow timed out after %v", loginTimeout)
	}
	if res.err != nil {
		return "", res.err
	}

	token, err := config.Exchange(ctx, res.code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code for token: %w", err)
	}
	if token.RefreshToken == "" {
		return "", errors.New("no refresh token received, check that offline_access is granted")
	}
	return token.RefreshToken, nil
}
