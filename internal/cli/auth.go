package cli

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileAuth implements client.Authenticator over a session file written by
// the external auth flow. The sync layer never acquires credentials itself;
// it only consumes the authenticated signal and decorates outgoing requests.
type fileAuth struct {
	path string

	mu     sync.Mutex
	loaded time.Time
	token  string
	expiry time.Time
}

// sessionData mirrors the session file written by the auth flow.
type sessionData struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func newFileAuth(configDir string) *fileAuth {
	return &fileAuth{path: filepath.Join(configDir, "session.json")}
}

// IsAuthenticated reports whether a non-expired session is on disk.
func (a *fileAuth) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reload()
	return a.token != "" && time.Now().Before(a.expiry)
}

// Attach decorates an outgoing request with the session's bearer token.
func (a *fileAuth) Attach(req *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reload()
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
}

// reload re-reads the session file at most once per second so a login
// completed in another process is picked up without restarting.
func (a *fileAuth) reload() {
	if time.Since(a.loaded) < time.Second {
		return
	}
	a.loaded = time.Now()

	data, err := os.ReadFile(a.path)
	if err != nil {
		a.token = ""
		return
	}
	var session sessionData
	if err := json.Unmarshal(data, &session); err != nil {
		a.token = ""
		return
	}
	a.token = session.AccessToken
	a.expiry = session.ExpiresAt
}
