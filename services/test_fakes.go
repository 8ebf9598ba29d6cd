package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/mvercan/latch/core"
)

// Test-only fakes for the ports in core. Each exposes error fields for
// behavior injection and counters for interaction assertions.

// fakeKeyStore implements core.KeyStore over a map.
type fakeKeyStore struct {
	mu      sync.Mutex
	keys    map[core.AccountID]core.ArmoredKey
	loadErr error
	loads   int
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: make(map[core.AccountID]core.ArmoredKey)}
}

func (f *fakeKeyStore) Load(_ context.Context, id core.AccountID) (core.ArmoredKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return "", f.loadErr
	}
	key, ok := f.keys[id]
	if !ok {
		return "", core.ErrKeyNotFound
	}
	return key, nil
}

func (f *fakeKeyStore) Store(_ context.Context, id core.AccountID, key core.ArmoredKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[id] = key
	return nil
}

func (f *fakeKeyStore) Delete(_ context.Context, id core.AccountID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, id)
	return nil
}

// fakeGate implements core.BiometricGate with a scripted answer.
type fakeGate struct {
	mu      sync.Mutex
	allow   bool
	err     error
	prompts int
}

func (f *fakeGate) Authorize(_ context.Context, _ core.AccountID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts++
	return f.allow, f.err
}

// fakeVerifier implements core.MFAVerifier.
type fakeVerifier struct {
	mu     sync.Mutex
	err    error
	checks int
}

func (f *fakeVerifier) Verify(_ context.Context, _ core.Account, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.err
}

// fakeDB implements core.LocalDB and records executed statements.
type fakeDB struct {
	mu      sync.Mutex
	execErr error
	execs   []string
}

func (f *fakeDB) Exec(_ context.Context, query string, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return f.execErr
	}
	f.execs = append(f.execs, query)
	return nil
}

func (f *fakeDB) Query(_ context.Context, query string, _ ...any) (*sql.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return nil, f.execErr
	}
	f.execs = append(f.execs, query)
	return nil, nil
}

// fakeAuthServer implements core.Transport by speaking the default wire
// contract in-process. Zero-value status fields mean 200.
type fakeAuthServer struct {
	mu    sync.Mutex
	calls map[string]int

	netErr error // transport-level failure on every path

	challenge       string
	challengeStatus int

	signInStatus int
	signInToken  string
	refreshToken string
	providers    []string
	signInHold   chan struct{} // when set, sign-in blocks until closed

	refreshStatus    int
	refreshOutToken  string
	refreshRotated   string // when set, returned as the rotated refresh token
	refreshPresented string // last refresh token seen in a refresh body

	revokeStatus int

	mfaStatus int
}

func newFakeAuthServer() *fakeAuthServer {
	return &fakeAuthServer{
		calls:     make(map[string]int),
		challenge: "nonce-1",
	}
}

func (f *fakeAuthServer) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeAuthServer) presentedRefresh() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshPresented
}

func (f *fakeAuthServer) Post(ctx context.Context, url string, _ map[string]string, body []byte) (int, []byte, error) {
	i := strings.Index(url, "/v1/")
	if i < 0 {
		return http.StatusNotFound, nil, nil
	}
	path := url[i:]

	f.mu.Lock()
	f.calls[path]++
	netErr := f.netErr
	f.mu.Unlock()

	if netErr != nil {
		return 0, nil, netErr
	}

	wire := core.DefaultWireConfig()
	switch path {
	case wire.ChallengePath:
		if f.challengeStatus != 0 {
			return f.challengeStatus, nil, nil
		}
		return http.StatusOK, jsonBody(map[string]any{wire.FieldChallenge: f.challenge}), nil

	case wire.SessionPath:
		if f.signInHold != nil {
			select {
			case <-f.signInHold:
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			}
		}
		if f.signInStatus != 0 {
			return f.signInStatus, nil, nil
		}
		resp := map[string]any{wire.FieldToken: f.signInToken}
		if f.refreshToken != "" {
			resp[wire.FieldRefreshToken] = f.refreshToken
		}
		if len(f.providers) > 0 {
			resp[wire.FieldProviders] = f.providers
		}
		return http.StatusOK, jsonBody(resp), nil

	case wire.RefreshPath:
		var req map[string]string
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		f.refreshPresented = req[wire.FieldRefreshToken]
		f.mu.Unlock()
		if f.refreshStatus != 0 {
			return f.refreshStatus, nil, nil
		}
		resp := map[string]any{wire.FieldToken: f.refreshOutToken}
		if f.refreshRotated != "" {
			resp[wire.FieldRefreshToken] = f.refreshRotated
		}
		return http.StatusOK, jsonBody(resp), nil

	case wire.RevokePath:
		if f.revokeStatus != 0 {
			return f.revokeStatus, nil, nil
		}
		return http.StatusOK, jsonBody(map[string]any{}), nil

	case wire.MFAPath:
		if f.mfaStatus != 0 {
			return f.mfaStatus, nil, nil
		}
		return http.StatusOK, jsonBody(map[string]any{}), nil
	}

	return http.StatusNotFound, nil, nil
}

func jsonBody(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal fake response: %v", err))
	}
	return b
}

// mintCompact builds a compact token with the given exp claim. The
// signature is garbage; nothing client-side verifies it.
func mintCompact(exp int64) string {
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"EdDSA","typ":"JWT"}`))
	payload := enc.EncodeToString(jsonBody(map[string]any{"exp": exp, "iss": "fake"}))
	return header + "." + payload + "." + enc.EncodeToString([]byte("sig"))
}
