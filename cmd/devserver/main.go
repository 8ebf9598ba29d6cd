// Command devserver runs an in-memory auth server speaking the default
// wire contract. It exists for local development and integration work
// against a real HTTP surface; nothing it stores survives a restart.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/pquerna/otp/totp"

	"github.com/mvercan/latch/core"
	"github.com/mvercan/latch/pkg/crypto"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	ttl := flag.Duration("ttl", 15*time.Minute, "token lifetime")
	grace := flag.Duration("grace", 5*time.Minute, "refresh grace past expiry")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	srv, err := newDevServer(*ttl, *grace, log)
	if err != nil {
		log.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	app := fiber.New()
	srv.registerRoutes(app)

	log.Info("devserver listening", "addr", *addr, "ttl", *ttl, "grace", *grace)
	if err := app.Listen(*addr); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type devAccount struct {
	pub        ed25519.PublicKey
	totpSecret string
}

type devSession struct {
	account    string
	token      string
	refresh    string
	expiresAt  time.Time
	pendingMFA bool
}

// devServer holds everything in memory behind one mutex; contention is
// irrelevant at dev scale.
type devServer struct {
	wire  core.WireConfig
	ttl   time.Duration
	grace time.Duration
	log   *slog.Logger

	signKey ed25519.PrivateKey

	mu         sync.Mutex
	accounts   map[string]*devAccount
	challenges map[string]string
	sessions   map[string]*devSession // keyed by token
}

func newDevServer(ttl, grace time.Duration, log *slog.Logger) (*devServer, error) {
	_, signKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &devServer{
		wire:       core.DefaultWireConfig(),
		ttl:        ttl,
		grace:      grace,
		log:        log,
		signKey:    signKey,
		accounts:   make(map[string]*devAccount),
		challenges: make(map[string]string),
		sessions:   make(map[string]*devSession),
	}, nil
}

func (s *devServer) registerRoutes(app *fiber.App) {
	app.Post("/v1/auth/register", s.register)
	app.Post(s.wire.ChallengePath, s.challenge)
	app.Post(s.wire.SessionPath, s.createSession)
	app.Post(s.wire.RefreshPath, s.refreshSession)
	app.Post(s.wire.RevokePath, s.revokeSession)
	app.Post(s.wire.MFAPath, s.confirmMFA)
}

// register enrolls a public key for an account. With mfa=true a TOTP
// authenticator is enrolled too and its secret returned, so a dev client
// can feed it to an authenticator app (or to totp.GenerateCode directly).
func (s *devServer) register(c fiber.Ctx) error {
	var req struct {
		AccountID string `json:"account_id"`
		PublicKey string `json:"public_key"`
		MFA       bool   `json:"mfa"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	id, err := core.ParseAccountID(req.AccountID)
	if err != nil {
		return badRequest(c, "invalid account id")
	}
	pub, err := base64.RawURLEncoding.DecodeString(req.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return badRequest(c, "invalid public key")
	}

	acct := &devAccount{pub: ed25519.PublicKey(pub)}
	resp := fiber.Map{"account_id": id.String()}
	if req.MFA {
		key, err := totp.Generate(totp.GenerateOpts{Issuer: "latch-dev", AccountName: id.String()})
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "mfa enrollment failed"})
		}
		acct.totpSecret = key.Secret()
		resp["mfa_secret"] = key.Secret()
	}

	s.mu.Lock()
	s.accounts[id.String()] = acct
	s.mu.Unlock()

	s.log.Info("account registered", "account", id.String(), "mfa", req.MFA)
	return c.Status(http.StatusCreated).JSON(resp)
}

func (s *devServer) challenge(c fiber.Ctx) error {
	var req map[string]string
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	account := req[s.wire.FieldAccountID]

	s.mu.Lock()
	_, known := s.accounts[account]
	s.mu.Unlock()
	if !known {
		return unauthorized(c)
	}

	nonce, err := crypto.NewID()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "nonce generation failed"})
	}

	s.mu.Lock()
	s.challenges[account] = nonce
	s.mu.Unlock()

	return c.JSON(fiber.Map{s.wire.FieldChallenge: nonce})
}

func (s *devServer) createSession(c fiber.Ctx) error {
	var req map[string]string
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	account := req[s.wire.FieldAccountID]
	challenge := req[s.wire.FieldChallenge]
	sig, err := base64.RawURLEncoding.DecodeString(req[s.wire.FieldSignature])
	if err != nil {
		return badRequest(c, "invalid signature encoding")
	}

	s.mu.Lock()
	acct, known := s.accounts[account]
	issued, hasChallenge := s.challenges[account]
	delete(s.challenges, account) // single use either way
	s.mu.Unlock()

	if !known || !hasChallenge || challenge != issued {
		return unauthorized(c)
	}
	if !ed25519.Verify(acct.pub, []byte(challenge), sig) {
		return unauthorized(c)
	}

	sess, err := s.mintSession(account, acct.totpSecret != "")
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "token minting failed"})
	}

	resp := fiber.Map{
		s.wire.FieldToken:        sess.token,
		s.wire.FieldRefreshToken: sess.refresh,
	}
	if sess.pendingMFA {
		resp[s.wire.FieldProviders] = []string{"totp"}
	}
	s.log.Info("session created", "account", account, "mfa_pending", sess.pendingMFA)
	return c.JSON(resp)
}

func (s *devServer) refreshSession(c fiber.Ctx) error {
	sess := s.bearerSession(c)
	if sess == nil {
		return unauthorized(c)
	}

	var req map[string]string
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case req[s.wire.FieldRefreshToken] != sess.refresh:
		delete(s.sessions, sess.token)
		return unauthorized(c)
	case sess.pendingMFA:
		return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "mfa pending"})
	case time.Now().After(sess.expiresAt.Add(s.grace)):
		delete(s.sessions, sess.token)
		return unauthorized(c)
	}

	next, err := s.mintLocked(sess.account, false)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "token minting failed"})
	}
	delete(s.sessions, sess.token)

	return c.JSON(fiber.Map{
		s.wire.FieldToken:        next.token,
		s.wire.FieldRefreshToken: next.refresh,
	})
}

func (s *devServer) revokeSession(c fiber.Ctx) error {
	sess := s.bearerSession(c)
	if sess == nil {
		return unauthorized(c)
	}

	s.mu.Lock()
	delete(s.sessions, sess.token)
	s.mu.Unlock()

	s.log.Info("session revoked", "account", sess.account)
	return c.JSON(fiber.Map{})
}

func (s *devServer) confirmMFA(c fiber.Ctx) error {
	var req map[string]string
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	account := req[s.wire.FieldAccountID]
	provider := req[s.wire.FieldProvider]
	code := req[s.wire.FieldCode]

	if provider != "totp" {
		return badRequest(c, "unsupported provider")
	}

	s.mu.Lock()
	acct, known := s.accounts[account]
	s.mu.Unlock()
	if !known || acct.totpSecret == "" {
		return unauthorized(c)
	}
	if !totp.Validate(code, acct.totpSecret) {
		return unauthorized(c)
	}

	s.mu.Lock()
	for _, sess := range s.sessions {
		if sess.account == account {
			sess.pendingMFA = false
		}
	}
	s.mu.Unlock()

	s.log.Info("mfa confirmed", "account", account)
	return c.JSON(fiber.Map{})
}

func (s *devServer) mintSession(account string, pendingMFA bool) (*devSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mintLocked(account, pendingMFA)
}

func (s *devServer) mintLocked(account string, pendingMFA bool) (*devSession, error) {
	expiresAt := time.Now().Add(s.ttl)
	token, err := s.mintToken(account, expiresAt)
	if err != nil {
		return nil, err
	}
	refresh, err := crypto.NewID()
	if err != nil {
		return nil, err
	}

	sess := &devSession{
		account:    account,
		token:      token,
		refresh:    refresh,
		expiresAt:  expiresAt,
		pendingMFA: pendingMFA,
	}
	s.sessions[token] = sess
	return sess, nil
}

func (s *devServer) mintToken(account string, expiresAt time.Time) (string, error) {
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"EdDSA","typ":"JWT"}`))

	claims, err := json.Marshal(map[string]any{
		"iss": "latch-dev",
		"sub": account,
		"exp": expiresAt.Unix(),
	})
	if err != nil {
		return "", err
	}

	signing := header + "." + enc.EncodeToString(claims)
	sig := ed25519.Sign(s.signKey, []byte(signing))
	return signing + "." + enc.EncodeToString(sig), nil
}

func (s *devServer) bearerSession(c fiber.Ctx) *devSession {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return nil
	}
	token := strings.TrimPrefix(header, "Bearer ")

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[token]
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}
