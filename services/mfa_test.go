package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mvercan/latch/core"
)

func TestRemoteVerifier_Verify(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*fakeAuthServer)
		wantErr error
	}{
		{
			name:  "accepted",
			setup: func(*fakeAuthServer) {},
		},
		{
			name:    "rejected code",
			setup:   func(f *fakeAuthServer) { f.mfaStatus = http.StatusUnauthorized },
			wantErr: core.ErrInvalidCredentials,
		},
		{
			name:    "server error",
			setup:   func(f *fakeAuthServer) { f.mfaStatus = http.StatusInternalServerError },
			wantErr: core.ErrServerRejected,
		},
		{
			name:    "network down",
			setup:   func(f *fakeAuthServer) { f.netErr = errors.New("unreachable") },
			wantErr: core.ErrNetworkUnavailable,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := newFakeAuthServer()
			test.setup(server)

			verifier := NewRemoteVerifier(server, core.DefaultWireConfig())
			err := verifier.Verify(context.Background(), testAccount(t), "totp", "123456")
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Verify() error = %v, want %v", err, test.wantErr)
			}
			if got := server.count(core.DefaultWireConfig().MFAPath); got != 1 {
				t.Errorf("mfa calls = %d, want 1", got)
			}
		})
	}
}
