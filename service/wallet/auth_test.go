package wallet

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAdminRequest_RoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	req := AdminRequest{Method: "DELETE", Path: "/api/v1/mcps/abc", Timestamp: 1700000000}
	sig, err := SignAdminRequest(key, req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig, "0x"))
	assert.Len(t, sig, 2+2*crypto.SignatureLength)

	signer, err := RecoverSigner(req.Message(), sig)
	require.NoError(t, err)
	assert.Equal(t, addr, signer)
}

func TestVerifyAdminRequest(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	admin := crypto.PubkeyToAddress(key.PublicKey).Hex()
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	req := AdminRequest{Method: "PATCH", Path: "/api/v1/mcps/abc/status", Body: []byte(`{"status":"approved"}`), Timestamp: now.Unix()}
	good, err := SignAdminRequest(key, req)
	require.NoError(t, err)
	forged, err := SignAdminRequest(other, req)
	require.NoError(t, err)

	tampered := req
	tampered.Body = []byte(`{"status":"rejected"}`)

	tests := []struct {
		name    string
		req     AdminRequest
		address string
		sig     string
		admin   string
		now     time.Time
		wantErr error
	}{
		{"valid", req, admin, good, admin, now, nil},
		{"lowercase claimed address", req, strings.ToLower(admin), good, admin, now, nil},
		{"within skew", req, admin, good, admin, now.Add(MaxSignatureSkew), nil},
		{"not the admin", req, crypto.PubkeyToAddress(other.PublicKey).Hex(), forged, admin, now, ErrNotAdmin},
		{"no admin configured", req, admin, good, "", now, ErrNotAdmin},
		{"missing signature", req, admin, "", admin, now, ErrInvalidSignature},
		{"malformed signature", req, admin, "0x1234", admin, now, ErrInvalidSignature},
		{"not hex", req, admin, "signature", admin, now, ErrInvalidSignature},
		{"other signer", req, admin, forged, admin, now, ErrInvalidSignature},
		{"tampered body", tampered, admin, good, admin, now, ErrInvalidSignature},
		{"expired", req, admin, good, admin, now.Add(MaxSignatureSkew + time.Second), ErrInvalidSignature},
		{"from the future", req, admin, good, admin, now.Add(-MaxSignatureSkew - time.Second), ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyAdminRequest(tt.req, tt.address, tt.sig, tt.admin, tt.now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
