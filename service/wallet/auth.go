package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Headers carrying a signed admin request.
const (
	AddressHeader   = "X-Wallet-Address"
	SignatureHeader = "X-Wallet-Signature"
	TimestampHeader = "X-Wallet-Timestamp"
)

// MaxSignatureSkew bounds how far a request timestamp may be from the
// verifier's clock.
const MaxSignatureSkew = 5 * time.Minute

var (
	// ErrNotAdmin is returned when the claimed address is not the admin.
	ErrNotAdmin = errors.New("admin wallet required")
	// ErrInvalidSignature is returned when a request signature does not
	// verify against the admin address.
	ErrInvalidSignature = errors.New("invalid wallet signature")
)

// AdminRequest is the part of an HTTP request an admin signs.
type AdminRequest struct {
	Method    string
	Path      string
	Body      []byte
	Timestamp int64 // unix seconds
}

// Message is the text signed with personal_sign. The body is included as
// its keccak256 hash.
func (r AdminRequest) Message() string {
	return fmt.Sprintf("MCP Hub admin request\nmethod: %s\npath: %s\nbody: %s\ntimestamp: %d",
		r.Method, r.Path, crypto.Keccak256Hash(r.Body).Hex(), r.Timestamp)
}

// SignAdminRequest signs req the way a wallet's personal_sign would and
// returns the 0x-prefixed 65 byte signature.
func SignAdminRequest(key *ecdsa.PrivateKey, req AdminRequest) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(req.Message())), key)
	if err != nil {
		return "", fmt.Errorf("signing admin request: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// RecoverSigner returns the address that produced a personal_sign signature
// over msg. Both 0/1 and 27/28 recovery ids are accepted.
func RecoverSigner(msg string, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(msg)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyAdminRequest checks that address is the admin and that signature
// is the admin's signature over req, made within MaxSignatureSkew of now.
func VerifyAdminRequest(req AdminRequest, address, signature, admin string, now time.Time) error {
	if !IsAdminAddress(address, admin) {
		return ErrNotAdmin
	}
	if signature == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	skew := now.Sub(time.Unix(req.Timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxSignatureSkew {
		return fmt.Errorf("%w: timestamp outside the %s window", ErrInvalidSignature, MaxSignatureSkew)
	}

	signer, err := RecoverSigner(req.Message(), signature)
	if err != nil {
		return err
	}
	if !IsAdminAddress(signer.Hex(), admin) {
		return fmt.Errorf("%w: signed by %s", ErrInvalidSignature, signer.Hex())
	}
	return nil
}
