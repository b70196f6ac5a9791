package auth

import (
	"crypto/sha256"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/golang-jwt/jwt/v5"
)

// SigningMethodES256K signs JWTs with ECDSA over secp256k1 and SHA-256
// (RFC 8812). Signatures are the 64-byte R || S concatenation.
var SigningMethodES256K = &signingMethodES256K{}

type signingMethodES256K struct{}

func init() {
	jwt.RegisterSigningMethod(SigningMethodES256K.Alg(), func() jwt.SigningMethod {
		return SigningMethodES256K
	})
}

func (m *signingMethodES256K) Alg() string { return "ES256K" }

func (m *signingMethodES256K) Sign(signingString string, key any) ([]byte, error) {
	priv, ok := key.(*secp256k1.PrivateKey)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}
	hash := sha256.Sum256([]byte(signingString))
	sig := ecdsa.Sign(priv, hash[:])

	r, s := sig.R(), sig.S()
	out := make([]byte, 64)
	r.PutBytesUnchecked(out[:32])
	s.PutBytesUnchecked(out[32:])
	return out, nil
}

func (m *signingMethodES256K) Verify(signingString string, sig []byte, key any) error {
	pub, ok := key.(*secp256k1.PublicKey)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	if len(sig) != 64 {
		return errors.New("es256k: invalid signature length")
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow {
		return jwt.ErrSignatureInvalid
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow {
		return jwt.ErrSignatureInvalid
	}
	hash := sha256.Sum256([]byte(signingString))
	if !ecdsa.NewSignature(&r, &s).Verify(hash[:], pub) {
		return jwt.ErrSignatureInvalid
	}
	return nil
}

// deriveSecp256k1Key turns a configured secret into a stable signing key.
func deriveSecp256k1Key(secret string) *secp256k1.PrivateKey {
	seed := sha256.Sum256([]byte("bloglist-es256k:" + secret))
	return secp256k1.PrivKeyFromBytes(seed[:])
}
