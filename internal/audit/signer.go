// Package audit signs and verifies the stable representation of audited records.
//
// A signature is a compact EdDSA JWT whose claims bind the record identity to the BLAKE2b-256
// digest of its stable representation. The digest is kept next to the token so that
// signatures of earlier versions stay verifiable after the record has moved on.
package audit

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidSignature is returned when a signature does not match its record or key.
var ErrInvalidSignature = fmt.Errorf("%w: invalid signature", apperrors.ErrValidation)

const issuer = "sledge"

type signatureClaims struct {
	Record domain.RecordIdentity `json:"rec"`
	Digest string                `json:"dig"`
	jwt.RegisteredClaims
}

// Signer signs records with one Ed25519 key.
type Signer struct {
	identity domain.KeyIdentifier
	key      ed25519.PrivateKey
	now      func() time.Time
}

func NewSigner(identity domain.KeyIdentifier, key ed25519.PrivateKey) *Signer {
	return &Signer{identity: identity, key: key, now: domain.Now}
}

// GenerateSigner creates a signer with a fresh key pair.
func GenerateSigner(identity domain.KeyIdentifier) (*Signer, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating signing key: %w", err)
	}
	return NewSigner(identity, priv), pub, nil
}

// LoadSigner reads a PEM encoded PKCS#8 Ed25519 private key.
func LoadSigner(identity domain.KeyIdentifier, path string) (*Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewIOError("read", path, err)
	}
	key, err := jwt.ParseEdPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing signing key %s: %w", path, err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key %s is not an Ed25519 key", path)
	}
	return NewSigner(identity, priv), nil
}

func (s *Signer) Identity() domain.KeyIdentifier { return s.identity }

func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// WriteKeyPair stores the signing key as PKCS#8 and its public half as PKIX, both PEM encoded,
// as <identity>.key and <identity>.pub in dir. Existing files are never overwritten.
func (s *Signer) WriteKeyPair(dir string) (privPath, pubPath string, err error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(s.key)
	if err != nil {
		return "", "", fmt.Errorf("encoding signing key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(s.PublicKey())
	if err != nil {
		return "", "", fmt.Errorf("encoding public key: %w", err)
	}
	privPath = filepath.Join(dir, string(s.identity)+".key")
	pubPath = filepath.Join(dir, string(s.identity)+".pub")
	if err := writeNew(privPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), 0o600); err != nil {
		return "", "", err
	}
	if err := writeNew(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o644); err != nil {
		return "", "", err
	}
	return privPath, pubPath, nil
}

func writeNew(path string, body []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return apperrors.NewIOError("create", path, err)
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return apperrors.NewIOError("write", path, err)
	}
	return apperrors.NewIOError("close", path, f.Close())
}

// Digest is the BLAKE2b-256 digest of a stable representation.
func Digest(repr []byte) []byte {
	sum := blake2b.Sum256(repr)
	return sum[:]
}

// Sign produces a signature over the current stable representation of rec.
func (s *Signer) Sign(rec domain.Audited) (domain.Signature, error) {
	repr, err := rec.StableRepresentation()
	if err != nil {
		return domain.Signature{}, err
	}
	identity := rec.AuditIdentifier()
	digest := Digest(repr)
	signedOn := s.now()

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, signatureClaims{
		Record: identity,
		Digest: base64.RawURLEncoding.EncodeToString(digest),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  identity.String(),
			IssuedAt: jwt.NewNumericDate(signedOn),
		},
	})
	token.Header["kid"] = string(s.identity)

	signed, err := token.SignedString(s.key)
	if err != nil {
		return domain.Signature{}, fmt.Errorf("signing %s: %w", identity, err)
	}
	return domain.Signature{
		Identity: s.identity,
		SignedOn: signedOn,
		Version:  identity.Version,
		Digest:   digest,
		Binary:   []byte(signed),
	}, nil
}

// KeyRing holds the public keys signatures are verified against.
type KeyRing map[domain.KeyIdentifier]ed25519.PublicKey

// LoadPublicKey adds the PEM encoded Ed25519 public key at path under identity.
func (k KeyRing) LoadPublicKey(identity domain.KeyIdentifier, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return apperrors.NewIOError("read", path, err)
	}
	key, err := jwt.ParseEdPublicKeyFromPEM(raw)
	if err != nil {
		return fmt.Errorf("parsing public key %s: %w", path, err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("public key %s is not an Ed25519 key", path)
	}
	k[identity] = pub
	return nil
}

// VerifySignature checks that sig is a valid token by a known key for the record version it
// claims. It does not look at the record content; see Verify.
func (k KeyRing) VerifySignature(sig domain.Signature, record domain.RecordIdentity) error {
	pub, ok := k[sig.Identity]
	if !ok {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidSignature, sig.Identity)
	}

	claims := &signatureClaims{}
	_, err := jwt.ParseWithClaims(string(sig.Binary), claims, func(t *jwt.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != string(sig.Identity) {
			return nil, fmt.Errorf("token key %q does not match %q", kid, sig.Identity)
		}
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	digest, err := base64.RawURLEncoding.DecodeString(claims.Digest)
	switch {
	case err != nil:
		return fmt.Errorf("%w: malformed digest claim", ErrInvalidSignature)
	case claims.Record != record:
		return fmt.Errorf("%w: signed %s, expected %s", ErrInvalidSignature, claims.Record, record)
	case claims.Record.Version != sig.Version:
		return fmt.Errorf("%w: token is for version %d, signature says %d", ErrInvalidSignature, claims.Record.Version, sig.Version)
	case !bytes.Equal(digest, sig.Digest):
		return fmt.Errorf("%w: digest does not match token", ErrInvalidSignature)
	}
	return nil
}

// Verify checks the current signature of rec against its stable representation.
func (k KeyRing) Verify(rec domain.Signed) error {
	sig := rec.Signature()
	if sig == nil {
		return fmt.Errorf("%w: %s is not signed", ErrInvalidSignature, rec.AuditIdentifier())
	}
	if err := k.VerifySignature(*sig, rec.AuditIdentifier()); err != nil {
		return err
	}
	repr, err := rec.StableRepresentation()
	if err != nil {
		return err
	}
	if !bytes.Equal(Digest(repr), sig.Digest) {
		return fmt.Errorf("%w: %s changed after signing", ErrInvalidSignature, rec.AuditIdentifier())
	}
	return nil
}

// VerifyHistory checks every prior signature of j and, when j is signed, the current one.
func (k KeyRing) VerifyHistory(j domain.Journal) error {
	var errs []error
	for _, sig := range j.PriorSignatures {
		record := domain.RecordIdentity{Kind: j.AuditIdentifier().Kind, Version: sig.Version, Identifier: j.Name.String()}
		if err := k.VerifySignature(sig, record); err != nil {
			errs = append(errs, fmt.Errorf("version %d: %w", sig.Version, err))
		}
	}
	if j.IsSigned() {
		if err := k.Verify(j); err != nil {
			errs = append(errs, fmt.Errorf("version %d: %w", j.Version, err))
		}
	}
	return errors.Join(errs...)
}
