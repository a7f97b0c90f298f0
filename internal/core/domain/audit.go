package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
)

// RecordIdentity names one version of one audited record.
type RecordIdentity struct {
	Kind       string `json:"kind"`
	Version    uint32 `json:"version"`
	Identifier string `json:"identifier"`
}

func (r RecordIdentity) String() string {
	return fmt.Sprintf("%s/%s@%d", r.Kind, r.Identifier, r.Version)
}

// AuditRecord captures who changed a record and what it looked like afterwards.
type AuditRecord struct {
	Identity             RecordIdentity `json:"identity"`
	Modified             time.Time      `json:"modified"`
	ModifiedBy           UserID         `json:"modifiedBy"`
	StableRepresentation []byte         `json:"stableRepresentation"`
}

// Audited is implemented by records with a reproducible canonical form.
type Audited interface {
	AuditIdentifier() RecordIdentity
	StableRepresentation() ([]byte, error)
}

// NewAuditRecord snapshots rec as modified by user at the given time.
func NewAuditRecord(rec Audited, user UserID, at time.Time) (AuditRecord, error) {
	repr, err := rec.StableRepresentation()
	if err != nil {
		return AuditRecord{}, err
	}
	return AuditRecord{
		Identity:             rec.AuditIdentifier(),
		Modified:             at.UTC(),
		ModifiedBy:           user,
		StableRepresentation: repr,
	}, nil
}

// KeyIdentifier names the key a signature was produced with.
type KeyIdentifier string

// Signature is a detached Ed25519 signature over a record's stable representation.
type Signature struct {
	Identity KeyIdentifier `json:"identity"`
	SignedOn time.Time     `json:"signedOn"`
	Version  uint32        `json:"version"`
	Digest   []byte        `json:"digest"`
	Binary   []byte        `json:"binary"`
}

// Signed is implemented by audited records that carry a signature.
type Signed interface {
	Audited
	IsSigned() bool
	Signature() *Signature
}

// ErrAlreadySigned is returned when attaching a signature to an already signed version.
var ErrAlreadySigned = fmt.Errorf("%w: version is already signed", apperrors.ErrImmutable)
