package domain

import (
	"bytes"
	"fmt"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/google/uuid"
)

// JournalName identifies a journal.
type JournalName string

func NewJournalName() JournalName    { return JournalName(uuid.NewString()) }
func (n JournalName) String() string { return string(n) }
func (n JournalName) IsZero() bool   { return n == "" }

const journalRecordKind = "journal"

// Journal is an ordered, versioned list of transactions in one reporting currency.
type Journal struct {
	Name             JournalName   `json:"name"`
	CreatedAt        time.Time     `json:"createdAt"`
	ReadOnlyAfter    *Duration     `json:"readOnlyAfter,omitempty"`
	Transactions     []Transaction `json:"transactions"`
	Currency         CommodityID   `json:"currency"`
	Version          uint32        `json:"version"`
	CurrentSignature *Signature    `json:"signature,omitempty"`
	PriorSignatures  []Signature   `json:"priorSignatures,omitempty"`
}

// NewJournal builds an empty, unsigned journal at version 1.
func NewJournal(name JournalName, currency CommodityID) Journal {
	return Journal{
		Name:         name,
		CreatedAt:    Now(),
		Transactions: []Transaction{},
		Currency:     currency,
		Version:      1,
	}
}

func (j Journal) Identifier() JournalName { return j.Name }
func (j Journal) Label() string           { return j.Name.String() }
func (j Journal) Created() time.Time      { return j.CreatedAt }

func (j Journal) WithIdentifier(name JournalName) Journal {
	j.Name = name
	return j
}

// IsReadOnly reports whether the read-only period has started at now.
func (j Journal) IsReadOnly(now time.Time) bool {
	if j.ReadOnlyAfter == nil {
		return false
	}
	return !now.Before(j.CreatedAt.Add(j.ReadOnlyAfter.Std()))
}

func (j Journal) IsSigned() bool        { return j.CurrentSignature != nil }
func (j Journal) Signature() *Signature { return j.CurrentSignature }

func (j Journal) AuditIdentifier() RecordIdentity {
	return RecordIdentity{Kind: journalRecordKind, Version: j.Version, Identifier: j.Name.String()}
}

// StableRepresentation is the canonical JSON of the journal without its current signature.
func (j Journal) StableRepresentation() ([]byte, error) {
	j.CurrentSignature = nil
	return CanonicalJSON(j)
}

// AttachSignature records sig as the signature of the current version.
func (j *Journal) AttachSignature(sig Signature) error {
	if j.CurrentSignature != nil {
		return fmt.Errorf("journal %s version %d: %w", j.Name, j.Version, ErrAlreadySigned)
	}
	if sig.Version != j.Version {
		return fmt.Errorf("%w: signature is for version %d, journal is at %d", apperrors.ErrValidation, sig.Version, j.Version)
	}
	j.CurrentSignature = &sig
	return nil
}

// NewVersion moves any current signature into the history and bumps the version.
func (j *Journal) NewVersion() {
	if j.CurrentSignature != nil {
		j.PriorSignatures = append(j.PriorSignatures, *j.CurrentSignature)
		j.CurrentSignature = nil
	}
	j.Version++
}

func (j Journal) Transaction(id TransactionID) (Transaction, bool) {
	for _, tx := range j.Transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return Transaction{}, false
}

func (j Journal) checkMutable(now time.Time) error {
	if j.IsSigned() {
		return fmt.Errorf("journal %s version %d: %w", j.Name, j.Version, ErrAlreadySigned)
	}
	if j.IsReadOnly(now) {
		return fmt.Errorf("%w: journal %s is read-only", apperrors.ErrImmutable, j.Name)
	}
	return nil
}

// AddTransaction appends a validated transaction.
func (j *Journal) AddTransaction(tx Transaction, now time.Time) error {
	if err := j.checkMutable(now); err != nil {
		return err
	}
	if _, exists := j.Transaction(tx.ID); exists {
		return fmt.Errorf("%w: transaction %s", apperrors.ErrDuplicate, tx.ID)
	}
	if err := tx.Validate(j.Currency); err != nil {
		return err
	}
	j.Transactions = append(j.Transactions, tx)
	return nil
}

// ReplaceTransaction swaps in a new version of a transaction whose splits are all unreconciled.
func (j *Journal) ReplaceTransaction(tx Transaction, now time.Time) error {
	if err := j.checkMutable(now); err != nil {
		return err
	}
	for i, cur := range j.Transactions {
		if cur.ID != tx.ID {
			continue
		}
		if cur.HasReconciled() {
			return fmt.Errorf("%w: transaction %s has reconciled splits", apperrors.ErrImmutable, tx.ID)
		}
		if err := tx.Validate(j.Currency); err != nil {
			return err
		}
		j.Transactions[i] = tx
		return nil
	}
	return fmt.Errorf("%w: transaction %s", apperrors.ErrNotFound, tx.ID)
}

// RemoveTransaction deletes a transaction whose splits are all unreconciled.
func (j *Journal) RemoveTransaction(id TransactionID, now time.Time) error {
	if err := j.checkMutable(now); err != nil {
		return err
	}
	for i, cur := range j.Transactions {
		if cur.ID != id {
			continue
		}
		if cur.HasReconciled() {
			return fmt.Errorf("%w: transaction %s has reconciled splits", apperrors.ErrImmutable, id)
		}
		j.Transactions = append(j.Transactions[:i:i], j.Transactions[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: transaction %s", apperrors.ErrNotFound, id)
}

// Reconcile marks one split as reconciled.
func (j *Journal) Reconcile(txID TransactionID, splitID SplitID, reference string, now time.Time) error {
	if j.IsSigned() {
		return fmt.Errorf("journal %s version %d: %w", j.Name, j.Version, ErrAlreadySigned)
	}
	for i := range j.Transactions {
		if j.Transactions[i].ID != txID {
			continue
		}
		for k := range j.Transactions[i].Splits {
			if j.Transactions[i].Splits[k].ID == splitID {
				return j.Transactions[i].Splits[k].Reconcile(reference, now)
			}
		}
		return fmt.Errorf("%w: split %s in transaction %s", apperrors.ErrNotFound, splitID, txID)
	}
	return fmt.Errorf("%w: transaction %s", apperrors.ErrNotFound, txID)
}

// Close makes the journal read-only from now on.
func (j *Journal) Close(now time.Time) error {
	if err := j.checkMutable(now); err != nil {
		return err
	}
	d := Duration(now.Sub(j.CreatedAt))
	if d < 0 {
		d = 0
	}
	j.ReadOnlyAfter = &d
	return nil
}

// Validate checks the currency, every transaction and the signature history.
func (j Journal) Validate() error {
	if j.Name.IsZero() {
		return fmt.Errorf("%w: journal has no name", apperrors.ErrValidation)
	}
	if !j.Currency.IsCurrency() {
		return fmt.Errorf("%w: journal currency %q is not a currency", apperrors.ErrValidation, j.Currency)
	}
	if err := j.Currency.Validate(); err != nil {
		return err
	}
	if j.Version == 0 {
		return fmt.Errorf("%w: journal %s has version 0", apperrors.ErrValidation, j.Name)
	}
	if j.ReadOnlyAfter != nil && *j.ReadOnlyAfter < 0 {
		return fmt.Errorf("%w: negative read-only period", apperrors.ErrValidation)
	}

	seen := make(map[TransactionID]struct{}, len(j.Transactions))
	for _, tx := range j.Transactions {
		if _, dup := seen[tx.ID]; dup {
			return fmt.Errorf("%w: duplicate transaction %s in journal %s", apperrors.ErrValidation, tx.ID, j.Name)
		}
		seen[tx.ID] = struct{}{}
		if err := tx.Validate(j.Currency); err != nil {
			return fmt.Errorf("journal %s: %w", j.Name, err)
		}
	}

	var last uint32
	for _, sig := range j.PriorSignatures {
		if sig.Version <= last || sig.Version >= j.Version {
			return fmt.Errorf("%w: signature history out of order at version %d", apperrors.ErrValidation, sig.Version)
		}
		last = sig.Version
	}
	if j.CurrentSignature != nil && j.CurrentSignature.Version != j.Version {
		return fmt.Errorf("%w: signature is for version %d, journal is at %d", apperrors.ErrValidation, j.CurrentSignature.Version, j.Version)
	}
	return nil
}

// CheckReplace validates that j may replace prev at now.
func (j Journal) CheckReplace(prev Journal, now time.Time) error {
	if !j.CreatedAt.Equal(prev.CreatedAt) {
		return fmt.Errorf("%w: journal %s creation time", apperrors.ErrImmutable, prev.Name)
	}
	if j.Currency != prev.Currency {
		return fmt.Errorf("%w: journal %s currency", apperrors.ErrImmutable, prev.Name)
	}
	if j.Version < prev.Version {
		return fmt.Errorf("%w: journal %s version %d is older than stored %d", apperrors.ErrImmutable, prev.Name, j.Version, prev.Version)
	}
	if !signaturesHavePrefix(j.PriorSignatures, prev.PriorSignatures) {
		return fmt.Errorf("%w: journal %s signature history was rewritten", apperrors.ErrImmutable, prev.Name)
	}

	if prev.IsSigned() {
		if j.Version == prev.Version {
			same, err := sameRepresentation(j, prev)
			if err != nil {
				return err
			}
			if !same || j.CurrentSignature == nil || !signatureEqual(*j.CurrentSignature, *prev.CurrentSignature) {
				return fmt.Errorf("journal %s version %d: %w", prev.Name, prev.Version, ErrAlreadySigned)
			}
		} else {
			want := append(append([]Signature{}, prev.PriorSignatures...), *prev.CurrentSignature)
			if !signaturesHavePrefix(j.PriorSignatures, want) {
				return fmt.Errorf("%w: journal %s dropped the signature of version %d", apperrors.ErrImmutable, prev.Name, prev.Version)
			}
		}
	}

	if prev.IsReadOnly(now) {
		if !durationPtrEqual(j.ReadOnlyAfter, prev.ReadOnlyAfter) {
			return fmt.Errorf("%w: journal %s read-only period", apperrors.ErrImmutable, prev.Name)
		}
		if !transactionsEqual(j.Transactions, prev.Transactions) {
			return fmt.Errorf("%w: journal %s is read-only", apperrors.ErrImmutable, prev.Name)
		}
	}

	for _, ptx := range prev.Transactions {
		for _, ps := range ptx.Splits {
			if !ps.IsReconciled() {
				continue
			}
			tx, ok := j.Transaction(ptx.ID)
			if !ok {
				return fmt.Errorf("%w: transaction %s has reconciled splits", apperrors.ErrImmutable, ptx.ID)
			}
			s, ok := tx.Split(ps.ID)
			if !ok || !splitEqual(s, ps) {
				return fmt.Errorf("%w: split %s is reconciled", apperrors.ErrImmutable, ps.ID)
			}
		}
	}
	return nil
}

// CheckDelete refuses removal of journals with reconciled splits, signatures or a started
// read-only period.
func (j Journal) CheckDelete(now time.Time) error {
	if j.IsSigned() || len(j.PriorSignatures) > 0 {
		return fmt.Errorf("%w: journal %s is signed", apperrors.ErrImmutable, j.Name)
	}
	for _, tx := range j.Transactions {
		if tx.HasReconciled() {
			return fmt.Errorf("%w: journal %s has reconciled splits", apperrors.ErrImmutable, j.Name)
		}
	}
	if j.IsReadOnly(now) && len(j.Transactions) > 0 {
		return fmt.Errorf("%w: journal %s is read-only", apperrors.ErrImmutable, j.Name)
	}
	return nil
}

func sameRepresentation(a, b Journal) (bool, error) {
	ra, err := a.StableRepresentation()
	if err != nil {
		return false, err
	}
	rb, err := b.StableRepresentation()
	if err != nil {
		return false, err
	}
	return bytes.Equal(ra, rb), nil
}

func signatureEqual(a, b Signature) bool {
	return a.Identity == b.Identity &&
		a.Version == b.Version &&
		a.SignedOn.Equal(b.SignedOn) &&
		bytes.Equal(a.Digest, b.Digest) &&
		bytes.Equal(a.Binary, b.Binary)
}

func signaturesHavePrefix(sigs, prefix []Signature) bool {
	if len(sigs) < len(prefix) {
		return false
	}
	for i := range prefix {
		if !signatureEqual(sigs[i], prefix[i]) {
			return false
		}
	}
	return true
}

func durationPtrEqual(a, b *Duration) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func transactionsEqual(a, b []Transaction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !transactionEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func transactionEqual(a, b Transaction) bool {
	if a.ID != b.ID || a.Name != b.Name || !a.Timestamp.Equal(b.Timestamp) || len(a.Splits) != len(b.Splits) {
		return false
	}
	if (a.Commodity == nil) != (b.Commodity == nil) || (a.Commodity != nil && *a.Commodity != *b.Commodity) {
		return false
	}
	for i := range a.Splits {
		if !splitEqual(a.Splits[i], b.Splits[i]) {
			return false
		}
	}
	return true
}

func splitEqual(a, b Split) bool {
	if a.ID != b.ID || a.Transaction != b.Transaction || a.Account != b.Account || a.Description != b.Description {
		return false
	}
	if !a.Quantity.Equal(b.Quantity) {
		return false
	}
	if (a.ExchangedFrom == nil) != (b.ExchangedFrom == nil) {
		return false
	}
	if a.ExchangedFrom != nil {
		ea, eb := a.ExchangedFrom, b.ExchangedFrom
		if !ea.Source.Equal(eb.Source) || ea.Rate.From != eb.Rate.From || ea.Rate.To != eb.Rate.To || !ea.Rate.Value.Equal(eb.Rate.Value) {
			return false
		}
	}
	if (a.Reconciled == nil) != (b.Reconciled == nil) {
		return false
	}
	if a.Reconciled != nil {
		ra, rb := a.Reconciled, b.Reconciled
		if ra.SplitID != rb.SplitID || ra.Reference != rb.Reference || !ra.ReconciledAt.Equal(rb.ReconciledAt) {
			return false
		}
	}
	return true
}
