package services

import (
	"context"

	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
)

// Signer produces signatures over audited records.
type Signer interface {
	Sign(rec domain.Audited) (domain.Signature, error)
}

// Verifier checks the signature history of a journal.
type Verifier interface {
	VerifyHistory(j domain.Journal) error
}

// JournalReaderSvc defines read operations for journal data
type JournalReaderSvc interface {
	ListJournals(ctx context.Context, user domain.UserID, pageToken string) (repositories.Page[domain.Journal], error)

	// GetJournal returns the named journal or ErrNotFound.
	GetJournal(ctx context.Context, user domain.UserID, name domain.JournalName) (domain.Journal, error)
}

// JournalWriterSvc defines changes to the transactions of a journal.
type JournalWriterSvc interface {
	AddTransaction(ctx context.Context, user domain.UserID, name domain.JournalName, tx domain.Transaction) (domain.Transaction, error)
	UpdateTransaction(ctx context.Context, user domain.UserID, name domain.JournalName, tx domain.Transaction) (domain.Transaction, error)
	RemoveTransaction(ctx context.Context, user domain.UserID, name domain.JournalName, id domain.TransactionID) error

	// Reconcile marks the split as reconciled against an external reference.
	Reconcile(ctx context.Context, user domain.UserID, name domain.JournalName, split domain.SplitID, reference string) (domain.Split, error)
}

// JournalLifecycleSvc closes, versions and signs journals.
type JournalLifecycleSvc interface {
	// Close makes the journal read-only from now on.
	Close(ctx context.Context, user domain.UserID, name domain.JournalName) error

	// NewVersion retires the current signature into the history and returns the new version.
	NewVersion(ctx context.Context, user domain.UserID, name domain.JournalName) (uint32, error)

	Sign(ctx context.Context, user domain.UserID, name domain.JournalName, signer Signer) (domain.Signature, error)
	Verify(ctx context.Context, user domain.UserID, name domain.JournalName, verifier Verifier) error
}

// JournalSvcFacade combines all journal-related service interfaces
// This is a facade for clients that need access to all operations
type JournalSvcFacade interface {
	JournalReaderSvc
	JournalWriterSvc
	JournalLifecycleSvc
}
