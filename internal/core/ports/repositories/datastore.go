package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
)

// LedgerStore persists ledgers keyed by their kind.
type LedgerStore = EntityStore[domain.LedgerKind, domain.Ledger]

// JournalStore persists journals keyed by their name.
type JournalStore = EntityStore[domain.JournalName, domain.Journal]

// DataStore is a connected backend. Implementations are safe for concurrent use.
type DataStore interface {
	// Scheme is the connection URI scheme the backend serves.
	Scheme() string

	// Address is the connection address with credentials removed.
	Address() string

	Ledgers() LedgerStore
	Journals() JournalStore

	Settings() domain.Settings
	Permissions() domain.Permissions

	// Disconnect drains in-flight operations and releases resources. A second call is a no-op.
	Disconnect(ctx context.Context) error
}

// CreateDatastoreContents is the initial content materialized by a new store.
type CreateDatastoreContents struct {
	DefaultCommodity domain.CommodityID
	Ledgers          []domain.Ledger
	Journals         []domain.Journal
	Users            map[domain.UserID][]domain.RoleID
}

// NewContents returns empty contents in the given currency.
func NewContents(currency domain.CommodityID) CreateDatastoreContents {
	return CreateDatastoreContents{DefaultCommodity: currency}
}

// Settings derives the settings document for a store created with c.
func (c CreateDatastoreContents) Settings() domain.Settings {
	s := domain.DefaultSettings()
	if !c.DefaultCommodity.IsZero() {
		s.DefaultCommodity = c.DefaultCommodity
	}
	return s
}

// Permissions derives the permissions document for a store created with c.
func (c CreateDatastoreContents) Permissions() domain.Permissions {
	p := domain.DefaultPermissions()
	for user, roles := range c.Users {
		for _, role := range roles {
			p.Grant(user, role)
		}
	}
	return p
}

// Validate checks every ledger and journal and that identifiers are unique.
func (c CreateDatastoreContents) Validate() error {
	ledgers := map[domain.LedgerKind]bool{}
	for _, l := range c.Ledgers {
		if err := l.Validate(); err != nil {
			return err
		}
		if ledgers[l.Kind] {
			return duplicate("ledger", l.Kind.String())
		}
		ledgers[l.Kind] = true
	}
	journals := map[domain.JournalName]bool{}
	for _, j := range c.Journals {
		if err := j.Validate(); err != nil {
			return err
		}
		if journals[j.Name] {
			return duplicate("journal", j.Name.String())
		}
		journals[j.Name] = true
	}
	return nil
}

func (c CreateDatastoreContents) currency() domain.CommodityID {
	if c.DefaultCommodity.IsZero() {
		return domain.MustCurrency("USD")
	}
	return c.DefaultCommodity
}

func (c CreateDatastoreContents) hasLedger(kind domain.LedgerKind) bool {
	for _, l := range c.Ledgers {
		if l.Kind == kind {
			return true
		}
	}
	return false
}

func (c CreateDatastoreContents) withLedger(kind domain.LedgerKind, description string, accounts []accountTemplate) CreateDatastoreContents {
	if c.hasLedger(kind) {
		return c
	}
	l := domain.NewLedger(kind, c.currency(), description)
	l.Book = buildBook(c.currency(), accounts)
	c.Ledgers = append(append([]domain.Ledger{}, c.Ledgers...), l)
	return c
}

func (c CreateDatastoreContents) withJournal(name domain.JournalName) CreateDatastoreContents {
	for _, j := range c.Journals {
		if j.Name == name {
			return c
		}
	}
	c.Journals = append(append([]domain.Journal{}, c.Journals...), domain.NewJournal(name, c.currency()))
	return c
}

// Personal adds a single general ledger with a household chart of accounts.
func (c CreateDatastoreContents) Personal() CreateDatastoreContents {
	return c.withLedger(domain.GeneralLedger(), "Personal accounts", personalChart)
}

// WithGeneralLedger adds a general ledger with a business chart of accounts.
func (c CreateDatastoreContents) WithGeneralLedger() CreateDatastoreContents {
	return c.withLedger(domain.GeneralLedger(), "General ledger", generalChart)
}

// WithSalesLedger adds a sales ledger tracking receivables and revenue.
func (c CreateDatastoreContents) WithSalesLedger() CreateDatastoreContents {
	return c.withLedger(domain.SalesLedger(), "Sales ledger", salesChart)
}

// WithPurchaseLedger adds a purchase ledger tracking payables and costs.
func (c CreateDatastoreContents) WithPurchaseLedger() CreateDatastoreContents {
	return c.withLedger(domain.PurchaseLedger(), "Purchase ledger", purchaseChart)
}

// WithCombinedJournal adds one journal named "combined" shared by all ledgers.
func (c CreateDatastoreContents) WithCombinedJournal() CreateDatastoreContents {
	return c.withJournal("combined")
}

// WithJournalPerLedger adds one journal per ledger, named after the ledger kind.
func (c CreateDatastoreContents) WithJournalPerLedger() CreateDatastoreContents {
	for _, l := range c.Ledgers {
		c = c.withJournal(domain.JournalName(l.Kind.String()))
	}
	return c
}

// WithDailyJournals adds a journal per day, named YYYY-MM-DD, each read-only 24 hours after
// creation.
func (c CreateDatastoreContents) WithDailyJournals(from time.Time, days int) CreateDatastoreContents {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	period := domain.Duration(24 * time.Hour)
	for i := 0; i < days; i++ {
		name := domain.JournalName(day.AddDate(0, 0, i).Format(time.DateOnly))
		before := len(c.Journals)
		c = c.withJournal(name)
		if len(c.Journals) > before {
			j := &c.Journals[len(c.Journals)-1]
			j.CreatedAt = day.AddDate(0, 0, i)
			j.ReadOnlyAfter = &period
		}
	}
	return c
}

type accountTemplate struct {
	key         string
	parent      string
	kind        domain.AccountKind
	description string
	recording   bool
}

var personalChart = []accountTemplate{
	{key: "assets", kind: domain.Asset, description: "Assets"},
	{key: "checking", parent: "assets", kind: domain.Bank, description: "Checking", recording: true},
	{key: "savings", parent: "assets", kind: domain.Bank, description: "Savings", recording: true},
	{key: "cash", parent: "assets", kind: domain.Asset, description: "Cash", recording: true},
	{key: "liabilities", kind: domain.Liability, description: "Liabilities"},
	{key: "card", parent: "liabilities", kind: domain.Credit, description: "Credit card", recording: true},
	{key: "equity", kind: domain.Equity, description: "Opening balances", recording: true},
	{key: "income", kind: domain.Income, description: "Income"},
	{key: "salary", parent: "income", kind: domain.Income, description: "Salary", recording: true},
	{key: "interest", parent: "income", kind: domain.Income, description: "Interest", recording: true},
	{key: "expenses", kind: domain.Expense, description: "Expenses"},
	{key: "housing", parent: "expenses", kind: domain.Expense, description: "Housing", recording: true},
	{key: "groceries", parent: "expenses", kind: domain.Expense, description: "Groceries", recording: true},
	{key: "utilities", parent: "expenses", kind: domain.Expense, description: "Utilities", recording: true},
	{key: "tax", parent: "expenses", kind: domain.Expense, description: "Tax", recording: true},
}

var generalChart = []accountTemplate{
	{key: "assets", kind: domain.Asset, description: "Assets"},
	{key: "bank", parent: "assets", kind: domain.Bank, description: "Operating account", recording: true},
	{key: "receivable", parent: "assets", kind: domain.AccountsReceivable, description: "Accounts receivable", recording: true},
	{key: "equipment", parent: "assets", kind: domain.Asset, description: "Equipment", recording: true},
	{key: "liabilities", kind: domain.Liability, description: "Liabilities"},
	{key: "payable", parent: "liabilities", kind: domain.AccountsPayable, description: "Accounts payable", recording: true},
	{key: "equity", kind: domain.Equity, description: "Owner's equity", recording: true},
	{key: "revenue", kind: domain.Income, description: "Revenue", recording: true},
	{key: "expenses", kind: domain.Expense, description: "Operating expenses", recording: true},
}

var salesChart = []accountTemplate{
	{key: "receivable", kind: domain.AccountsReceivable, description: "Customer receivables", recording: true},
	{key: "sales", kind: domain.Income, description: "Sales revenue", recording: true},
	{key: "returns", kind: domain.Income, description: "Sales returns", recording: true},
}

var purchaseChart = []accountTemplate{
	{key: "payable", kind: domain.AccountsPayable, description: "Supplier payables", recording: true},
	{key: "purchases", kind: domain.Expense, description: "Purchases", recording: true},
	{key: "returns", kind: domain.Expense, description: "Purchase returns", recording: true},
}

func buildBook(currency domain.CommodityID, chart []accountTemplate) []domain.Account {
	ids := make(map[string]domain.AccountID, len(chart))
	book := make([]domain.Account, 0, len(chart))
	for _, t := range chart {
		a := domain.NewAccount(t.kind, currency, t.description)
		a.IsRecording = t.recording
		if t.parent != "" {
			a = a.WithParent(ids[t.parent])
		}
		ids[t.key] = a.ID
		book = append(book, a)
	}
	return book
}

// EntityCount is the number of entities the contents will materialize.
func (c CreateDatastoreContents) EntityCount() int {
	return len(c.Ledgers) + len(c.Journals)
}

func duplicate(kind, id string) error {
	return fmt.Errorf("%w: %s %s appears twice in the initial contents", apperrors.ErrDuplicate, kind, id)
}
