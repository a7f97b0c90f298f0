package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
	"github.com/SscSPs/sledge/internal/dto"
	"github.com/SscSPs/sledge/internal/handlers"
	"github.com/SscSPs/sledge/internal/platform/config"
	"github.com/SscSPs/sledge/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const (
	testSecret = "test-secret-key-that-is-long-enough"
	testIssuer = "sledge-test"
	alice      = domain.UserID("alice")
	combined   = domain.JournalName("combined")
)

var usd = domain.MustCurrency("USD")

type HandlerTestSuite struct {
	suite.Suite
	router   *gin.Engine
	ledgers  *MockLedgerService
	journals *MockJournalService
	exchange *MockExchangeService
	token    string
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (suite *HandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.ledgers = new(MockLedgerService)
	suite.journals = new(MockJournalService)
	suite.exchange = new(MockExchangeService)

	suite.router = gin.New()
	cfg := &config.ServerConfig{RateLimit: "1000-M", JWTSecret: testSecret, JWTIssuer: testIssuer}
	services := &portssvc.ServiceContainer{Ledger: suite.ledgers, Journal: suite.journals, Exchange: suite.exchange}
	suite.Require().NoError(handlers.RegisterRoutes(suite.router, cfg, services))

	token, err := utils.GenerateJWT(string(alice), testSecret, time.Hour, testIssuer)
	suite.Require().NoError(err)
	suite.token = token
}

func (suite *HandlerTestSuite) TearDownTest() {
	suite.ledgers.AssertExpectations(suite.T())
	suite.journals.AssertExpectations(suite.T())
	suite.exchange.AssertExpectations(suite.T())
}

func (suite *HandlerTestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if suite.token != "" {
		req.Header.Set("Authorization", "Bearer "+suite.token)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func decode[T any](suite *HandlerTestSuite, w *httptest.ResponseRecorder) T {
	var v T
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func sampleLedger() (domain.Ledger, domain.Account) {
	l := domain.NewLedger(domain.GeneralLedger(), usd, "General ledger")
	bank := domain.NewAccount(domain.Bank, usd, "Operating account")
	l.Book = append(l.Book, bank)
	return l, bank
}

func (suite *HandlerTestSuite) TestHealth() {
	suite.token = ""
	w := suite.do(http.MethodGet, "/health", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("OK", w.Body.String())
}

func (suite *HandlerTestSuite) TestAuthentication() {
	tests := []struct {
		name  string
		token func() string
	}{
		{name: "no token", token: func() string { return "" }},
		{name: "wrong secret", token: func() string {
			tok, _ := utils.GenerateJWT(string(alice), "another-secret-that-is-long-enough", time.Hour, testIssuer)
			return tok
		}},
		{name: "wrong issuer", token: func() string {
			tok, _ := utils.GenerateJWT(string(alice), testSecret, time.Hour, "someone-else")
			return tok
		}},
		{name: "expired", token: func() string {
			tok, _ := utils.GenerateJWT(string(alice), testSecret, -time.Minute, testIssuer)
			return tok
		}},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.token = tt.token()
			w := suite.do(http.MethodGet, "/api/v1/ledgers", nil)
			suite.Equal(http.StatusUnauthorized, w.Code)
		})
	}
}

func (suite *HandlerTestSuite) TestListLedgers() {
	l, _ := sampleLedger()
	suite.ledgers.On("ListLedgers", mock.Anything, alice, "").
		Return(repositories.Page[domain.Ledger]{Items: []domain.Ledger{l}, NextToken: "next"}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/ledgers", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	res := decode[dto.ListLedgersResponse](suite, w)
	suite.Require().Len(res.Ledgers, 1)
	suite.Equal("general", res.Ledgers[0].Kind)
	suite.Len(res.Ledgers[0].Accounts, 1)
	suite.Equal("next", res.NextPageToken)

	suite.ledgers.On("ListLedgers", mock.Anything, alice, "next").
		Return(repositories.Page[domain.Ledger]{NextToken: "next"}, nil).Once()
	w = suite.do(http.MethodGet, "/api/v1/ledgers?pageToken=next", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Empty(decode[dto.ListLedgersResponse](suite, w).NextPageToken, "exhausted listing")
}

func (suite *HandlerTestSuite) TestGetLedger() {
	l, _ := sampleLedger()
	suite.ledgers.On("GetLedger", mock.Anything, alice, domain.GeneralLedger()).Return(l, nil).Once()
	suite.ledgers.On("GetLedger", mock.Anything, alice, domain.SalesLedger()).
		Return(domain.Ledger{}, fmt.Errorf("%w: ledger sales", apperrors.ErrNotFound)).Once()

	w := suite.do(http.MethodGet, "/api/v1/ledgers/general", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("General ledger", decode[dto.LedgerResponse](suite, w).Description)

	w = suite.do(http.MethodGet, "/api/v1/ledgers/sales", nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/ledgers/bogus", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestCreateAccount() {
	parent := domain.NewAccountID()
	suite.ledgers.On("AddAccount", mock.Anything, alice, domain.GeneralLedger(), mock.MatchedBy(func(a domain.Account) bool {
		return a.Kind == domain.Bank && a.Commodity == usd && a.IsRecording && a.ParentID != nil && *a.ParentID == parent
	})).Return(func(a domain.Account) domain.Account {
		a.ID = "acc-1"
		return a
	}, nil).Once()

	parentID := parent.String()
	w := suite.do(http.MethodPost, "/api/v1/ledgers/general/accounts", dto.CreateAccountRequest{
		Kind: domain.Bank, Commodity: "USD", Description: "Savings", ParentID: &parentID,
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	res := decode[dto.AccountResponse](suite, w)
	suite.Equal("acc-1", res.ID)
	suite.Equal(parentID, res.ParentID)

	w = suite.do(http.MethodPost, "/api/v1/ledgers/general/accounts", map[string]any{"kind": "NOPE", "commodity": "USD", "description": "x"})
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/ledgers/general/accounts", dto.CreateAccountRequest{Kind: domain.Bank, Commodity: "ZZZ", Description: "x"})
	suite.Equal(http.StatusBadRequest, w.Code, "unknown currency")
}

func (suite *HandlerTestSuite) TestUpdateAccount() {
	l, bank := sampleLedger()
	suite.ledgers.On("GetLedger", mock.Anything, alice, domain.GeneralLedger()).Return(l, nil)
	suite.ledgers.On("UpdateAccount", mock.Anything, alice, domain.GeneralLedger(), mock.MatchedBy(func(a domain.Account) bool {
		return a.ID == bank.ID && a.Description == "Main account"
	})).Return(func(a domain.Account) domain.Account { return a }, nil).Once()

	description := "Main account"
	w := suite.do(http.MethodPatch, "/api/v1/ledgers/general/accounts/"+bank.ID.String(), dto.UpdateAccountRequest{Description: &description})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal("Main account", decode[dto.AccountResponse](suite, w).Description)

	w = suite.do(http.MethodPatch, "/api/v1/ledgers/general/accounts/missing", dto.UpdateAccountRequest{Description: &description})
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do(http.MethodPatch, "/api/v1/ledgers/general/accounts/"+bank.ID.String(), dto.UpdateAccountRequest{})
	suite.Equal(http.StatusBadRequest, w.Code, "nothing to update")
}

func (suite *HandlerTestSuite) TestDeactivateAccount() {
	suite.ledgers.On("DeactivateAccount", mock.Anything, alice, domain.GeneralLedger(), domain.AccountID("a1")).Return(nil).Once()
	suite.ledgers.On("DeactivateAccount", mock.Anything, alice, domain.GeneralLedger(), domain.AccountID("a2")).
		Return(fmt.Errorf("%w: alice may not delete account", apperrors.ErrForbidden)).Once()

	suite.Equal(http.StatusNoContent, suite.do(http.MethodDelete, "/api/v1/ledgers/general/accounts/a1", nil).Code)
	suite.Equal(http.StatusForbidden, suite.do(http.MethodDelete, "/api/v1/ledgers/general/accounts/a2", nil).Code)
}

func (suite *HandlerTestSuite) TestBalance() {
	suite.ledgers.On("Balance", mock.Anything, alice, domain.GeneralLedger(), domain.AccountID("a1")).
		Return(domain.NewQuantity(usd, decimal.RequireFromString("275.5")), nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/ledgers/general/accounts/a1/balance", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	res := decode[dto.BalanceResponse](suite, w)
	suite.Equal("275.50", res.Balance)
	suite.Equal("USD", res.Commodity)
}

func (suite *HandlerTestSuite) TestListAndGetJournal() {
	j := domain.NewJournal(combined, usd)
	j.Transactions = []domain.Transaction{domain.NewTransaction("sale", domain.Now(),
		domain.NewSplit("bank", domain.NewQuantity(usd, decimal.NewFromInt(10))),
		domain.NewSplit("revenue", domain.NewQuantity(usd, decimal.NewFromInt(-10))),
	)}
	suite.journals.On("ListJournals", mock.Anything, alice, "").Return(repositories.Page[domain.Journal]{Items: []domain.Journal{j}}, nil).Once()
	suite.journals.On("GetJournal", mock.Anything, alice, combined).Return(j, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/journals", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	list := decode[dto.ListJournalsResponse](suite, w)
	suite.Require().Len(list.Journals, 1)
	suite.Empty(list.Journals[0].Transactions, "listings omit transactions")

	w = suite.do(http.MethodGet, "/api/v1/journals/combined", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	got := decode[dto.JournalResponse](suite, w)
	suite.Require().Len(got.Transactions, 1)
	suite.Equal("-10.00", got.Transactions[0].Splits[1].Amount)
}

func (suite *HandlerTestSuite) TestAddTransaction() {
	req := dto.TransactionRequest{Name: "sale", Splits: []dto.SplitRequest{
		{AccountID: "bank", Amount: decimal.NewFromInt(100), Commodity: "USD"},
		{AccountID: "revenue", Amount: decimal.NewFromInt(-100), Commodity: "USD"},
	}}
	suite.journals.On("AddTransaction", mock.Anything, alice, combined, mock.MatchedBy(func(tx domain.Transaction) bool {
		return tx.Name == "sale" && len(tx.Splits) == 2 && tx.Splits[0].Account == "bank" && tx.Splits[0].Quantity.Amount.Equal(decimal.NewFromInt(100))
	})).Return(func(tx domain.Transaction) domain.Transaction {
		tx.ID = "tx-1"
		return tx
	}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/journals/combined/transactions", req)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	suite.Equal("tx-1", decode[dto.TransactionResponse](suite, w).ID)

	req.Splits = req.Splits[:1]
	w = suite.do(http.MethodPost, "/api/v1/journals/combined/transactions", req)
	suite.Equal(http.StatusBadRequest, w.Code, "a transaction needs two splits")
}

func (suite *HandlerTestSuite) TestSubCentAmountsAreNotRounded() {
	j := domain.NewJournal(combined, usd)
	j.Transactions = []domain.Transaction{domain.NewTransaction("interest", domain.Now(),
		domain.NewSplit("bank", domain.NewQuantity(usd, decimal.RequireFromString("0.005"))),
		domain.NewSplit("income", domain.NewQuantity(usd, decimal.RequireFromString("-0.005"))),
	)}
	suite.journals.On("GetJournal", mock.Anything, alice, combined).Return(j, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/journals/combined", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	splits := decode[dto.JournalResponse](suite, w).Transactions[0].Splits
	suite.Equal("0.005", splits[0].Amount)
	suite.Equal("-0.005", splits[1].Amount)
}

func (suite *HandlerTestSuite) TestAddForeignTransaction() {
	eur := domain.MustCurrency("EUR")
	req := dto.TransactionRequest{Name: "supplier", Splits: []dto.SplitRequest{
		{AccountID: "expense", Amount: decimal.NewFromInt(100), Commodity: "USD"},
		{AccountID: "eur-bank", Amount: decimal.RequireFromString("-90.49"), Commodity: "EUR", ExchangedFrom: &dto.RatedQuantityRequest{
			Amount: decimal.NewFromInt(-100), Commodity: "USD", Rate: decimal.RequireFromString("0.9049"),
		}},
	}}
	suite.journals.On("AddTransaction", mock.Anything, alice, combined, mock.MatchedBy(func(tx domain.Transaction) bool {
		rq := tx.Splits[1].ExchangedFrom
		return rq != nil && rq.Source.Commodity == usd && rq.Rate.From == usd && rq.Rate.To == eur && rq.Converted().Amount.Equal(tx.Splits[1].Quantity.Amount)
	})).Return(func(tx domain.Transaction) domain.Transaction { return tx }, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/journals/combined/transactions", req)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	res := decode[dto.TransactionResponse](suite, w)
	suite.Require().NotNil(res.Splits[1].ExchangedFrom)
	suite.Equal("-100.00", res.Splits[1].ExchangedFrom.Amount)
	suite.Equal("0.9049", res.Splits[1].ExchangedFrom.Rate)
	suite.Nil(res.Splits[0].ExchangedFrom)

	req.Splits[1].ExchangedFrom.Commodity = "ZZZ"
	w = suite.do(http.MethodPost, "/api/v1/journals/combined/transactions", req)
	suite.Equal(http.StatusBadRequest, w.Code, "unknown exchange commodity")
}

func (suite *HandlerTestSuite) TestTransactionErrors() {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "read only", err: fmt.Errorf("%w: journal is read-only", apperrors.ErrImmutable), want: http.StatusConflict},
		{name: "unbalanced", err: fmt.Errorf("%w: does not balance", apperrors.ErrValidation), want: http.StatusBadRequest},
		{name: "timeout", err: fmt.Errorf("%w: store", apperrors.ErrTimeout), want: http.StatusGatewayTimeout},
		{name: "store failure", err: apperrors.NewIOError("write", "combined", assert.AnError), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.journals.On("UpdateTransaction", mock.Anything, alice, combined, mock.Anything).Return(domain.Transaction{}, tt.err).Once()
			w := suite.do(http.MethodPut, "/api/v1/journals/combined/transactions/tx-1", dto.TransactionRequest{Name: "sale", Splits: []dto.SplitRequest{
				{AccountID: "bank", Amount: decimal.NewFromInt(1), Commodity: "USD"},
				{AccountID: "revenue", Amount: decimal.NewFromInt(-1), Commodity: "USD"},
			}})
			suite.Equal(tt.want, w.Code)
			if tt.want == http.StatusInternalServerError {
				suite.Equal("Failed to update transaction", decode[dto.ErrorResponse](suite, w).Error, "internal details stay hidden")
			}
		})
	}
}

func (suite *HandlerTestSuite) TestRemoveTransaction() {
	suite.journals.On("RemoveTransaction", mock.Anything, alice, combined, domain.TransactionID("tx-1")).Return(nil).Once()
	suite.Equal(http.StatusNoContent, suite.do(http.MethodDelete, "/api/v1/journals/combined/transactions/tx-1", nil).Code)
}

func (suite *HandlerTestSuite) TestReconcile() {
	at := domain.Now()
	suite.journals.On("Reconcile", mock.Anything, alice, combined, domain.SplitID("sp-1"), "STMT-7").
		Return(domain.Split{ID: "sp-1", Account: "bank", Quantity: domain.NewQuantity(usd, decimal.NewFromInt(5)),
			Reconciled: &domain.Reconciled{SplitID: "sp-1", Reference: "STMT-7", ReconciledAt: at}}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/journals/combined/splits/sp-1/reconcile", dto.ReconcileRequest{Reference: "STMT-7"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	res := decode[dto.SplitResponse](suite, w)
	suite.Equal("STMT-7", res.Reference)
	suite.NotNil(res.ReconciledAt)

	w = suite.do(http.MethodPost, "/api/v1/journals/combined/splits/sp-1/reconcile", dto.ReconcileRequest{})
	suite.Equal(http.StatusBadRequest, w.Code, "reference is required")
}

func (suite *HandlerTestSuite) TestCloseAndNewVersion() {
	suite.journals.On("Close", mock.Anything, alice, combined).Return(nil).Once()
	suite.journals.On("NewVersion", mock.Anything, alice, combined).Return(uint32(2), nil).Once()

	suite.Equal(http.StatusNoContent, suite.do(http.MethodPost, "/api/v1/journals/combined/close", nil).Code)

	w := suite.do(http.MethodPost, "/api/v1/journals/combined/versions", nil)
	suite.Require().Equal(http.StatusCreated, w.Code)
	suite.Equal(uint32(2), decode[dto.VersionResponse](suite, w).Version)
}

func (suite *HandlerTestSuite) TestExchange() {
	eur := domain.MustCurrency("EUR")
	rated := func(q domain.Quantity, to domain.CommodityID) domain.RatedQuantity {
		return domain.RatedQuantity{Source: q, Rate: domain.Rate{From: q.Commodity, To: to, Value: decimal.RequireFromString("1.1")}}
	}
	suite.exchange.On("Convert", mock.Anything, mock.AnythingOfType("domain.Quantity"), usd).Return(rated, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/exchange?amount=10&from=EUR&to=USD", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	res := decode[dto.ExchangeResponse](suite, w)
	suite.Equal("11.00", res.Converted)
	suite.Equal(eur.String(), res.From)

	asOf := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	suite.exchange.On("ConvertAt", mock.Anything, mock.Anything, usd, asOf).
		Return(domain.RatedQuantity{}, fmt.Errorf("%w: no price", apperrors.ErrNotFound)).Once()
	w = suite.do(http.MethodGet, "/api/v1/exchange?amount=10&from=EUR&to=USD&asOf=2026-01-02T00:00:00Z", nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/exchange?amount=ten&from=EUR&to=USD", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}
