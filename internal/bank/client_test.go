package bank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avabank/internal/credential"
	"github.com/vyrodovalexey/avabank/internal/gateway"
)

type call struct {
	Method string
	Path   string
	Body   []byte
}

type reply struct {
	status int
	body   any
}

// fakeAPI answers requests from a route table and records them.
type fakeAPI struct {
	mu     sync.Mutex
	routes map[string]reply
	calls  []call
}

func newFakeAPI(routes map[string]reply) *fakeAPI {
	return &fakeAPI{routes: routes}
}

func (f *fakeAPI) Do(_ context.Context, r *gateway.Request) (*gateway.Response, error) {
	var body []byte
	if r.Body != nil {
		body, _ = json.Marshal(r.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call{Method: r.Method, Path: r.Path, Body: body})
	rep, ok := f.routes[r.Method+" "+r.Path]
	f.mu.Unlock()

	if !ok {
		rep = reply{status: http.StatusNotFound, body: map[string]string{"message": "no route"}}
	}
	if rep.status == 0 {
		rep.status = http.StatusOK
	}

	data, _ := json.Marshal(rep.body)
	resp := &gateway.Response{StatusCode: rep.status, Body: data, Method: r.Method, Path: r.Path}
	if rep.status >= http.StatusBadRequest {
		return resp, &gateway.HTTPError{Response: resp}
	}
	return resp, nil
}

func (f *fakeAPI) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

var (
	fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	alice = Account{AccountNumber: "1001", Name: "Alice", Email: "alice@bank.io", AccountType: AccountSavings, Deposit: 2000}
	bob   = Account{AccountNumber: "1002", Name: "Bob", Email: "bob@bank.io", AccountType: AccountChecking, Deposit: 50}
)

func newTestClient(t *testing.T, api Requester) *Client {
	t.Helper()
	c, err := NewClient(api, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return c
}

func boolPtr(b bool) *bool { return &b }

func TestNewClient_RequiresRequester(t *testing.T) {
	t.Parallel()
	_, err := NewClient(nil)
	require.Error(t, err)
}

func TestAccountByNumber_NotFound(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(map[string]reply{
		"GET /accounts/getaccountbynumber/1001": {body: alice},
		"GET /accounts/getaccountbynumber/2000": {body: map[string]int{"status": 404}},
		"GET /accounts/getaccountbynumber/3000": {status: http.StatusNotFound},
		"GET /accounts/getaccountbynumber/4000": {body: map[string]string{}},
	})
	c := newTestClient(t, api)

	acct, err := c.AccountByNumber(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, alice, acct)

	for _, n := range []string{"2000", "3000", "4000"} {
		_, err := c.AccountByNumber(context.Background(), n)
		assert.ErrorIs(t, err, ErrAccountNotFound, n)
	}
}

func TestAccountByEmail_PassesOtherErrors(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(map[string]reply{
		"GET /accounts/getaccount/alice@bank.io": {status: http.StatusInternalServerError},
	})
	c := newTestClient(t, api)

	_, err := c.AccountByEmail(context.Background(), "alice@bank.io")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, http.StatusInternalServerError, gateway.StatusCode(err))
}

func TestSendMoney(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(map[string]reply{
		"GET /accounts/getaccountbynumber/1002": {body: bob},
		"POST /transactions/send-money":         {body: InsertResult{Acknowledged: true, InsertedID: "tx-1"}},
	})
	c := newTestClient(t, api)

	res, err := c.SendMoney(context.Background(), alice, Transfer{
		RecipientAccountNumber: "1002",
		Amount:                 150,
		Description:            "lunch",
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", res.InsertedID)

	calls := api.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "POST", calls[1].Method)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(calls[1].Body, &sent))
	assert.Equal(t, map[string]any{
		"senderAccountNumber":    "1001",
		"recipientAccountNumber": "1002",
		"amount":                 float64(150),
		"description":            "lunch",
		"senderEmail":            "alice@bank.io",
		"recipientEmail":         "bob@bank.io",
		"transactionType":        TypeSendMoney,
	}, sent)
}

func TestSendMoney_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		form    Transfer
		field   string
		message string
	}{
		{"missing recipient", Transfer{Amount: 10}, "recipientAccountNumber", "is required"},
		{"self transfer", Transfer{RecipientAccountNumber: "1001", Amount: 10}, "recipientAccountNumber", msgSelfTransfer},
		{"zero amount", Transfer{RecipientAccountNumber: "1002"}, "amount", "must be greater than 0"},
		{"negative amount", Transfer{RecipientAccountNumber: "1002", Amount: -5}, "amount", "must be greater than 0"},
		{"insufficient balance", Transfer{RecipientAccountNumber: "1002", Amount: 2000.01}, "amount", msgInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newFakeAPI(nil)
			c := newTestClient(t, api)

			_, err := c.SendMoney(context.Background(), alice, tt.form)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.message, verr.Message(tt.field))
			assert.Empty(t, api.Calls(), "nothing is sent when validation fails")
		})
	}
}

func TestSendMoney_UnknownRecipient(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(map[string]reply{
		"GET /accounts/getaccountbynumber/9999": {body: map[string]int{"status": 404}},
	})
	c := newTestClient(t, api)

	_, err := c.SendMoney(context.Background(), alice, Transfer{RecipientAccountNumber: "9999", Amount: 10})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgAccountNotFound, verr.Message("recipientAccountNumber"))
	require.Len(t, api.Calls(), 1, "only the lookup is sent")
}

func TestWithdraw(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(map[string]reply{
		"POST /transactions/withdraw-money": {body: InsertResult{InsertedID: "w-1"}},
	})
	c := newTestClient(t, api)

	_, err := c.Withdraw(context.Background(), alice, Withdrawal{Amount: 499})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be at least 500", verr.Message("amount"))

	_, err = c.Withdraw(context.Background(), bob, Withdrawal{Amount: 600})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgInsufficientBalance, verr.Message("amount"))
	assert.Empty(t, api.Calls())

	res, err := c.Withdraw(context.Background(), alice, Withdrawal{Amount: 500, Description: "rent"})
	require.NoError(t, err)
	assert.Equal(t, "w-1", res.InsertedID)

	var sent withdrawPayload
	require.NoError(t, json.Unmarshal(api.Calls()[0].Body, &sent))
	assert.Equal(t, withdrawPayload{
		AccountNumber:   "1001",
		Amount:          500,
		Description:     "rent",
		Email:           "alice@bank.io",
		TransactionType: TypeWithdraw,
	}, sent)
}

func TestApplyLoan(t *testing.T) {
	t.Parallel()

	valid := LoanForm{
		LoanType:         LoanHome,
		LoanAmount:       250000,
		LoanTerm:         120,
		Purpose:          "flat",
		EmploymentStatus: "employed",
		AnnualIncome:     900000,
		ExistingLoans:    boolPtr(false),
	}

	tests := []struct {
		name    string
		mutate  func(f *LoanForm)
		field   string
		message string
	}{
		{"unknown type", func(f *LoanForm) { f.LoanType = "boat" }, "loanType", "must be one of personal, home, business, education, car"},
		{"too small", func(f *LoanForm) { f.LoanAmount = 9999 }, "loanAmount", "must be at least 10000"},
		{"too large", func(f *LoanForm) { f.LoanAmount = 5000001 }, "loanAmount", "must be at most 5000000"},
		{"odd term", func(f *LoanForm) { f.LoanTerm = 7 }, "loanTerm", "must be one of 6, 12, 24, 36, 48, 60, 120, 180, 240"},
		{"no purpose", func(f *LoanForm) { f.Purpose = "" }, "purpose", "is required"},
		{"no income", func(f *LoanForm) { f.AnnualIncome = 0 }, "annualIncome", "must be greater than 0"},
		{"unanswered existing loans", func(f *LoanForm) { f.ExistingLoans = nil }, "existingLoans", "is required"},
		{"collateral without value", func(f *LoanForm) { f.Collateral = true }, "collateralValue", "is required when collateral is offered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newFakeAPI(nil)
			c := newTestClient(t, api)

			form := valid
			tt.mutate(&form)
			_, err := c.ApplyLoan(context.Background(), alice, form)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.message, verr.Message(tt.field))
			assert.Empty(t, api.Calls())
		})
	}

	t.Run("submitted", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(map[string]reply{"POST /apply-loan": {body: InsertResult{InsertedID: "loan-1"}}})
		c := newTestClient(t, api)

		form := valid
		form.CollateralValue = 1234
		_, err := c.ApplyLoan(context.Background(), alice, form)
		require.NoError(t, err)

		var sent LoanApplication
		require.NoError(t, json.Unmarshal(api.Calls()[0].Body, &sent))
		assert.Equal(t, "1001", sent.AccountNumber)
		assert.Equal(t, StatusPending, sent.Status)
		assert.Zero(t, sent.CollateralValue, "value is dropped without collateral")
		assert.True(t, sent.ApplicationDate.Equal(fixedNow))
	})
}

func TestRequestChequeBook(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(map[string]reply{"POST /request-chequebook": {body: InsertResult{InsertedID: "cb-1"}}})
	c := newTestClient(t, api)

	_, err := c.RequestChequeBook(context.Background(), alice, ChequeBookForm{AccountType: "current", NumPages: 30, Reason: "short"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be one of 25, 50, 100", verr.Message("numPages"))
	assert.Equal(t, "must be at least 10 characters", verr.Message("reason"))

	_, err = c.RequestChequeBook(context.Background(), alice, ChequeBookForm{AccountType: "current", NumPages: 50, Reason: "paying suppliers"})
	require.NoError(t, err)
	require.Len(t, api.Calls(), 1)
}

func TestRequestMoney(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(map[string]reply{"POST /request-money": {body: InsertResult{InsertedID: "rm-1"}}})
	c := newTestClient(t, api)

	for amount, msg := range map[float64]string{99: "must be at least 100", 100001: "must be at most 100000"} {
		_, err := c.RequestMoney(context.Background(), alice, MoneyRequestForm{Amount: amount})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, msg, verr.Message("amount"))
	}

	_, err := c.RequestMoney(context.Background(), alice, MoneyRequestForm{Amount: 1000})
	require.NoError(t, err)

	var sent MoneyRequest
	require.NoError(t, json.Unmarshal(api.Calls()[0].Body, &sent))
	assert.Equal(t, StatusPending, sent.Status)
	assert.Equal(t, AccountSavings, sent.AccountType)
}

func TestCreateAccountAndSignUp_Validation(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(nil)
	c := newTestClient(t, api)

	_, err := c.CreateAccount(context.Background(), NewAccount{Name: "A", Email: "nope", Phone: "1", AccountType: "gold"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be a valid email address", verr.Message("email"))
	assert.Equal(t, "must be one of savings, checking, business", verr.Message("accountType"))

	_, err = c.SignUp(context.Background(), SignUpRequest{Name: "A", Email: "a@b.io", Password: "123"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be at least 6 characters", verr.Message("password"))
	assert.Contains(t, verr.Error(), "password: must be at least 6 characters")

	assert.Empty(t, api.Calls())
}

func TestSetStatus_Transitions(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(map[string]reply{
		"PATCH /loan-status/l1":          {body: UpdateResult{Acknowledged: true, ModifiedCount: 1}},
		"PATCH /chequebook-status/c1":    {body: UpdateResult{Acknowledged: true, ModifiedCount: 1}},
		"PATCH /request-money-status/r1": {body: UpdateResult{Acknowledged: true, ModifiedCount: 1}},
	})
	c := newTestClient(t, api)
	ctx := context.Background()

	res, err := c.SetLoanStatus(ctx, LoanApplication{ID: "l1", Status: StatusPending}, StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ModifiedCount)

	_, err = c.SetChequeStatus(ctx, ChequeBookRequest{ID: "c1", Status: StatusProcessing}, StatusCancelled)
	require.NoError(t, err)

	_, err = c.SetMoneyRequestStatus(ctx, MoneyRequest{ID: "r1"}, StatusRejected)
	require.NoError(t, err, "a record without status counts as pending")

	_, err = c.SetLoanStatus(ctx, LoanApplication{ID: "l1", Status: StatusApproved}, StatusRejected)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = c.SetLoanStatus(ctx, LoanApplication{ID: "l1", Status: StatusPending}, StatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = c.SetLoanStatus(ctx, LoanApplication{Status: StatusPending}, StatusApproved)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	calls := api.Calls()
	require.Len(t, calls, 3)
	assert.JSONEq(t, `{"status":"approved"}`, string(calls[0].Body))
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	assert.True(t, CanTransition(StatusPending, StatusProcessing))
	assert.True(t, CanTransition("", StatusApproved))
	assert.True(t, CanTransition(StatusProcessing, StatusRejected))
	assert.False(t, CanTransition(StatusProcessing, StatusPending))
	assert.False(t, CanTransition(StatusCancelled, StatusApproved))
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusPending.Terminal())
}

func TestApproveMoneyRequest(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(map[string]reply{
		"PATCH /request-money-status/r1":  {body: UpdateResult{ModifiedCount: 1}},
		"POST /transactions/deposit-money": {body: InsertResult{InsertedID: "d-1"}},
	})
	c := newTestClient(t, api)

	req := MoneyRequest{ID: "r1", AccountNumber: "1002", Email: "bob@bank.io", Name: "Bob", Amount: 700, Status: StatusPending}
	require.NoError(t, c.ApproveMoneyRequest(context.Background(), req))

	calls := api.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/transactions/deposit-money", calls[1].Path)

	var dep DepositRequest
	require.NoError(t, json.Unmarshal(calls[1].Body, &dep))
	assert.Equal(t, TypeDeposit, dep.Type)
	assert.Equal(t, 700.0, dep.Amount)
	assert.True(t, dep.CreatedAt.Equal(fixedNow))
}

func TestApproveMoneyRequest_StatusFailureSkipsDeposit(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(map[string]reply{
		"PATCH /request-money-status/r1": {status: http.StatusForbidden},
	})
	c := newTestClient(t, api)

	err := c.ApproveMoneyRequest(context.Background(), MoneyRequest{ID: "r1", AccountNumber: "1", Email: "a@b.io", Amount: 1})
	require.Error(t, err)
	assert.True(t, gateway.IsSessionExpired(err))
	assert.Len(t, api.Calls(), 1)
}

func TestListEndpoints(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(map[string]reply{
		"GET /transactions/history/alice@bank.io":  {body: []Transaction{{ID: "t1", Amount: 5}}},
		"GET /loans/user-loans/alice@bank.io":       {body: []LoanApplication{{ID: "l1"}}},
		"GET /chequebook/user-request/alice@bank.io": {body: []ChequeBookRequest{{ID: "c1"}}},
		"GET /accounts/allaccounts":                 {body: []Account{alice, bob}},
		"GET /products/allproducts": {body: []Product{{
			ProductID: "p1",
			Title:     "Saver",
			Details:   ProductDetails{Features: []string{"no fees"}},
		}}},
	})
	c := newTestClient(t, api)
	ctx := context.Background()

	txs, err := c.History(ctx, alice.Email)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	loans, err := c.UserLoans(ctx, alice.Email)
	require.NoError(t, err)
	assert.Len(t, loans, 1)

	cheques, err := c.UserChequeRequests(ctx, alice.Email)
	require.NoError(t, err)
	assert.Len(t, cheques, 1)

	accounts, err := c.AllAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	products, err := c.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, []string{"no fees"}, products[0].Details.Features)
}

func TestClient_ThroughGatewaySessionExpiry(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Transaction{{ID: "t1", TransactionType: TypeDeposit, Amount: 10}})
	}))
	defer srv.Close()

	store := credential.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), credential.DefaultKey, "stale"))

	var ended, navigated int
	gw, err := gateway.New(gateway.Config{BaseURL: srv.URL},
		store,
		gateway.SessionEnderFunc(func(ctx context.Context) error {
			ended++
			return store.Delete(ctx, credential.DefaultKey)
		}),
		gateway.NavigatorFunc(func(context.Context, string) error {
			navigated++
			return nil
		}),
	)
	require.NoError(t, err)

	c := newTestClient(t, gw)
	_, err = c.AllTransactions(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrSessionExpired))
	assert.Equal(t, 1, ended)
	assert.Equal(t, 1, navigated)

	require.NoError(t, store.Set(context.Background(), credential.DefaultKey, "good"))
	txs, err := c.AllTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TypeDeposit, txs[0].Kind())
}
