// Package bank is a typed client for the banking API. Every call goes
// through the request gateway, so authorization and session expiry are
// handled there.
package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vyrodovalexey/avabank/internal/gateway"
	"github.com/vyrodovalexey/avabank/internal/observability"
)

// Requester sends API requests. *gateway.Gateway implements it.
type Requester interface {
	Do(ctx context.Context, r *gateway.Request) (*gateway.Response, error)
}

// Client calls the banking API.
type Client struct {
	api    Requester
	logger observability.Logger
	now    func() time.Time
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the time source used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a client sending requests through api.
func NewClient(api Requester, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("bank: requester is required")
	}

	c := &Client{
		api:    api,
		logger: observability.NopLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// AccountByEmail returns the account owned by email.
func (c *Client) AccountByEmail(ctx context.Context, email string) (Account, error) {
	return c.account(ctx, "/accounts/getaccount/"+url.PathEscape(email))
}

// AccountByNumber returns the account with the given number.
func (c *Client) AccountByNumber(ctx context.Context, number string) (Account, error) {
	return c.account(ctx, "/accounts/getaccountbynumber/"+url.PathEscape(number))
}

// CreateAccount opens an account.
func (c *Client) CreateAccount(ctx context.Context, form NewAccount) (InsertResult, error) {
	if err := validateForm(form).orNil(); err != nil {
		return InsertResult{}, err
	}

	payload := Account{
		Name:         form.Name,
		Email:        form.Email,
		Phone:        form.Phone,
		AccountType:  form.AccountType,
		ProfileImage: form.ProfileImage,
		NIDImage1:    form.NIDImage1,
		NIDImage2:    form.NIDImage2,
		CreatedAt:    c.now().UTC(),
	}

	var out InsertResult
	err := c.call(ctx, http.MethodPost, "/accounts/createaccount", payload, &out)
	return out, err
}

// AllAccounts lists every account. Admin only.
func (c *Client) AllAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	err := c.call(ctx, http.MethodGet, "/accounts/allaccounts", nil, &out)
	return out, err
}

// SendMoney transfers money from the sender's account. The recipient
// account is looked up before the transfer is submitted.
func (c *Client) SendMoney(ctx context.Context, from Account, form Transfer) (InsertResult, error) {
	verr := validateForm(form)
	if form.RecipientAccountNumber != "" && form.RecipientAccountNumber == from.AccountNumber {
		verr.add("recipientAccountNumber", msgSelfTransfer)
	}
	if form.Amount > from.Deposit {
		verr.add("amount", msgInsufficientBalance)
	}
	if err := verr.orNil(); err != nil {
		return InsertResult{}, err
	}

	recipient, err := c.AccountByNumber(ctx, form.RecipientAccountNumber)
	if errors.Is(err, ErrAccountNotFound) {
		verr.add("recipientAccountNumber", msgAccountNotFound)
		return InsertResult{}, verr
	}
	if err != nil {
		return InsertResult{}, err
	}

	payload := sendMoneyPayload{
		SenderAccountNumber:    from.AccountNumber,
		RecipientAccountNumber: recipient.AccountNumber,
		Amount:                 form.Amount,
		Description:            form.Description,
		SenderEmail:            from.Email,
		RecipientEmail:         recipient.Email,
		TransactionType:        TypeSendMoney,
	}

	var out InsertResult
	if err := c.call(ctx, http.MethodPost, "/transactions/send-money", payload, &out); err != nil {
		return InsertResult{}, err
	}

	c.logger.Info("money sent",
		observability.String("from", from.AccountNumber),
		observability.String("to", recipient.AccountNumber),
		observability.Float64("amount", form.Amount),
	)
	return out, nil
}

// Withdraw takes money out of the account.
func (c *Client) Withdraw(ctx context.Context, from Account, form Withdrawal) (InsertResult, error) {
	verr := validateForm(form)
	if form.Amount > from.Deposit {
		verr.add("amount", msgInsufficientBalance)
	}
	if err := verr.orNil(); err != nil {
		return InsertResult{}, err
	}

	payload := withdrawPayload{
		AccountNumber:   from.AccountNumber,
		Amount:          form.Amount,
		Description:     form.Description,
		Email:           from.Email,
		TransactionType: TypeWithdraw,
	}

	var out InsertResult
	err := c.call(ctx, http.MethodPost, "/transactions/withdraw-money", payload, &out)
	return out, err
}

// Deposit credits an account. Admin only.
func (c *Client) Deposit(ctx context.Context, req DepositRequest) (InsertResult, error) {
	if err := validateForm(req).orNil(); err != nil {
		return InsertResult{}, err
	}

	req.Type = TypeDeposit
	if req.CreatedAt.IsZero() {
		req.CreatedAt = c.now().UTC()
	}

	var out InsertResult
	err := c.call(ctx, http.MethodPost, "/transactions/deposit-money", req, &out)
	return out, err
}

// History lists the transactions involving email.
func (c *Client) History(ctx context.Context, email string) ([]Transaction, error) {
	var out []Transaction
	err := c.call(ctx, http.MethodGet, "/transactions/history/"+url.PathEscape(email), nil, &out)
	return out, err
}

// AllTransactions lists every transaction. Admin only.
func (c *Client) AllTransactions(ctx context.Context) ([]Transaction, error) {
	var out []Transaction
	err := c.call(ctx, http.MethodGet, "/transactions/all-transactions", nil, &out)
	return out, err
}

// ApplyLoan submits a loan application for the account.
func (c *Client) ApplyLoan(ctx context.Context, from Account, form LoanForm) (InsertResult, error) {
	if err := validateForm(form).orNil(); err != nil {
		return InsertResult{}, err
	}

	app := LoanApplication{
		AccountNumber:    from.AccountNumber,
		Email:            from.Email,
		Name:             from.Name,
		LoanType:         form.LoanType,
		LoanAmount:       form.LoanAmount,
		LoanTerm:         form.LoanTerm,
		Purpose:          form.Purpose,
		EmploymentStatus: form.EmploymentStatus,
		AnnualIncome:     form.AnnualIncome,
		ExistingLoans:    *form.ExistingLoans,
		Collateral:       form.Collateral,
		Description:      form.Description,
		ApplicationDate:  c.now().UTC(),
		Status:           StatusPending,
	}
	if form.Collateral {
		app.CollateralValue = form.CollateralValue
	}

	var out InsertResult
	err := c.call(ctx, http.MethodPost, "/apply-loan", app, &out)
	return out, err
}

// UserLoans lists the loan applications made by email.
func (c *Client) UserLoans(ctx context.Context, email string) ([]LoanApplication, error) {
	var out []LoanApplication
	err := c.call(ctx, http.MethodGet, "/loans/user-loans/"+url.PathEscape(email), nil, &out)
	return out, err
}

// AllLoans lists every loan application. Admin only.
func (c *Client) AllLoans(ctx context.Context) ([]LoanApplication, error) {
	var out []LoanApplication
	err := c.call(ctx, http.MethodGet, "/loans/all-loans", nil, &out)
	return out, err
}

// SetLoanStatus moves a loan application to status. Admin only.
func (c *Client) SetLoanStatus(ctx context.Context, loan LoanApplication, status Status) (UpdateResult, error) {
	return c.setStatus(ctx, "/loan-status/", loan.ID, loan.Status, status)
}

// RequestChequeBook asks for a cheque book for the account.
func (c *Client) RequestChequeBook(ctx context.Context, from Account, form ChequeBookForm) (InsertResult, error) {
	if err := validateForm(form).orNil(); err != nil {
		return InsertResult{}, err
	}

	req := ChequeBookRequest{
		AccountNumber: from.AccountNumber,
		Email:         from.Email,
		Name:          from.Name,
		AccountType:   form.AccountType,
		NumPages:      form.NumPages,
		Reason:        form.Reason,
		RequestDate:   c.now().UTC(),
		Status:        StatusPending,
	}

	var out InsertResult
	err := c.call(ctx, http.MethodPost, "/request-chequebook", req, &out)
	return out, err
}

// UserChequeRequests lists the cheque book requests made by email.
func (c *Client) UserChequeRequests(ctx context.Context, email string) ([]ChequeBookRequest, error) {
	var out []ChequeBookRequest
	err := c.call(ctx, http.MethodGet, "/chequebook/user-request/"+url.PathEscape(email), nil, &out)
	return out, err
}

// AllChequeRequests lists every cheque book request. Admin only.
func (c *Client) AllChequeRequests(ctx context.Context) ([]ChequeBookRequest, error) {
	var out []ChequeBookRequest
	err := c.call(ctx, http.MethodGet, "/chequebooks/all-requests", nil, &out)
	return out, err
}

// SetChequeStatus moves a cheque book request to status. Admin only.
func (c *Client) SetChequeStatus(ctx context.Context, req ChequeBookRequest, status Status) (UpdateResult, error) {
	return c.setStatus(ctx, "/chequebook-status/", req.ID, req.Status, status)
}

// RequestMoney asks the bank to add balance to the account.
func (c *Client) RequestMoney(ctx context.Context, from Account, form MoneyRequestForm) (InsertResult, error) {
	if err := validateForm(form).orNil(); err != nil {
		return InsertResult{}, err
	}

	req := MoneyRequest{
		AccountNumber: from.AccountNumber,
		Email:         from.Email,
		Name:          from.Name,
		AccountType:   from.AccountType,
		Amount:        form.Amount,
		Description:   form.Description,
		Status:        StatusPending,
		CreatedAt:     c.now().UTC(),
	}

	var out InsertResult
	err := c.call(ctx, http.MethodPost, "/request-money", req, &out)
	return out, err
}

// AllMoneyRequests lists every balance request. Admin only.
func (c *Client) AllMoneyRequests(ctx context.Context) ([]MoneyRequest, error) {
	var out []MoneyRequest
	err := c.call(ctx, http.MethodGet, "/all-request-money", nil, &out)
	return out, err
}

// SetMoneyRequestStatus moves a balance request to status. Admin only.
func (c *Client) SetMoneyRequestStatus(ctx context.Context, req MoneyRequest, status Status) (UpdateResult, error) {
	return c.setStatus(ctx, "/request-money-status/", req.ID, req.Status, status)
}

// ApproveMoneyRequest approves a balance request and deposits its amount
// into the requester's account. Admin only.
func (c *Client) ApproveMoneyRequest(ctx context.Context, req MoneyRequest) error {
	if _, err := c.SetMoneyRequestStatus(ctx, req, StatusApproved); err != nil {
		return err
	}

	_, err := c.Deposit(ctx, DepositRequest{
		AccountNumber: req.AccountNumber,
		Email:         req.Email,
		Name:          req.Name,
		Amount:        req.Amount,
		Description:   req.Description,
	})
	if err != nil {
		return fmt.Errorf("deposit approved request %s: %w", req.ID, err)
	}
	return nil
}

// Products lists the public banking products.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out []Product
	err := c.call(ctx, http.MethodGet, "/products/allproducts", nil, &out)
	return out, err
}

// SignUp registers a new user.
func (c *Client) SignUp(ctx context.Context, form SignUpRequest) (InsertResult, error) {
	if err := validateForm(form).orNil(); err != nil {
		return InsertResult{}, err
	}

	var out InsertResult
	err := c.call(ctx, http.MethodPost, "/users/signup", form, &out)
	return out, err
}

func (c *Client) setStatus(ctx context.Context, prefix, id string, from, to Status) (UpdateResult, error) {
	if err := checkTransition(id, from, to); err != nil {
		return UpdateResult{}, err
	}

	var out UpdateResult
	body := map[string]Status{"status": to}
	if err := c.call(ctx, http.MethodPatch, prefix+url.PathEscape(id), body, &out); err != nil {
		return UpdateResult{}, err
	}

	c.logger.Info("status changed",
		observability.String("path", prefix+id),
		observability.String("from", string(displayStatus(from))),
		observability.String("to", string(to)),
	)
	return out, nil
}

// account fetches one account. The API reports a missing account either
// with HTTP 404 or with a 200 body of {"status": 404}.
func (c *Client) account(ctx context.Context, path string) (Account, error) {
	resp, err := c.api.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: path})
	if gateway.StatusCode(err) == http.StatusNotFound {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, path)
	}
	if err != nil {
		return Account{}, err
	}

	var probe struct {
		Status *int `json:"status"`
	}
	if err := json.Unmarshal(resp.Body, &probe); err == nil && probe.Status != nil && *probe.Status == http.StatusNotFound {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, path)
	}

	var acct Account
	if err := resp.DecodeJSON(&acct); err != nil {
		return Account{}, err
	}
	if acct.AccountNumber == "" {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, path)
	}
	return acct, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.api.Do(ctx, &gateway.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.DecodeJSON(out)
}
