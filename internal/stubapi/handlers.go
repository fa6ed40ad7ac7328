package stubapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vyrodovalexey/avabank/internal/bank"
	"github.com/vyrodovalexey/avabank/internal/observability"
)

func inserted(id string) bank.InsertResult {
	return bank.InsertResult{Acknowledged: true, InsertedID: id}
}

func updated(n int) bank.UpdateResult {
	return bank.UpdateResult{Acknowledged: true, MatchedCount: n, ModifiedCount: n}
}

// AddAccount stores an account, assigning a number when it has none.
// It returns the stored account.
func (s *Server) AddAccount(acct bank.Account) bank.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccountLocked(acct)
}

func (s *Server) addAccountLocked(acct bank.Account) bank.Account {
	if acct.AccountNumber == "" {
		acct.AccountNumber = strconv.Itoa(s.nextAccount)
		s.nextAccount++
	}
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = s.now().UTC()
	}
	stored := acct
	s.accounts[acct.AccountNumber] = &stored
	s.accountByMail[strings.ToLower(acct.Email)] = acct.AccountNumber
	return stored
}

// Account returns a copy of the account with the given number.
func (s *Server) Account(number string) (bank.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[number]
	if !ok {
		return bank.Account{}, false
	}
	return *a, true
}

// SetProducts replaces the product catalogue.
func (s *Server) SetProducts(products []bank.Product) {
	s.mu.Lock()
	s.products = append([]bank.Product(nil), products...)
	s.mu.Unlock()
}

func (s *Server) listProducts(c *gin.Context) {
	s.mu.RLock()
	out := append([]bank.Product{}, s.products...)
	s.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) accountByEmail(c *gin.Context) {
	email := c.Param("email")
	if !allowSelf(c, email) {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	number, ok := s.accountByMail[strings.ToLower(email)]
	if !ok {
		abort(c, http.StatusNotFound, "account not found")
		return
	}
	c.JSON(http.StatusOK, s.accounts[number])
}

// accountByNumber answers a missing account with 200 and {"status": 404},
// which clients treat as not found.
func (s *Server) accountByNumber(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[c.Param("number")]
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": http.StatusNotFound, "message": "account not found"})
		return
	}
	if isAdmin(c) || strings.EqualFold(a.Email, c.GetString(ctxEmail)) {
		c.JSON(http.StatusOK, a)
		return
	}
	// Other users only see what a transfer needs.
	c.JSON(http.StatusOK, bank.Account{AccountNumber: a.AccountNumber, Name: a.Name, Email: a.Email})
}

func (s *Server) allAccounts(c *gin.Context) {
	s.mu.RLock()
	out := make([]bank.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	s.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) createAccount(c *gin.Context) {
	var req bank.Account
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Name == "" {
		abort(c, http.StatusBadRequest, "name and email are required")
		return
	}
	if !allowSelf(c, req.Email) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accountByMail[strings.ToLower(req.Email)]; exists {
		abort(c, http.StatusConflict, "account already exists")
		return
	}
	req.AccountNumber = ""
	req.ID = ""
	req.Deposit = 0
	acct := s.addAccountLocked(req)

	s.logger.Info("account created",
		observability.String("account", acct.AccountNumber),
		observability.String("email", acct.Email),
	)
	c.JSON(http.StatusCreated, inserted(acct.ID))
}

func (s *Server) sendMoney(c *gin.Context) {
	var req bank.Transaction
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		abort(c, http.StatusBadRequest, "amount must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.accounts[req.SenderAccountNumber]
	if !ok {
		abort(c, http.StatusNotFound, "sender account not found")
		return
	}
	if !strings.EqualFold(from.Email, c.GetString(ctxEmail)) {
		abort(c, http.StatusForbidden, "sender account belongs to another user")
		return
	}
	to, ok := s.accounts[req.RecipientAccountNumber]
	if !ok {
		abort(c, http.StatusNotFound, "recipient account not found")
		return
	}
	if from.AccountNumber == to.AccountNumber {
		abort(c, http.StatusBadRequest, "cannot send money to your own account")
		return
	}
	if from.Deposit < req.Amount {
		abort(c, http.StatusBadRequest, "insufficient balance")
		return
	}

	from.Deposit -= req.Amount
	to.Deposit += req.Amount

	tx := s.recordLocked(bank.Transaction{
		TransactionType:        bank.TypeSendMoney,
		SenderAccountNumber:    from.AccountNumber,
		RecipientAccountNumber: to.AccountNumber,
		SenderEmail:            from.Email,
		RecipientEmail:         to.Email,
		Amount:                 req.Amount,
		Description:            req.Description,
	})
	c.JSON(http.StatusCreated, inserted(tx.ID))
}

func (s *Server) withdrawMoney(c *gin.Context) {
	var req bank.Transaction
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		abort(c, http.StatusBadRequest, "amount must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[req.AccountNumber]
	if !ok {
		abort(c, http.StatusNotFound, "account not found")
		return
	}
	if !strings.EqualFold(acct.Email, c.GetString(ctxEmail)) {
		abort(c, http.StatusForbidden, "account belongs to another user")
		return
	}
	if acct.Deposit < req.Amount {
		abort(c, http.StatusBadRequest, "insufficient balance")
		return
	}

	acct.Deposit -= req.Amount
	tx := s.recordLocked(bank.Transaction{
		TransactionType: bank.TypeWithdraw,
		AccountNumber:   acct.AccountNumber,
		Email:           acct.Email,
		Name:            acct.Name,
		Amount:          req.Amount,
		Description:     req.Description,
	})
	c.JSON(http.StatusCreated, inserted(tx.ID))
}

func (s *Server) depositMoney(c *gin.Context) {
	var req bank.Transaction
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		abort(c, http.StatusBadRequest, "amount must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[req.AccountNumber]
	if !ok {
		abort(c, http.StatusNotFound, "account not found")
		return
	}

	acct.Deposit += req.Amount
	tx := s.recordLocked(bank.Transaction{
		Type:          bank.TypeDeposit,
		AccountNumber: acct.AccountNumber,
		Email:         acct.Email,
		Name:          acct.Name,
		Amount:        req.Amount,
		Description:   req.Description,
	})
	c.JSON(http.StatusCreated, inserted(tx.ID))
}

func (s *Server) recordLocked(tx bank.Transaction) bank.Transaction {
	tx.ID = uuid.NewString()
	tx.CreatedAt = s.now().UTC()
	s.transactions = append(s.transactions, tx)

	s.logger.Info("transaction recorded",
		observability.String("id", tx.ID),
		observability.String("type", tx.Kind()),
		observability.Float64("amount", tx.Amount),
	)
	return tx
}

func (s *Server) history(c *gin.Context) {
	email := c.Param("email")
	if !allowSelf(c, email) {
		return
	}

	s.mu.RLock()
	out := make([]bank.Transaction, 0)
	for _, tx := range s.transactions {
		if strings.EqualFold(tx.SenderEmail, email) ||
			strings.EqualFold(tx.RecipientEmail, email) ||
			strings.EqualFold(tx.Email, email) {
			out = append(out, tx)
		}
	}
	s.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) allTransactions(c *gin.Context) {
	s.mu.RLock()
	out := append([]bank.Transaction{}, s.transactions...)
	s.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) applyLoan(c *gin.Context) {
	var req bank.LoanApplication
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if !allowSelf(c, req.Email) {
		return
	}

	req.ID = uuid.NewString()
	req.Status = bank.StatusPending
	if req.ApplicationDate.IsZero() {
		req.ApplicationDate = s.now().UTC()
	}

	s.mu.Lock()
	s.loans = append(s.loans, req)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, inserted(req.ID))
}

func (s *Server) userLoans(c *gin.Context) {
	email := c.Param("email")
	if !allowSelf(c, email) {
		return
	}

	s.mu.RLock()
	out := make([]bank.LoanApplication, 0)
	for _, l := range s.loans {
		if strings.EqualFold(l.Email, email) {
			out = append(out, l)
		}
	}
	s.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) allLoans(c *gin.Context) {
	s.mu.RLock()
	out := append([]bank.LoanApplication{}, s.loans...)
	s.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) requestChequeBook(c *gin.Context) {
	var req bank.ChequeBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if !allowSelf(c, req.Email) {
		return
	}

	req.ID = uuid.NewString()
	req.Status = bank.StatusPending
	if req.RequestDate.IsZero() {
		req.RequestDate = s.now().UTC()
	}

	s.mu.Lock()
	s.cheques = append(s.cheques, req)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, inserted(req.ID))
}

func (s *Server) userChequeRequests(c *gin.Context) {
	email := c.Param("email")
	if !allowSelf(c, email) {
		return
	}

	s.mu.RLock()
	out := make([]bank.ChequeBookRequest, 0)
	for _, r := range s.cheques {
		if strings.EqualFold(r.Email, email) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) allChequeRequests(c *gin.Context) {
	s.mu.RLock()
	out := append([]bank.ChequeBookRequest{}, s.cheques...)
	s.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) requestMoney(c *gin.Context) {
	var req bank.MoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if !allowSelf(c, req.Email) {
		return
	}

	req.ID = uuid.NewString()
	req.Status = bank.StatusPending
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	s.moneyRequests = append(s.moneyRequests, req)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, inserted(req.ID))
}

func (s *Server) allMoneyRequests(c *gin.Context) {
	s.mu.RLock()
	out := append([]bank.MoneyRequest{}, s.moneyRequests...)
	s.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

type statusUpdate struct {
	Status bank.Status `json:"status" binding:"required,oneof=pending processing approved rejected cancelled"`
}

func (s *Server) setLoanStatus(c *gin.Context) {
	s.setStatus(c, func(id string, st bank.Status) bool {
		for i := range s.loans {
			if s.loans[i].ID == id {
				s.loans[i].Status = st
				return true
			}
		}
		return false
	})
}

func (s *Server) setChequeStatus(c *gin.Context) {
	s.setStatus(c, func(id string, st bank.Status) bool {
		for i := range s.cheques {
			if s.cheques[i].ID == id {
				s.cheques[i].Status = st
				return true
			}
		}
		return false
	})
}

func (s *Server) setMoneyRequestStatus(c *gin.Context) {
	s.setStatus(c, func(id string, st bank.Status) bool {
		for i := range s.moneyRequests {
			if s.moneyRequests[i].ID == id {
				s.moneyRequests[i].Status = st
				s.moneyRequests[i].UpdatedAt = s.now().UTC()
				return true
			}
		}
		return false
	})
}

// setStatus applies update under the write lock.
func (s *Server) setStatus(c *gin.Context, update func(id string, st bank.Status) bool) {
	var req statusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	found := update(c.Param("id"), req.Status)
	s.mu.Unlock()

	if !found {
		abort(c, http.StatusNotFound, "record not found")
		return
	}
	c.JSON(http.StatusOK, updated(1))
}
