package bank

import (
	"time"
)

// Transaction types.
const (
	TypeSendMoney = "send-money"
	TypeWithdraw  = "withdraw"
	TypeDeposit   = "deposit"
	TypeOther     = "other"
)

// Account types offered when opening an account.
const (
	AccountSavings  = "savings"
	AccountChecking = "checking"
	AccountBusiness = "business"
)

// Account is a customer bank account.
type Account struct {
	ID            string    `json:"_id,omitempty"`
	AccountNumber string    `json:"accountNumber"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	AccountType   string    `json:"accountType"`
	Deposit       float64   `json:"deposit"`
	ProfileImage  string    `json:"profileImage,omitempty"`
	NIDImage1     string    `json:"nidImage1,omitempty"`
	NIDImage2     string    `json:"nidImage2,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// NewAccount is the form for opening an account.
type NewAccount struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required"`
	AccountType  string `json:"accountType" validate:"required,oneof=savings checking business"`
	ProfileImage string `json:"profileImage,omitempty" validate:"omitempty,url"`
	NIDImage1    string `json:"nidImage1,omitempty" validate:"omitempty,url"`
	NIDImage2    string `json:"nidImage2,omitempty" validate:"omitempty,url"`
}

// SignUpRequest registers a user with the API.
type SignUpRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Transaction is a money movement. Older records carry the kind in Type
// rather than TransactionType.
type Transaction struct {
	ID                     string    `json:"_id,omitempty"`
	TransactionType        string    `json:"transactionType,omitempty"`
	Type                   string    `json:"type,omitempty"`
	SenderAccountNumber    string    `json:"senderAccountNumber,omitempty"`
	RecipientAccountNumber string    `json:"recipientAccountNumber,omitempty"`
	SenderEmail            string    `json:"senderEmail,omitempty"`
	RecipientEmail         string    `json:"recipientEmail,omitempty"`
	AccountNumber          string    `json:"accountNumber,omitempty"`
	Email                  string    `json:"email,omitempty"`
	Name                   string    `json:"name,omitempty"`
	Amount                 float64   `json:"amount"`
	Description            string    `json:"description,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
}

// Kind returns the transaction type, falling back to TypeOther.
func (t Transaction) Kind() string {
	switch {
	case t.TransactionType != "":
		return t.TransactionType
	case t.Type != "":
		return t.Type
	default:
		return TypeOther
	}
}

// Transfer is the form for sending money to another account.
type Transfer struct {
	RecipientAccountNumber string  `json:"recipientAccountNumber" validate:"required"`
	Amount                 float64 `json:"amount" validate:"gt=0"`
	Description            string  `json:"description,omitempty" validate:"max=200"`
}

// Withdrawal is the form for withdrawing money.
type Withdrawal struct {
	Amount      float64 `json:"amount" validate:"gt=0,gte=500"`
	Description string  `json:"description,omitempty" validate:"max=200"`
}

// DepositRequest credits an account. It is issued by admins.
type DepositRequest struct {
	AccountNumber string    `json:"accountNumber" validate:"required"`
	Email         string    `json:"email" validate:"required,email"`
	Name          string    `json:"name,omitempty"`
	Amount        float64   `json:"amount" validate:"gt=0"`
	Description   string    `json:"description,omitempty"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"createdAt"`
}

type sendMoneyPayload struct {
	SenderAccountNumber    string  `json:"senderAccountNumber"`
	RecipientAccountNumber string  `json:"recipientAccountNumber"`
	Amount                 float64 `json:"amount"`
	Description            string  `json:"description"`
	SenderEmail            string  `json:"senderEmail"`
	RecipientEmail         string  `json:"recipientEmail"`
	TransactionType        string  `json:"transactionType"`
}

type withdrawPayload struct {
	AccountNumber   string  `json:"accountNumber"`
	Amount          float64 `json:"amount"`
	Description     string  `json:"description"`
	Email           string  `json:"email"`
	TransactionType string  `json:"transactionType"`
}

// Loan types.
const (
	LoanPersonal  = "personal"
	LoanHome      = "home"
	LoanBusiness  = "business"
	LoanEducation = "education"
	LoanCar       = "car"
)

// LoanApplication is a loan request and its review status.
type LoanApplication struct {
	ID               string    `json:"_id,omitempty"`
	AccountNumber    string    `json:"accountNumber"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	LoanType         string    `json:"loanType"`
	LoanAmount       float64   `json:"loanAmount"`
	LoanTerm         int       `json:"loanTerm"`
	Purpose          string    `json:"purpose"`
	EmploymentStatus string    `json:"employmentStatus"`
	AnnualIncome     float64   `json:"annualIncome"`
	ExistingLoans    bool      `json:"existingLoans"`
	Collateral       bool      `json:"collateral"`
	CollateralValue  float64   `json:"collateralValue"`
	Description      string    `json:"description,omitempty"`
	ApplicationDate  time.Time `json:"applicationDate"`
	Status           Status    `json:"status,omitempty"`
}

// LoanForm is the form for applying for a loan. ExistingLoans must be
// answered either way.
type LoanForm struct {
	LoanType         string  `json:"loanType" validate:"required,oneof=personal home business education car"`
	LoanAmount       float64 `json:"loanAmount" validate:"gt=0,gte=10000,lte=5000000"`
	LoanTerm         int     `json:"loanTerm" validate:"required,oneof=6 12 24 36 48 60 120 180 240"`
	Purpose          string  `json:"purpose" validate:"required"`
	EmploymentStatus string  `json:"employmentStatus" validate:"required,oneof=employed self-employed business retired student unemployed"`
	AnnualIncome     float64 `json:"annualIncome" validate:"gt=0"`
	ExistingLoans    *bool   `json:"existingLoans" validate:"required"`
	Collateral       bool    `json:"collateral"`
	CollateralValue  float64 `json:"collateralValue" validate:"required_if=Collateral true,gte=0"`
	Description      string  `json:"description,omitempty"`
}

// ChequeBookRequest is a request for a cheque book.
type ChequeBookRequest struct {
	ID            string    `json:"_id,omitempty"`
	AccountNumber string    `json:"accountNumber"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	AccountType   string    `json:"accountType"`
	NumPages      int       `json:"numPages"`
	Reason        string    `json:"reason"`
	RequestDate   time.Time `json:"requestDate"`
	Status        Status    `json:"status,omitempty"`
}

// ChequeBookForm is the form for requesting a cheque book.
type ChequeBookForm struct {
	AccountType string `json:"accountType" validate:"required,oneof=savings current business"`
	NumPages    int    `json:"numPages" validate:"required,oneof=25 50 100"`
	Reason      string `json:"reason" validate:"required,min=10"`
}

// MoneyRequest asks the bank to add balance to an account.
type MoneyRequest struct {
	ID            string    `json:"_id,omitempty"`
	AccountNumber string    `json:"accountNumber"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	AccountType   string    `json:"accountType"`
	Amount        float64   `json:"amount"`
	Description   string    `json:"description,omitempty"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// MoneyRequestForm is the form for requesting balance.
type MoneyRequestForm struct {
	Amount      float64 `json:"amount" validate:"gt=0,gte=100,lte=100000"`
	Description string  `json:"description,omitempty" validate:"max=200"`
}

// Product is a banking product shown to the public.
type Product struct {
	ID          string         `json:"_id,omitempty"`
	ProductID   string         `json:"productId"`
	Title       string         `json:"title"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Image       string         `json:"image,omitempty"`
	Details     ProductDetails `json:"details"`
}

// ProductDetails lists what a product includes.
type ProductDetails struct {
	Features []string `json:"features,omitempty"`
	Benefits []string `json:"benefits,omitempty"`
	Services []string `json:"services,omitempty"`
	Offers   []string `json:"offers,omitempty"`
}

// InsertResult is returned by endpoints that create a record.
type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

// UpdateResult is returned by endpoints that change a record.
type UpdateResult struct {
	Acknowledged  bool `json:"acknowledged"`
	MatchedCount  int  `json:"matchedCount"`
	ModifiedCount int  `json:"modifiedCount"`
}
