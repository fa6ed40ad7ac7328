package stubapi

import (
	"fmt"

	"github.com/vyrodovalexey/avabank/internal/bank"
	"github.com/vyrodovalexey/avabank/internal/session"
)

// SeedUser describes a demo user created by Seed.
type SeedUser struct {
	Name        string
	Email       string
	Password    string
	Role        string
	AccountType string
	Deposit     float64
}

// DefaultSeedUsers returns one admin and two customers.
func DefaultSeedUsers(password string) []SeedUser {
	return []SeedUser{
		{Name: "Bank Admin", Email: "admin@avabank.io", Password: password, Role: session.RoleAdmin, AccountType: bank.AccountBusiness},
		{Name: "Alice Rahman", Email: "alice@avabank.io", Password: password, Role: session.RoleUser, AccountType: bank.AccountSavings, Deposit: 25000},
		{Name: "Bob Karim", Email: "bob@avabank.io", Password: password, Role: session.RoleUser, AccountType: bank.AccountChecking, Deposit: 4000},
	}
}

// DefaultProducts returns the demo product catalogue.
func DefaultProducts() []bank.Product {
	return []bank.Product{
		{
			ProductID:   "savings-plus",
			Title:       "Savings Plus",
			Category:    "accounts",
			Description: "Interest bearing savings account.",
			Details: bank.ProductDetails{
				Features: []string{"Monthly interest", "No minimum balance"},
				Benefits: []string{"Free debit card"},
			},
		},
		{
			ProductID:   "home-loan",
			Title:       "Home Loan",
			Category:    "loans",
			Description: "Long term financing for your home.",
			Details: bank.ProductDetails{
				Features: []string{"Terms up to 240 months"},
				Offers:   []string{"Reduced processing fee"},
			},
		},
		{
			ProductID:   "business-current",
			Title:       "Business Current Account",
			Category:    "accounts",
			Description: "Everyday banking for companies.",
			Details: bank.ProductDetails{
				Services: []string{"Cheque books", "Bulk transfers"},
			},
		},
	}
}

// Seed registers users with an account each and installs the default
// product catalogue.
func (s *Server) Seed(users []SeedUser) error {
	for _, u := range users {
		if err := s.AddUser(u.Name, u.Email, u.Password, u.Role); err != nil {
			return fmt.Errorf("seed %s: %w", u.Email, err)
		}
		s.AddAccount(bank.Account{
			Name:        u.Name,
			Email:       u.Email,
			AccountType: u.AccountType,
			Deposit:     u.Deposit,
		})
	}
	s.SetProducts(DefaultProducts())
	return nil
}
