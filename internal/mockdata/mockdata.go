// Package mockdata sirve los datos ficticios de clientes, inversiones y
// transacciones que exponen los endpoints del mock. Los archivos van embebidos
// en el binario.
package mockdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dropDatabas3/ofbmock/internal/canonical"
	"github.com/shopspring/decimal"
)

//go:embed data/*.json
var files embed.FS

type Customer struct {
	CPF         string         `json:"cpf"`
	Name        string         `json:"name"`
	BirthDate   canonical.Date `json:"birthDate"`
	Email       string         `json:"email,omitempty"`
	RiskProfile string         `json:"riskProfile,omitempty"`
}

type Investment struct {
	InvestmentID  string           `json:"investmentId"`
	ProductType   string           `json:"productType"`
	ProductName   string           `json:"productName,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	PurchaseDate  canonical.Date   `json:"purchaseDate"`
	MaturityDate  *canonical.Date  `json:"maturityDate,omitempty"`
	Profitability *decimal.Decimal `json:"profitability,omitempty"`
	CurrentValue  *decimal.Decimal `json:"currentValue,omitempty"`
	// Quantity: títulos o ações; en fundos, cotas.
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
}

type Transaction struct {
	TransactionID string          `json:"transactionId"`
	InvestmentID  string          `json:"investmentId,omitempty"`
	Date          canonical.Date  `json:"date"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
}

// Store es de solo lectura después de Load: seguro para uso concurrente.
type Store struct {
	customers    map[string]Customer
	investments  map[string][]Investment // cpf -> inversiones
	transactions map[string][]Transaction
	byID         map[string]Investment
	owner        map[string]string // investmentId -> cpf
}

// Load parsea los datos embebidos.
func Load() (*Store, error) {
	s := &Store{byID: map[string]Investment{}, owner: map[string]string{}}
	if err := readJSON("data/customers.json", &s.customers); err != nil {
		return nil, err
	}
	if err := readJSON("data/investments.json", &s.investments); err != nil {
		return nil, err
	}
	if err := readJSON("data/transactions.json", &s.transactions); err != nil {
		return nil, err
	}
	for cpf, list := range s.investments {
		for _, inv := range list {
			if FamilyOf(inv.ProductType) == "" {
				return nil, fmt.Errorf("mockdata: investment %s has unknown product type %q", inv.InvestmentID, inv.ProductType)
			}
			if _, dup := s.byID[inv.InvestmentID]; dup {
				return nil, fmt.Errorf("mockdata: duplicated investment %s (cpf %s)", inv.InvestmentID, cpf)
			}
			s.byID[inv.InvestmentID] = inv
			s.owner[inv.InvestmentID] = cpf
		}
	}
	return s, nil
}

// MustLoad es Load para tests y arranque.
func MustLoad() *Store {
	s, err := Load()
	if err != nil {
		panic(err)
	}
	return s
}

func readJSON(name string, v any) error {
	b, err := files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("mockdata: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("mockdata: %s: %w", name, err)
	}
	return nil
}

func (s *Store) Customer(cpf string) (Customer, bool) {
	c, ok := s.customers[cpf]
	return c, ok
}

// Investments devuelve una copia; ok=false si el cliente no existe.
func (s *Store) Investments(cpf string) ([]Investment, bool) {
	if _, ok := s.customers[cpf]; !ok {
		return nil, false
	}
	return append([]Investment{}, s.investments[cpf]...), true
}

func (s *Store) Investment(id string) (Investment, bool) {
	inv, ok := s.byID[id]
	return inv, ok
}

// Owner devuelve el CPF titular de la inversión.
func (s *Store) Owner(investmentID string) (string, bool) {
	cpf, ok := s.owner[investmentID]
	return cpf, ok
}

// Transactions devuelve una copia ordenada por fecha.
func (s *Store) Transactions(cpf string) ([]Transaction, bool) {
	if _, ok := s.customers[cpf]; !ok {
		return nil, false
	}
	out := append([]Transaction{}, s.transactions[cpf]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.String() < out[j].Date.String() })
	return out, true
}

// InvestmentTransactions filtra las transacciones del cliente por inversión.
func (s *Store) InvestmentTransactions(cpf, investmentID string) []Transaction {
	all, _ := s.Transactions(cpf)
	out := make([]Transaction, 0, len(all))
	for _, tx := range all {
		if tx.InvestmentID == investmentID {
			out = append(out, tx)
		}
	}
	return out
}

// TransactionsBetween filtra por inversión y fecha, from y to inclusive.
func (s *Store) TransactionsBetween(cpf, investmentID string, from, to canonical.Date) []Transaction {
	lo, hi := from.String(), to.String()
	out := []Transaction{}
	for _, tx := range s.InvestmentTransactions(cpf, investmentID) {
		if d := tx.Date.String(); d >= lo && d <= hi {
			out = append(out, tx)
		}
	}
	return out
}

// Portfolios: inversiones agrupadas por CPF.
func (s *Store) Portfolios() map[string][]Investment {
	out := make(map[string][]Investment, len(s.investments))
	for cpf, list := range s.investments {
		out[cpf] = append([]Investment{}, list...)
	}
	return out
}
