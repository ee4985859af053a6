package mockdata

import (
	"github.com/dropDatabas3/ofbmock/internal/canonical"
	"github.com/shopspring/decimal"
)

const currencyBRL = "BRL"

var incomeTaxRate = decimal.RequireFromString("0.15")

type Amount struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func brl(d decimal.Decimal) Amount { return Amount{Amount: d, Currency: currencyBRL} }

// Balance es la posición de una inversión a una fecha de referencia.
type Balance struct {
	ReferenceDate      canonical.Date `json:"referenceDate"`
	GrossAmount        Amount         `json:"grossAmount"`
	NetAmount          Amount         `json:"netAmount"`
	IncomeTaxProvision Amount         `json:"incomeTaxProvision"`
	// renda fixa bancária y de crédito
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	// fundos
	QuotaQuantity        *decimal.Decimal `json:"quotaQuantity,omitempty"`
	QuotaGrossPriceValue *Amount          `json:"quotaGrossPriceValue,omitempty"`
}

// Balance calcula la posición de la inversión: bruto = valor actual (o el
// aplicado si no hay), provisión de IR = 15% de la ganancia, neto = bruto - IR.
// Es determinista: la misma inversión y fecha dan siempre el mismo saldo.
func (s *Store) Balance(investmentID string, ref canonical.Date) (Balance, bool) {
	inv, ok := s.byID[investmentID]
	if !ok {
		return Balance{}, false
	}
	gross := inv.Amount
	if inv.CurrentValue != nil {
		gross = *inv.CurrentValue
	}
	tax := decimal.Zero
	if profit := gross.Sub(inv.Amount); profit.IsPositive() {
		tax = profit.Mul(incomeTaxRate).Round(2)
	}
	net := gross.Sub(tax)

	b := Balance{
		ReferenceDate:      ref,
		GrossAmount:        brl(gross),
		NetAmount:          brl(net),
		IncomeTaxProvision: brl(tax),
	}
	qty := decimal.NewFromInt(1)
	if inv.Quantity != nil && inv.Quantity.IsPositive() {
		qty = *inv.Quantity
	}
	switch FamilyOf(inv.ProductType) {
	case FamilyBankFixedIncomes, FamilyCreditFixedIncomes:
		b.Quantity = &qty
	case FamilyFunds:
		price := brl(gross.DivRound(qty, 8))
		b.QuotaQuantity = &qty
		b.QuotaGrossPriceValue = &price
	}
	return b, true
}
