package mockdata

import "strings"

// Familias de producto, con el mismo nombre que el segmento de la API
// /open-banking/<familia>/v1.
const (
	FamilyBankFixedIncomes   = "bank-fixed-incomes"
	FamilyCreditFixedIncomes = "credit-fixed-incomes"
	FamilyFunds              = "funds"
	FamilyVariableIncomes    = "variable-incomes"
	FamilyTreasureTitles     = "treasure-titles"
)

// Families lista las familias servidas por el mock.
func Families() []string {
	return []string{
		FamilyBankFixedIncomes,
		FamilyCreditFixedIncomes,
		FamilyFunds,
		FamilyVariableIncomes,
		FamilyTreasureTitles,
	}
}

var familyByProduct = map[string]string{
	"CDB": FamilyBankFixedIncomes,
	"RDB": FamilyBankFixedIncomes,
	"LCI": FamilyBankFixedIncomes,
	"LCA": FamilyBankFixedIncomes,

	"CRI":              FamilyCreditFixedIncomes,
	"CRA":              FamilyCreditFixedIncomes,
	"DEBENTURE":        FamilyCreditFixedIncomes,
	"LETRA_FINANCEIRA": FamilyCreditFixedIncomes,

	"ACAO": FamilyVariableIncomes,
	"BDR":  FamilyVariableIncomes,
	"ETF":  FamilyVariableIncomes,
	"FII":  FamilyVariableIncomes,
}

// FamilyOf devuelve la familia de un productType; "" si no se conoce.
// Los prefijos FUNDO_ y TESOURO_ cubren todas las clases de fondos y títulos públicos.
func FamilyOf(productType string) string {
	pt := strings.ToUpper(strings.TrimSpace(productType))
	switch {
	case strings.HasPrefix(pt, "FUNDO_"):
		return FamilyFunds
	case strings.HasPrefix(pt, "TESOURO_"):
		return FamilyTreasureTitles
	}
	return familyByProduct[pt]
}

// InvestmentsIn devuelve las inversiones del cliente de una familia; ok=false
// si el cliente no existe.
func (s *Store) InvestmentsIn(cpf, family string) ([]Investment, bool) {
	all, ok := s.Investments(cpf)
	if !ok {
		return nil, false
	}
	out := make([]Investment, 0, len(all))
	for _, inv := range all {
		if FamilyOf(inv.ProductType) == family {
			out = append(out, inv)
		}
	}
	return out, true
}
