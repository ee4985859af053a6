// Package openfinance contiene los envelopes de respuesta de las APIs
// /open-banking.
package openfinance

// DataResponse es el envelope {"data": ...} de Open Finance.
type DataResponse struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta acompaña los listados. El mock no pagina: TotalPages es siempre 1.
type Meta struct {
	TotalRecords int `json:"totalRecords"`
	TotalPages   int `json:"totalPages"`
}

// NewList arma el envelope de un listado con su meta.
func NewList[T any](items []T) DataResponse {
	if items == nil {
		items = []T{}
	}
	return DataResponse{
		Data: items,
		Meta: &Meta{TotalRecords: len(items), TotalPages: 1},
	}
}
