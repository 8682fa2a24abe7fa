package request

import "github.com/sangkips/popup-pos/internal/domain/entity"

// BarcodeRequest is the body of POST /api/barcode
type BarcodeRequest struct {
	Code string `json:"code"`
}

// TransactionLineRequest is one item line of POST /api/transaction
type TransactionLineRequest struct {
	ProductID int64  `json:"productId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	TaxCode   string `json:"taxCode"`
	Count     int    `json:"count"`
}

// TransactionRequest is the body of POST /api/transaction. Values are passed
// through unchecked; the backend owns pricing and tax rules.
type TransactionRequest struct {
	EmployeeCode     string                   `json:"employeeCode"`
	StoreCode        string                   `json:"storeCode"`
	PosNumber        string                   `json:"posNumber"`
	TotalAmount      int64                    `json:"totalAmount"`
	TotalAmountExTax int64                    `json:"totalAmountExTax"`
	Lines            []TransactionLineRequest `json:"lines"`
}

// ToEntity converts the body to the domain request
func (r *TransactionRequest) ToEntity() *entity.TransactionRequest {
	lines := make([]entity.TransactionLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = entity.TransactionLine{
			ProductID: l.ProductID,
			Code:      l.Code,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			TaxCode:   l.TaxCode,
			Count:     l.Count,
		}
	}
	return &entity.TransactionRequest{
		EmployeeCode:     r.EmployeeCode,
		StoreCode:        r.StoreCode,
		PosNumber:        r.PosNumber,
		TotalAmount:      r.TotalAmount,
		TotalAmountExTax: r.TotalAmountExTax,
		Lines:            lines,
	}
}
