package entity

// ReceiptHeader holds the store header printed at the top of a receipt.
type ReceiptHeader struct {
	StoreName string `json:"storeName"`
	StoreCode string `json:"storeCode,omitempty"`
	PosNumber string `json:"posNumber,omitempty"`
}

// ReceiptItem represents a single line item on a receipt.
type ReceiptItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Total     int64  `json:"total"`
}

// Receipt is a value object composed from a confirmed transaction at print time.
// Totals come from the backend result, never from the client-side list.
type Receipt struct {
	Header    ReceiptHeader `json:"header"`
	ReceiptNo string        `json:"receiptNo"`
	Date      string        `json:"date"`
	Employee  string        `json:"employee,omitempty"`
	Items     []ReceiptItem `json:"items"`
	Tax       int64         `json:"tax"`
	TotalEx   int64         `json:"totalExTax"`
	Total     int64         `json:"total"`
}
