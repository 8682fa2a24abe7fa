package entity

// Product is one backend answer to one barcode query. It is not persisted.
type Product struct {
	ProductID int64  `json:"productId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
}
