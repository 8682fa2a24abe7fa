package entity

import "github.com/sangkips/popup-pos/pkg/utils"

// Bounds in yen. Keeping every total below MaxTotal means unit price ×
// quantity and the list sum can never overflow int64.
const (
	MaxUnitPrice int64 = 10_000_000
	MaxTotal     int64 = 1_000_000_000
)

// PurchaseItem is one line of the in-session purchase list.
// Identity is ID; Barcode is the merge key for repeated adds.
type PurchaseItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Barcode   string `json:"barcode"`
	UnitPrice int64  `json:"unitPrice"` // yen
	Quantity  int    `json:"quantity"`
	ProductID *int64 `json:"productId,omitempty"`
}

// Subtotal returns unitPrice × quantity
func (i *PurchaseItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// PurchaseList is the ordered, pre-submission collection of items
type PurchaseList struct {
	Items []PurchaseItem `json:"items"`
}

// Fits reports whether adding barcode at unitPrice keeps the list within
// MaxTotal. A repeated barcode is charged at its existing unit price.
func (l *PurchaseList) Fits(barcode string, unitPrice int64) bool {
	for i := range l.Items {
		if l.Items[i].Barcode == barcode {
			unitPrice = l.Items[i].UnitPrice
			break
		}
	}
	if unitPrice <= 0 || unitPrice > MaxUnitPrice {
		return false
	}
	return l.Total() <= MaxTotal-unitPrice
}

// Add merges into an existing entry with the same barcode or appends a new one.
// It returns the affected entry. Callers check Fits first.
func (l *PurchaseList) Add(name, barcode string, unitPrice int64, productID *int64) PurchaseItem {
	for i := range l.Items {
		if l.Items[i].Barcode == barcode {
			l.Items[i].Quantity++
			return l.Items[i]
		}
	}

	item := PurchaseItem{
		ID:        utils.NewItemID(),
		Name:      name,
		Barcode:   barcode,
		UnitPrice: unitPrice,
		Quantity:  1,
		ProductID: productID,
	}
	l.Items = append(l.Items, item)
	return item
}

// Total is Σ unitPrice × quantity over the current entries. It is advisory;
// the backend's TransactionResult is authoritative.
func (l *PurchaseList) Total() int64 {
	var total int64
	for i := range l.Items {
		total += l.Items[i].Subtotal()
	}
	return total
}

// Len returns the number of distinct entries
func (l *PurchaseList) Len() int {
	return len(l.Items)
}

// IsEmpty reports whether the list has no entries
func (l *PurchaseList) IsEmpty() bool {
	return len(l.Items) == 0
}

// Clear removes every entry
func (l *PurchaseList) Clear() {
	l.Items = nil
}

// Snapshot returns a copy safe to hand out of a locked section
func (l *PurchaseList) Snapshot() []PurchaseItem {
	out := make([]PurchaseItem, len(l.Items))
	copy(out, l.Items)
	return out
}
