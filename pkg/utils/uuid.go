package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var nonDigits = regexp.MustCompile(`[^\d]`)

// NewItemID returns an opaque token identifying a purchase list entry
func NewItemID() string {
	return uuid.New().String()
}

// NewIdempotencyKey returns a client-side key for a transaction submission
func NewIdempotencyKey() string {
	return "txn-" + uuid.New().String()
}

// GenerateReceiptNo generates a receipt number stamped with the terminal and date
func GenerateReceiptNo(posNumber string, at time.Time) string {
	return "R" + posNumber + "-" + at.Format("20060102") + "-" + strings.ToUpper(uuid.New().String()[:6])
}

// ParsePrice strips every non-digit character and parses what remains.
// "¥1,500" yields 1500. ok is false when nothing numeric remains.
func ParsePrice(s string) (int64, bool) {
	digits := nonDigits.ReplaceAllString(s, "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
