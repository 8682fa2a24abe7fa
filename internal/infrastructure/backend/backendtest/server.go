// Package backendtest provides an in-process fake of the inventory backend.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Product is a catalogue entry served by the fake, in the backend's wire shape
type Product struct {
	PrdID int64  `json:"prd_id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Item and Transaction mirror what the backend receives on /api/transaction
type Item struct {
	PrdID    int64  `json:"PRD_ID"`
	PrdCode  string `json:"PRD_CODE"`
	PrdName  string `json:"PRD_NAME"`
	PrdPrice int64  `json:"PRD_PRICE"`
	TaxCD    string `json:"TAX_CD"`
	PrdCount int    `json:"PRD_COUNT"`
}

type Transaction struct {
	EmpCD       string `json:"EMP_CD"`
	StoreCD     string `json:"STORE_CD"`
	PosNo       string `json:"POS_NO"`
	TotalAmt    int64  `json:"TOTAL_AMT"`
	TtlAmtExTax int64  `json:"TTL_AMT_EX_TAX"`
	Items       []Item `json:"ITEMS"`

	IdempotencyKey string `json:"-"`
}

// Server is a fake backend. Zero-value overrides mean "behave normally".
type Server struct {
	*httptest.Server

	mu                sync.Mutex
	products          map[string]Product
	lookupStatus      int
	lookupBody        string
	transactionStatus int
	transactionBody   string
	transactions      []Transaction
	lookups           []string
}

// New starts a fake backend that serves おーいお茶 under 4901777300446.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{products: map[string]Product{
		"4901777300446": {PrdID: 1, Code: "4901777300446", Name: "おーいお茶", Price: 150},
	}}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/barcode", s.handleBarcode)
	mux.HandleFunc("/api/transaction", s.handleTransaction)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// AddProduct registers a product
func (s *Server) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.Code] = p
}

// FailLookups makes /api/barcode answer with status and raw body
func (s *Server) FailLookups(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupStatus, s.lookupBody = status, body
}

// FailTransactions makes /api/transaction answer with status and raw body.
// Pass 0 to restore normal behaviour.
func (s *Server) FailTransactions(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactionStatus, s.transactionBody = status, body
}

// Transactions returns every transaction received so far
func (s *Server) Transactions() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transaction(nil), s.transactions...)
}

// Lookups returns every code looked up so far
func (s *Server) Lookups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lookups...)
}

func (s *Server) handleBarcode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.lookups = append(s.lookups, req.Code)
	status, body := s.lookupStatus, s.lookupBody
	p, ok := s.products[req.Code]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"not found"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(p)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var txn Transaction
	if err := json.NewDecoder(r.Body).Decode(&txn); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	txn.IdempotencyKey = r.Header.Get("Idempotency-Key")

	s.mu.Lock()
	s.transactions = append(s.transactions, txn)
	status, body := s.transactionStatus, s.transactionBody
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}

	// The backend recomputes totals from the lines it was sent.
	var total int64
	for _, it := range txn.Items {
		total += it.PrdPrice * int64(it.PrdCount)
	}
	_ = json.NewEncoder(w).Encode(map[string]int64{
		"totalPrice":      total,
		"totalPriceNoTax": total * 100 / 110,
	})
}
