package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"fintrack/internal/core"
)

func newInput(category string) core.NewTransaction {
	m := core.NewMoney(85)
	return core.NewTransaction{
		Type:        core.Expense,
		Amount:      &m,
		Category:    category,
		Description: "Grocery Shopping",
		Date:        core.NewDate(2025, 5, 3),
	}
}

func TestCreateRejectsMissingCategoryBeforeRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Create(context.Background(), newInput(""))
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "category" {
		t.Fatalf("err = %v, want category validation error", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("server called %d times", n)
	}
}

func TestCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/transactions" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var in core.NewTransaction
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(core.Transaction{
			ID: 7, Type: in.Type, Amount: *in.Amount, Category: in.Category,
			Description: in.Description, Date: in.Date, UserID: 1,
		})
	}))
	defer srv.Close()

	tx, err := New(srv.URL, nil).Create(context.Background(), newInput("Groceries"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.ID != 7 || tx.Amount.String() != "85" || tx.Date.String() != "2025-05-03" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}

func TestCreateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"database unavailable"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Create(context.Background(), newInput("Groceries"))
	if !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("err = %v, want ErrCreateFailed", err)
	}
}

func TestList(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantLen int
		wantErr error
	}{
		{"ok", http.StatusOK, `[{"id":1,"type":"income","amount":5000,"category":"Salary","description":"Monthly Salary","date":"2025-05-01","user_id":1}]`, 1, nil},
		{"empty array", http.StatusOK, `[]`, 0, nil},
		{"not found is empty", http.StatusNotFound, `{"detail":"No transactions found"}`, 0, nil},
		{"server error", http.StatusInternalServerError, ``, 0, ErrFetchFailed},
		{"bad body", http.StatusOK, `{`, 0, ErrFetchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("userId"); got != "1" {
					t.Errorf("userId = %q", got)
				}
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			uid := int64(1)
			txs, err := New(srv.URL, nil).List(context.Background(), &uid)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if txs == nil || len(txs) != tt.wantLen {
				t.Fatalf("txs = %v, want len %d", txs, tt.wantLen)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusNoContent, nil},
		{http.StatusOK, nil},
		{http.StatusNotFound, core.ErrNotFound},
		{http.StatusBadGateway, ErrDeleteFailed},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/transactions/42" {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
			w.WriteHeader(tt.status)
		}))
		err := New(srv.URL, nil).Delete(context.Background(), 42)
		srv.Close()
		if tt.wantErr == nil && err != nil {
			t.Fatalf("status %d: unexpected error %v", tt.status, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Fatalf("status %d: err = %v, want %v", tt.status, err, tt.wantErr)
		}
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, nil)
	if _, err := c.List(context.Background(), nil); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("list err = %v", err)
	}
	if err := c.Delete(context.Background(), 1); !errors.Is(err, ErrDeleteFailed) {
		t.Fatalf("delete err = %v", err)
	}
}
