package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func budgetRequest(method, body string) *http.Request {
	r := httptest.NewRequest(method, "/api/budgets", strings.NewReader(body))
	return r.WithContext(context.WithValue(r.Context(), "user_id", int64(1)))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateBudgetRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad period", `{"category_id":7,"period":"weekly","limit_amount":"100"}`},
		{"empty period", `{"category_id":7,"limit_amount":"100"}`},
		{"zero limit", `{"category_id":7,"period":"monthly","limit_amount":"0"}`},
		{"negative limit", `{"category_id":7,"period":"monthly","limit_amount":"-5"}`},
	}
	handler := CreateBudget(nil) // rejected before the pool is touched
	for _, tc := range cases {
		w := httptest.NewRecorder()
		handler(w, budgetRequest(http.MethodPost, tc.body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, w.Code)
		}
	}
}

func TestUpdateBudgetRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad period", `{"period":"weekly","limit_amount":"100"}`},
		{"empty period", `{"limit_amount":"100"}`},
		{"zero limit", `{"period":"monthly","limit_amount":"0"}`},
		{"negative limit", `{"period":"monthly","limit_amount":"-5"}`},
	}
	handler := UpdateBudget(nil)
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r := withURLParam(budgetRequest(http.MethodPut, tc.body), "budget_id", "5")
		handler(w, r)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, w.Code)
		}
		if strings.Contains(w.Body.String(), "invalid budget id") {
			t.Errorf("%s: rejected on the id, not the payload", tc.name)
		}
	}
}
