package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rschio/ledger/internal/core/account"
	"github.com/rschio/ledger/internal/core/account/store/accountmem"
	"go.opentelemetry.io/otel"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	provisions := []account.Provision{
		{ID: 1, Limit: 100000},
		{ID: 2, Limit: 1000},
	}

	server := NewServer(log, account.NewCore(accountmem.NewStore(log, provisions)))
	httpServer := httptest.NewServer(APIMux(server, otel.GetTracerProvider().Tracer("")))
	t.Cleanup(httpServer.Close)

	return httpServer
}

func post(t *testing.T, url, contentType, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, contentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestTransactions(t *testing.T) {
	httpServer := newTestServer(t)

	id := 1
	path := httpServer.URL + fmt.Sprintf("/clientes/%d/transacoes", id)
	data := `{"valor":1000,"tipo":"c","descricao":"descricao"}`

	resp := post(t, path, "application/json", data)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got wrong status code: %v", resp.StatusCode)
	}

	var tresp TransactionsResp
	if err := json.NewDecoder(resp.Body).Decode(&tresp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if tresp.Limit != 100000 {
		t.Fatalf("got limit %v want %v", tresp.Limit, 100000)
	}
	if tresp.Balance != 1000 {
		t.Fatalf("got balance %v want %v", tresp.Balance, 1000)
	}
}

func TestTransactionsID(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		wantedCode int
	}{
		{"invalid string", "not_number", 404},
		{"invalid id", "-1", 404},
		{"id not found", "6", 404},
		{"good id", "1", 200},
	}

	httpServer := newTestServer(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := httpServer.URL + fmt.Sprintf("/clientes/%s/transacoes", tt.id)
			data := `{"valor":1000,"tipo":"c","descricao":"descricao"}`

			resp := post(t, path, "application/json", data)
			if resp.StatusCode != tt.wantedCode {
				t.Fatalf("got wrong status code: %v, want: %v", resp.StatusCode, tt.wantedCode)
			}
		})
	}
}

func TestTransactionsBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		data        string
		wantedCode  int
	}{
		{"debit within limit", "application/json", `{"valor":1000,"tipo":"d","descricao":"ok"}`, 200},
		{"debit over limit", "application/json", `{"valor":1001,"tipo":"d","descricao":"no"}`, 422},
		{"charset", "application/json; charset=utf-8", `{"valor":1,"tipo":"c","descricao":"ok"}`, 200},
		{"zero value", "application/json", `{"valor":0,"tipo":"c","descricao":"zero"}`, 422},
		{"bad kind", "application/json", `{"valor":1,"tipo":"x","descricao":"kind"}`, 422},
		{"null description", "application/json", `{"valor":1,"tipo":"c","descricao":null}`, 422},
		{"long description", "application/json", `{"valor":1,"tipo":"c","descricao":"12345678901"}`, 422},
		{"fractional value", "application/json", `{"valor":1.5,"tipo":"c","descricao":"frac"}`, 400},
		{"not json", "application/json", `valor=1`, 400},
		{"wrong content type", "text/plain", `{"valor":1,"tipo":"c","descricao":"ok"}`, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpServer := newTestServer(t)

			resp := post(t, httpServer.URL+"/clientes/2/transacoes", tt.contentType, tt.data)
			if resp.StatusCode != tt.wantedCode {
				t.Fatalf("got wrong status code: %v, want: %v", resp.StatusCode, tt.wantedCode)
			}
		})
	}
}

func TestTransactionsUnknownAccount(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		data        string
	}{
		{"valid body", "application/json", `{"valor":1,"tipo":"c","descricao":"ok"}`},
		{"zero value", "application/json", `{"valor":0,"tipo":"c","descricao":"x"}`},
		{"bad kind", "application/json", `{"valor":1,"tipo":"x","descricao":""}`},
		{"fractional value", "application/json", `{"valor":1.5,"tipo":"c","descricao":"frac"}`},
		{"not json", "application/json", `valor=1`},
		{"wrong content type", "text/plain", `{"valor":1,"tipo":"c","descricao":"ok"}`},
	}

	httpServer := newTestServer(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := post(t, httpServer.URL+"/clientes/99/transacoes", tt.contentType, tt.data)
			if resp.StatusCode != http.StatusNotFound {
				t.Fatalf("got wrong status code: %v, want: %v", resp.StatusCode, http.StatusNotFound)
			}
		})
	}
}

func TestStatement(t *testing.T) {
	httpServer := newTestServer(t)

	resp, err := http.Get(httpServer.URL + "/clientes/2/extrato")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got wrong status code: %v", resp.StatusCode)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if string(raw["ultimas_transacoes"]) != "[]" {
		t.Fatalf("untouched account should list no transactions, got %s", raw["ultimas_transacoes"])
	}

	for i, data := range []string{
		`{"valor":400,"tipo":"d","descricao":"one"}`,
		`{"valor":700,"tipo":"d","descricao":"two"}`,
		`{"valor":2000,"tipo":"c","descricao":"three"}`,
	} {
		resp := post(t, httpServer.URL+"/clientes/2/transacoes", "application/json", data)
		if want := []int{200, 422, 200}[i]; resp.StatusCode != want {
			t.Fatalf("transaction %d: got status %d want %d", i, resp.StatusCode, want)
		}
	}

	resp2, err := http.Get(httpServer.URL + "/clientes/2/extrato")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp2.Body.Close()

	var sresp StatementResp
	if err := json.NewDecoder(resp2.Body).Decode(&sresp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if sresp.Balance.Total != 1600 || sresp.Balance.Limit != 1000 {
		t.Fatalf("wrong balance: %+v", sresp.Balance)
	}
	if sresp.Balance.Date.IsZero() {
		t.Fatal("statement date not set")
	}
	if len(sresp.LastTransactions) != 2 {
		t.Fatalf("got %d transactions want 2", len(sresp.LastTransactions))
	}
	first := sresp.LastTransactions[0]
	if first.Value != 2000 || first.Kind != "c" || first.Description != "three" || first.Date.IsZero() {
		t.Fatalf("wrong newest transaction: %+v", first)
	}

	resp3, err := http.Get(httpServer.URL + "/clientes/9/extrato")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Fatalf("got status %d want %d", resp3.StatusCode, http.StatusNotFound)
	}
}

func TestLiveness(t *testing.T) {
	httpServer := newTestServer(t)

	resp, err := http.Get(httpServer.URL + "/liveness")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got wrong status code: %v", resp.StatusCode)
	}
}
