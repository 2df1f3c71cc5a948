package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rschio/bank/internal/core/bank"
	"github.com/rschio/bank/internal/core/bank/store/bankfile"
	"github.com/rschio/bank/internal/core/money"
	"go.opentelemetry.io/otel"
)

type testServer struct {
	url       string
	reportDir string
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	store := bankfile.NewStore(log, filepath.Join(dir, "bank.dat"))
	server := NewServer(log, bank.New(), store, filepath.Join(dir, "reports"))
	httpServer := httptest.NewServer(APIMux(server, otel.GetTracerProvider().Tracer("")))
	t.Cleanup(httpServer.Close)

	return testServer{url: httpServer.URL, reportDir: filepath.Join(dir, "reports")}
}

func (s testServer) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.url+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, bs
}

func (s testServer) must(t *testing.T, method, path, body string, want int) []byte {
	t.Helper()
	got, bs := s.do(t, method, path, body)
	if got != want {
		t.Fatalf("%s %s: got status %d want %d: %s", method, path, got, want, bs)
	}
	return bs
}

func TestSavingsFlow(t *testing.T) {
	s := newTestServer(t)

	s.must(t, "POST", "/customers", `{"personal_id":"9001011234","first_name":"Ann","last_name":"Lee"}`, http.StatusCreated)

	var acc NewAccountResp
	bs := s.must(t, "POST", "/customers/9001011234/accounts", `{"kind":"savings"}`, http.StatusCreated)
	if err := json.Unmarshal(bs, &acc); err != nil {
		t.Fatal(err)
	}
	if acc.ID != 1001 {
		t.Fatalf("got account id %d want 1001", acc.ID)
	}

	base := "/customers/9001011234/accounts/1001"
	s.must(t, "POST", base+"/deposits", `{"amount":"1000"}`, http.StatusOK)
	s.must(t, "POST", base+"/withdrawals", `{"amount":"200"}`, http.StatusOK)
	s.must(t, "POST", base+"/withdrawals", `{"amount":"100"}`, http.StatusOK)

	var ts []TransactionResp
	bs = s.must(t, "GET", base+"/transactions", "", http.StatusOK)
	if err := json.Unmarshal(bs, &ts); err != nil {
		t.Fatal(err)
	}

	var balances []money.Money
	for _, tr := range ts {
		balances = append(balances, tr.Balance)
	}
	want := []money.Money{money.MustParse("1000"), money.MustParse("800"), money.MustParse("698")}
	if diff := cmp.Diff(want, balances, cmp.Comparer(money.Money.Equal)); diff != "" {
		t.Fatalf("balances differ: %s", diff)
	}

	var st StatementResp
	bs = s.must(t, "GET", "/customers/9001011234", "", http.StatusOK)
	if err := json.Unmarshal(bs, &st); err != nil {
		t.Fatal(err)
	}
	if st.Customer != "9001011234 Ann Lee" || len(st.Accounts) != 1 {
		t.Fatalf("unexpected statement: %+v", st)
	}
	if !strings.HasPrefix(st.Accounts[0], "1001 ") || !strings.Contains(st.Accounts[0], "Sparkonto") {
		t.Fatalf("unexpected account line %q", st.Accounts[0])
	}
}

func TestReport(t *testing.T) {
	s := newTestServer(t)

	s.must(t, "POST", "/customers", `{"personal_id":"1"}`, http.StatusCreated)
	s.must(t, "POST", "/customers/1/accounts", `{"kind":"credit"}`, http.StatusCreated)
	s.must(t, "POST", "/customers/1/accounts/1001/withdrawals", `{"amount":"50"}`, http.StatusOK)

	bs := s.must(t, "GET", "/customers/1/accounts/1001/report", "", http.StatusOK)
	lines := strings.Split(strings.TrimSpace(string(bs)), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d report lines want 4: %q", len(lines), bs)
	}
	if lines[1] != "Account: 1001" {
		t.Fatalf("got %q want account line", lines[1])
	}

	path := filepath.Join(s.reportDir, "transactions-1001.txt")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("reading a report must not write a file: %v", err)
	}

	var rr ReportResp
	bs = s.must(t, "POST", "/customers/1/accounts/1001/report", "", http.StatusCreated)
	if err := json.Unmarshal(bs, &rr); err != nil {
		t.Fatal(err)
	}
	if rr.Path != path {
		t.Fatalf("got path %q want %q", rr.Path, path)
	}

	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report file: %v", err)
	}
	fileLines := strings.Split(strings.TrimSpace(string(written)), "\n")
	if diff := cmp.Diff(lines[1:], fileLines[1:]); diff != "" {
		t.Fatalf("report file differs from response: %s", diff)
	}

	s.must(t, "POST", "/customers/1/accounts/9999/report", "", http.StatusNotFound)
}

func TestSubCentAmounts(t *testing.T) {
	s := newTestServer(t)

	s.must(t, "POST", "/customers", `{"personal_id":"1"}`, http.StatusCreated)
	s.must(t, "POST", "/customers/1/accounts", `{"kind":"credit"}`, http.StatusCreated)

	for _, amount := range []string{"100.999", "0.004"} {
		for _, op := range []string{"deposits", "withdrawals"} {
			body := `{"amount":"` + amount + `"}`
			got, bs := s.do(t, "POST", "/customers/1/accounts/1001/"+op, body)
			if got != http.StatusBadRequest {
				t.Fatalf("%s %s: got status %d want %d: %s", op, amount, got, http.StatusBadRequest, bs)
			}
			if !strings.Contains(string(bs), "two decimals") {
				t.Fatalf("%s %s: response does not name the cause: %s", op, amount, bs)
			}
		}
	}

	var ts []TransactionResp
	bs := s.must(t, "GET", "/customers/1/accounts/1001/transactions", "", http.StatusOK)
	if err := json.Unmarshal(bs, &ts); err != nil {
		t.Fatal(err)
	}
	if len(ts) != 0 {
		t.Fatalf("rejected amounts were booked: %+v", ts)
	}
}

func TestExportImport(t *testing.T) {
	s := newTestServer(t)

	s.must(t, "POST", "/bank/export", "", http.StatusConflict)
	s.must(t, "POST", "/bank/import", "", http.StatusConflict)

	s.must(t, "POST", "/customers", `{"personal_id":"1","first_name":"A","last_name":"B"}`, http.StatusCreated)
	s.must(t, "POST", "/customers/1/accounts", `{"kind":"savings"}`, http.StatusCreated)
	s.must(t, "POST", "/bank/export", "", http.StatusNoContent)

	s.must(t, "DELETE", "/customers/1", "", http.StatusOK)
	s.must(t, "GET", "/customers/1", "", http.StatusNotFound)

	s.must(t, "POST", "/bank/import", "", http.StatusNoContent)

	var list []CustomerResp
	bs := s.must(t, "GET", "/customers", "", http.StatusOK)
	if err := json.Unmarshal(bs, &list); err != nil {
		t.Fatal(err)
	}
	want := []CustomerResp{{PersonalID: "1", FirstName: "A", LastName: "B"}}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Fatalf("customers differ: %s", diff)
	}

	var acc NewAccountResp
	bs = s.must(t, "POST", "/customers/1/accounts", `{"kind":"credit"}`, http.StatusCreated)
	if err := json.Unmarshal(bs, &acc); err != nil {
		t.Fatal(err)
	}
	if acc.ID != 1002 {
		t.Fatalf("got account id %d want 1002", acc.ID)
	}
}

func TestRenameAndClose(t *testing.T) {
	s := newTestServer(t)

	s.must(t, "POST", "/customers", `{"personal_id":"1","first_name":"A","last_name":"B"}`, http.StatusCreated)
	s.must(t, "POST", "/customers/1/accounts", `{"kind":"savings"}`, http.StatusCreated)

	var st StatementResp
	bs := s.must(t, "PUT", "/customers/1", `{"last_name":"C"}`, http.StatusOK)
	if err := json.Unmarshal(bs, &st); err != nil {
		t.Fatal(err)
	}
	if st.Customer != "1 A C" {
		t.Fatalf("got header %q want %q", st.Customer, "1 A C")
	}

	var acc AccountResp
	bs = s.must(t, "DELETE", "/customers/1/accounts/1001", "", http.StatusOK)
	if err := json.Unmarshal(bs, &acc); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(acc.Account, "1001 ") {
		t.Fatalf("unexpected closing line %q", acc.Account)
	}
	s.must(t, "GET", "/customers/1/accounts/1001", "", http.StatusNotFound)
}

func TestErrors(t *testing.T) {
	s := newTestServer(t)
	s.must(t, "POST", "/customers", `{"personal_id":"1"}`, http.StatusCreated)
	s.must(t, "POST", "/customers/1/accounts", `{"kind":"savings"}`, http.StatusCreated)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"duplicate customer", "POST", "/customers", `{"personal_id":"1"}`, http.StatusConflict},
		{"missing personal id", "POST", "/customers", `{"first_name":"A"}`, http.StatusBadRequest},
		{"bad json", "POST", "/customers", `{"personal_id":`, http.StatusBadRequest},
		{"unknown customer", "GET", "/customers/2", "", http.StatusNotFound},
		{"rename nothing", "PUT", "/customers/1", `{}`, http.StatusBadRequest},
		{"rename unknown", "PUT", "/customers/2", `{}`, http.StatusNotFound},
		{"unknown kind", "POST", "/customers/1/accounts", `{"kind":"gold"}`, http.StatusBadRequest},
		{"account of unknown customer", "POST", "/customers/2/accounts", `{"kind":"credit"}`, http.StatusNotFound},
		{"non numeric account", "GET", "/customers/1/accounts/abc", "", http.StatusBadRequest},
		{"unknown account", "GET", "/customers/1/accounts/9999", "", http.StatusNotFound},
		{"zero deposit", "POST", "/customers/1/accounts/1001/deposits", `{"amount":"0"}`, http.StatusBadRequest},
		{"negative withdrawal", "POST", "/customers/1/accounts/1001/withdrawals", `{"amount":"-5"}`, http.StatusBadRequest},
		{"overdraw savings", "POST", "/customers/1/accounts/1001/withdrawals", `{"amount":"1"}`, http.StatusUnprocessableEntity},
		{"amount as number", "POST", "/customers/1/accounts/1001/deposits", `{"amount":1}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, bs := s.do(t, tt.method, tt.path, tt.body)
			if got != tt.want {
				t.Fatalf("got status %d want %d: %s", got, tt.want, bs)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Post(s.url+"/customers", "text/plain", strings.NewReader(`{"personal_id":"1"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
