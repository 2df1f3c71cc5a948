package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rschio/bank/internal/core/account"
	"github.com/rschio/bank/internal/core/bank"
	"github.com/rschio/bank/internal/core/bank/store/bankfile"
	"go.opentelemetry.io/otel/trace"
)

func APIMux(s *Server, tracer trace.Tracer) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.middlewareWeb(tracer, h))
	}

	handle("POST /customers", s.CreateCustomer)
	handle("GET /customers", s.ListCustomers)
	handle("GET /customers/{pid}", s.Customer)
	handle("PUT /customers/{pid}", s.RenameCustomer)
	handle("DELETE /customers/{pid}", s.DeleteCustomer)

	handle("POST /customers/{pid}/accounts", s.CreateAccount)
	handle("GET /customers/{pid}/accounts/{id}", s.Account)
	handle("DELETE /customers/{pid}/accounts/{id}", s.CloseAccount)
	handle("POST /customers/{pid}/accounts/{id}/deposits", s.Deposit)
	handle("POST /customers/{pid}/accounts/{id}/withdrawals", s.Withdraw)
	handle("GET /customers/{pid}/accounts/{id}/transactions", s.Transactions)
	handle("GET /customers/{pid}/accounts/{id}/report", s.Report)
	handle("POST /customers/{pid}/accounts/{id}/report", s.SaveReport)

	handle("POST /bank/export", s.Export)
	handle("POST /bank/import", s.Import)

	return mux
}

var errNoReportDir = errors.New("report directory not configured")

type Server struct {
	log       *slog.Logger
	bank      *bank.Bank
	store     bank.Store
	reportDir string
	validate  *validator.Validate
}

// NewServer serves b. Export and import use store. Saved reports go to
// reportDir.
func NewServer(log *slog.Logger, b *bank.Bank, store bank.Store, reportDir string) *Server {
	return &Server{
		log:       log,
		bank:      b,
		store:     store,
		reportDir: reportDir,
		validate:  newValidator(),
	}
}

func (s *Server) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusCreated,
		func(ctx context.Context, _ params, req NewCustomerReq) (CustomerResp, error) {
			if err := s.bank.CreateCustomer(ctx, req.FirstName, req.LastName, req.PersonalID); err != nil {
				return CustomerResp{}, err
			}
			return CustomerResp(req), nil
		},
	)
}

func (s *Server) ListCustomers(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusOK,
		func(ctx context.Context, _ params, _ struct{}) ([]CustomerResp, error) {
			list := []CustomerResp{}
			for c := range s.bank.Customers(ctx) {
				list = append(list, toCustomerResp(c))
			}
			return list, nil
		},
	)
}

func (s *Server) Customer(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusOK,
		func(ctx context.Context, p params, _ struct{}) (StatementResp, error) {
			st, err := s.bank.Customer(ctx, p.personalID)
			if err != nil {
				return StatementResp{}, err
			}
			return toStatementResp(st), nil
		},
	)
}

func (s *Server) RenameCustomer(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusOK,
		func(ctx context.Context, p params, req RenameCustomerReq) (StatementResp, error) {
			if err := s.bank.RenameCustomer(ctx, req.FirstName, req.LastName, p.personalID); err != nil {
				return StatementResp{}, err
			}
			st, err := s.bank.Customer(ctx, p.personalID)
			if err != nil {
				return StatementResp{}, err
			}
			return toStatementResp(st), nil
		},
	)
}

func (s *Server) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusOK,
		func(ctx context.Context, p params, _ struct{}) (StatementResp, error) {
			st, err := s.bank.DeleteCustomer(ctx, p.personalID)
			if err != nil {
				return StatementResp{}, err
			}
			return toStatementResp(st), nil
		},
	)
}

func (s *Server) CreateAccount(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusCreated,
		func(ctx context.Context, p params, req NewAccountReq) (NewAccountResp, error) {
			kind, err := account.ParseKind(req.Kind)
			if err != nil {
				return NewAccountResp{}, fmt.Errorf("%w: %w", bank.ErrInvalidArgument, err)
			}

			id, err := s.bank.OpenAccount(ctx, p.personalID, kind)
			if err != nil {
				return NewAccountResp{}, err
			}
			return NewAccountResp{ID: id}, nil
		},
	)
}

func (s *Server) Account(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusOK,
		func(ctx context.Context, p params, _ struct{}) (AccountResp, error) {
			line, err := s.bank.Account(ctx, p.personalID, p.accountID)
			if err != nil {
				return AccountResp{}, err
			}
			return AccountResp{ID: p.accountID, Account: line}, nil
		},
	)
}

func (s *Server) CloseAccount(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusOK,
		func(ctx context.Context, p params, _ struct{}) (AccountResp, error) {
			line, err := s.bank.CloseAccount(ctx, p.personalID, p.accountID)
			if err != nil {
				return AccountResp{}, err
			}
			return AccountResp{ID: p.accountID, Account: line}, nil
		},
	)
}

func (s *Server) Deposit(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusOK,
		func(ctx context.Context, p params, req AmountReq) (AccountResp, error) {
			if err := s.bank.Deposit(ctx, p.personalID, p.accountID, req.Amount); err != nil {
				return AccountResp{}, err
			}
			return s.accountLine(ctx, p)
		},
	)
}

func (s *Server) Withdraw(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusOK,
		func(ctx context.Context, p params, req AmountReq) (AccountResp, error) {
			if err := s.bank.Withdraw(ctx, p.personalID, p.accountID, req.Amount); err != nil {
				return AccountResp{}, err
			}
			return s.accountLine(ctx, p)
		},
	)
}

func (s *Server) accountLine(ctx context.Context, p params) (AccountResp, error) {
	line, err := s.bank.Account(ctx, p.personalID, p.accountID)
	if err != nil {
		return AccountResp{}, err
	}
	return AccountResp{ID: p.accountID, Account: line}, nil
}

func (s *Server) Transactions(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusOK,
		func(ctx context.Context, p params, _ struct{}) ([]TransactionResp, error) {
			ts, err := s.bank.Transactions(ctx, p.personalID, p.accountID)
			if err != nil {
				return nil, err
			}
			return toTransactionsResp(ts), nil
		},
	)
}

// Report writes the transaction export of an account as plain text.
func (s *Server) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := getParams(r)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	report, err := s.bank.TransactionReport(ctx, p.personalID, p.accountID)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := report.WriteTo(w); err != nil {
		s.log.ErrorContext(ctx, "write report", "ERROR", err)
	}
}

// SaveReport writes the transaction export of an account to a file in the
// report directory.
func (s *Server) SaveReport(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusCreated,
		func(ctx context.Context, p params, _ struct{}) (ReportResp, error) {
			if s.reportDir == "" {
				return ReportResp{}, errNoReportDir
			}

			report, err := s.bank.TransactionReport(ctx, p.personalID, p.accountID)
			if err != nil {
				return ReportResp{}, err
			}

			path := filepath.Join(s.reportDir, fmt.Sprintf("transactions-%d.txt", p.accountID))
			if err := bankfile.WriteReport(path, report); err != nil {
				return ReportResp{}, err
			}
			s.log.InfoContext(ctx, "report written", "path", path)

			return ReportResp{Path: path}, nil
		},
	)
}

func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusNoContent,
		func(ctx context.Context, _ params, _ struct{}) (struct{}, error) {
			return struct{}{}, s.bank.Export(ctx, s.store)
		},
	)
}

func (s *Server) Import(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s, http.StatusNoContent,
		func(ctx context.Context, _ params, _ struct{}) (struct{}, error) {
			return struct{}{}, s.bank.Import(ctx, s.store)
		},
	)
}

// params are the path values of a route. accountID is bank.NoAccount on
// routes without an account.
type params struct {
	personalID string
	accountID  int
}

func getParams(r *http.Request) (params, error) {
	p := params{
		personalID: r.PathValue("pid"),
		accountID:  bank.NoAccount,
	}

	if sID := r.PathValue("id"); sID != "" {
		id, err := strconv.Atoi(sID)
		if err != nil {
			return params{}, fmt.Errorf("%w: account id %q", bank.ErrInvalidArgument, sID)
		}
		p.accountID = id
	}

	return p, nil
}

func serveJSON[Req any, Resp any](
	w http.ResponseWriter,
	r *http.Request,
	s *Server,
	status int,
	fn func(ctx context.Context, p params, req Req) (Resp, error),
) {
	ctx := r.Context()

	var req Req
	if hasBody(r) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			s.log.ErrorContext(ctx, "request must be a json", "content_type", ct)
			http.Error(w, "request must be a json", http.StatusBadRequest)
			return
		}

		err := json.NewDecoder(r.Body).Decode(&req)
		r.Body.Close()
		if err != nil {
			s.respondError(ctx, w, fmt.Errorf("%w: decoding json: %w", bank.ErrInvalidArgument, err))
			return
		}
	}

	if err := s.validateReq(req); err != nil {
		s.respondError(ctx, w, err)
		return
	}

	p, err := getParams(r)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	resp, err := fn(ctx, p, req)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	bs, err := json.Marshal(resp)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to encode response", "ERROR", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(bs)
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.ContentLength != 0
	}
	return false
}

func (s *Server) respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors

	switch {
	case errors.As(err, &verrs):
		s.log.InfoContext(ctx, "invalid request", "ERROR", err)
		http.Error(w, validationMessage(verrs), http.StatusBadRequest)

	case errors.Is(err, bank.ErrNotFound):
		s.log.InfoContext(ctx, "not found", "ERROR", err)
		http.Error(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, bank.ErrInvalidArgument):
		s.log.InfoContext(ctx, "invalid argument", "ERROR", err)
		http.Error(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, bank.ErrTransactionDenied):
		s.log.InfoContext(ctx, "transaction denied", "ERROR", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)

	case errors.Is(err, bank.ErrAlreadyExists),
		errors.Is(err, errNoReportDir),
		errors.Is(err, bank.ErrNothingToExport),
		errors.Is(err, bank.ErrNoSnapshot):
		s.log.InfoContext(ctx, "conflict", "ERROR", err)
		http.Error(w, err.Error(), http.StatusConflict)

	default:
		s.log.ErrorContext(ctx, "internal error", "ERROR", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
