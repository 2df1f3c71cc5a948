package handlers

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rschio/bank/internal/core/account"
	"github.com/rschio/bank/internal/core/bank"
	"github.com/rschio/bank/internal/core/money"
)

type NewCustomerReq struct {
	PersonalID string `json:"personal_id" validate:"required,max=64"`
	FirstName  string `json:"first_name" validate:"max=100"`
	LastName   string `json:"last_name" validate:"max=100"`
}

// RenameCustomerReq leaves a name unchanged when it is empty.
type RenameCustomerReq struct {
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type NewAccountReq struct {
	Kind string `json:"kind" validate:"required,oneof=savings credit"`
}

type AmountReq struct {
	Amount money.Money `json:"amount"`
}

type CustomerResp struct {
	PersonalID string `json:"personal_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

type StatementResp struct {
	PersonalID string   `json:"personal_id"`
	Customer   string   `json:"customer"`
	Accounts   []string `json:"accounts"`
}

type NewAccountResp struct {
	ID int `json:"id"`
}

type AccountResp struct {
	ID      int    `json:"id"`
	Account string `json:"account"`
}

type ReportResp struct {
	Path string `json:"path"`
}

type TransactionResp struct {
	ID      string      `json:"id"`
	Date    time.Time   `json:"date"`
	Amount  money.Money `json:"amount"`
	Balance money.Money `json:"balance"`
	Line    string      `json:"line"`
}

func toCustomerResp(c bank.CustomerSummary) CustomerResp {
	return CustomerResp{
		PersonalID: c.PersonalID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
	}
}

func toStatementResp(s bank.Statement) StatementResp {
	accounts := s.Accounts
	if accounts == nil {
		accounts = []string{}
	}
	return StatementResp{
		PersonalID: s.PersonalID,
		Customer:   s.Header,
		Accounts:   accounts,
	}
}

func toTransactionsResp(ts []account.Transaction) []TransactionResp {
	slice := make([]TransactionResp, len(ts))
	for i, t := range ts {
		slice[i] = TransactionResp{
			ID:      t.ID.String(),
			Date:    t.Date,
			Amount:  t.Amount,
			Balance: t.Balance,
			Line:    t.String(),
		}
	}
	return slice
}

// newValidator reports fields by their json name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) validateReq(req any) error {
	if reflect.Indirect(reflect.ValueOf(req)).Kind() != reflect.Struct {
		return nil
	}
	return s.validate.Struct(req)
}

func validationMessage(errs validator.ValidationErrors) string {
	msgs := make([]string, len(errs))
	for i, fe := range errs {
		msgs[i] = fe.Field() + ": " + fe.Tag()
	}
	return "invalid request: " + strings.Join(msgs, ", ")
}
