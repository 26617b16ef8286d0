package handlers

import (
	"time"

	"github.com/rschio/ledger/internal/core/account"
)

type TransactionsReq struct {
	Value       int64  `json:"valor"`
	Kind        string `json:"tipo"`
	Description string `json:"descricao"`
}

type TransactionsResp struct {
	Limit   int64 `json:"limite"`
	Balance int64 `json:"saldo"`
}

type Balance struct {
	Total int64     `json:"total"`
	Limit int64     `json:"limite"`
	Date  time.Time `json:"data_extrato"`
}

type StatementResp struct {
	Balance          Balance       `json:"saldo"`
	LastTransactions []Transaction `json:"ultimas_transacoes"`
}

type Transaction struct {
	Value       int64     `json:"valor"`
	Kind        string    `json:"tipo"`
	Description string    `json:"descricao"`
	Date        time.Time `json:"realizada_em"`
}

func toStatementResp(s account.Statement) StatementResp {
	return StatementResp{
		Balance: Balance{
			Total: s.Balance,
			Limit: s.Limit,
			Date:  s.Date,
		},
		LastTransactions: toTransactions(s.LastTransactions),
	}
}

func toTransactions(ts []account.Transaction) []Transaction {
	slice := make([]Transaction, len(ts))
	for i, t := range ts {
		slice[i] = toTransaction(t)
	}
	return slice
}

func toTransaction(t account.Transaction) Transaction {
	return Transaction{
		Value:       t.Value,
		Kind:        t.Kind.String(),
		Description: t.Description,
		Date:        t.Date,
	}
}
