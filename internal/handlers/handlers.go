// Package handlers exposes the ledger over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/rschio/ledger/internal/core/account"
	"github.com/rschio/ledger/internal/web"
	"go.opentelemetry.io/otel/trace"
)

// APIMux constructs a http.ServeMux with all application routes defined.
func APIMux(s *Server, tracer trace.Tracer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /clientes/{id}/transacoes", middlewareWeb(s.log, tracer, s.Transactions))
	mux.Handle("GET /clientes/{id}/extrato", middlewareWeb(s.log, tracer, s.Statement))
	mux.Handle("GET /liveness", middlewareWeb(s.log, tracer, s.Liveness))

	return mux
}

// Server holds the dependencies of the handlers.
type Server struct {
	log      *slog.Logger
	accounts *account.Core
}

func NewServer(log *slog.Logger, accounts *account.Core) *Server {
	return &Server{log: log, accounts: accounts}
}

func (s *Server) Transactions(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s,
		func(ctx context.Context, id int, req TransactionsReq) (TransactionsResp, error) {
			nt := account.NewTransaction{
				Value:       req.Value,
				Kind:        req.Kind,
				Description: req.Description,
			}

			a, err := s.accounts.AddTransaction(ctx, id, nt)
			if err != nil {
				return TransactionsResp{}, err
			}

			return TransactionsResp{
				Limit:   a.Limit,
				Balance: a.Balance,
			}, nil
		},
	)
}

func (s *Server) Statement(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s,
		func(ctx context.Context, id int, req struct{}) (StatementResp, error) {
			st, err := s.accounts.Statement(ctx, id)
			if err != nil {
				return StatementResp{}, err
			}

			return toStatementResp(st), nil
		},
	)
}

func (s *Server) Liveness(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, []byte(`{"status":"up"}`))
}

func getID(r *http.Request) (int, error) {
	sID := r.PathValue("id")
	return strconv.Atoi(sID)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func serveJSON[Req any, Resp any](
	w http.ResponseWriter,
	r *http.Request,
	s *Server,
	fn func(ctx context.Context, id int, req Req) (Resp, error),
) {
	ctx := r.Context()

	id, err := getID(r)
	if err != nil {
		s.log.ErrorContext(ctx, "getID", "ERROR", err)
		respondError(w, r, http.StatusNotFound, "invalid id")
		return
	}

	var req Req
	if r.Method != http.MethodGet {
		if !isJSON(r) {
			s.log.ErrorContext(ctx, "request must be a json", "content_type", r.Header.Get("Content-Type"))
			respondBodyError(w, r, s, id, "request must be a json")
			return
		}

		err := json.NewDecoder(r.Body).Decode(&req)
		r.Body.Close()
		if err != nil {
			s.log.ErrorContext(ctx, "decoding json", "ERROR", err)
			respondBodyError(w, r, s, id, "bad request")
			return
		}
	}

	resp, err := fn(ctx, id, req)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrNotFound):
			s.log.InfoContext(ctx, "fn", "ERROR", err)
			respondError(w, r, http.StatusNotFound, err.Error())

		case errors.Is(err, account.ErrInvalidRequest),
			errors.Is(err, account.ErrLimitExceeded):
			s.log.InfoContext(ctx, "fn", "ERROR", err)
			respondError(w, r, http.StatusUnprocessableEntity, err.Error())

		default:
			s.log.ErrorContext(ctx, "fn", "ERROR", err)
			respondError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	bs, err := json.Marshal(resp)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to encode response", "ERROR", err)
		respondError(w, r, http.StatusInternalServerError, "failed to encode response")
		return
	}

	respond(w, r, http.StatusOK, bs)
}

// respondBodyError reports a malformed body. An unknown account takes
// precedence and is reported as not found.
func respondBodyError(w http.ResponseWriter, r *http.Request, s *Server, id int, msg string) {
	_, err := s.accounts.QueryByID(r.Context(), id)
	if errors.Is(err, account.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, r, http.StatusBadRequest, msg)
}

func respond(w http.ResponseWriter, r *http.Request, statusCode int, body []byte) {
	web.SetStatusCode(r.Context(), statusCode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}

func respondError(w http.ResponseWriter, r *http.Request, statusCode int, msg string) {
	web.SetStatusCode(r.Context(), statusCode)
	http.Error(w, msg, statusCode)
}
