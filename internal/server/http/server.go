// Package httpserver exposes the bank-card API over HTTP. It carries no
// business rules: it authenticates the caller, decodes input, invokes a
// core service, and maps the result onto a transport response.
package httpserver

import (
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndolgov/bankcards/internal/model"
	"github.com/ndolgov/bankcards/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth      service.AuthService
	cards     service.CardService
	users     service.UserService
	transfers service.TransferService
	signKey   []byte
	log       *zap.Logger
}

// New constructs an HTTP server with injected services.
func New(auth service.AuthService, cards service.CardService, users service.UserService,
	transfers service.TransferService, signKey []byte, log *zap.Logger) *Server {
	return &Server{auth: auth, cards: cards, users: users, transfers: transfers, signKey: signKey, log: log}
}

// Router builds the route tree with logging, recovery and auth middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(s.log), RequestLogger(s.log))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Route("/cards", func(r chi.Router) {
				r.Post("/", s.handleIssueCard)
				r.Get("/", s.handleListMyCards)
				r.Post("/transfer", s.handleTransfer)
				r.Get("/{id}", s.handleGetCard)
				r.Patch("/{id}/block", s.handleBlockCard)
				r.Delete("/{id}", s.handleDeleteCard)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/cards", s.handleListAllCards)
				r.Post("/cards/{id}/block", s.handleBlockCard)
				r.Post("/cards/{id}/activate", s.handleActivateCard)
				r.Delete("/cards/{id}", s.handleDeleteCard)
				r.Get("/users", s.handleListUsers)
				r.Post("/users/{id}/block", s.handleBlockUser)
				r.Post("/users/{id}/activate", s.handleActivateUser)
				r.Delete("/users/{id}", s.handleDeleteUser)
				r.Get("/users/{id}/cards", s.handleListUserCards)
			})
		})
	})
	return r
}

// pageFromQuery reads ?page and ?size with defaults.
func pageFromQuery(r *http.Request) model.Page {
	p := model.Page{}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		p.Number = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil {
		p.Size = v
	}
	return p.Normalize()
}

// remoteIP strips the port from the request's remote address.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// --- response shapes ---

type cardResponse struct {
	ID      string `json:"id"`
	Number  string `json:"number"`
	Expiry  string `json:"expiry"`
	Status  string `json:"status"`
	Balance string `json:"balance"`
	OwnerID string `json:"owner_id"`
}

func toCardResponse(v model.CardView) cardResponse {
	return cardResponse{
		ID:      v.ID.String(),
		Number:  v.MaskedNumber,
		Expiry:  v.Expiry.Format("2006-01-02"),
		Status:  string(v.Status),
		Balance: v.Balance.StringFixed(2),
		OwnerID: v.OwnerID.String(),
	}
}

func toCardResponses(vs []model.CardView) []cardResponse {
	out := make([]cardResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, toCardResponse(v))
	}
	return out
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Role:     string(u.Role),
		Status:   string(u.Status),
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type transferRequest struct {
	SourceCardID      string          `json:"source_card_id"`
	DestinationCardID string          `json:"destination_card_id"`
	Amount            decimal.Decimal `json:"amount"`
}
