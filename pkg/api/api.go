// Package api is the HTTP edge of tablepos. Every order and settings route
// is a named operation run through the interceptor chain.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	"tablepos/pkg/apperr"
	"tablepos/pkg/config"
	"tablepos/pkg/intercept"
	"tablepos/pkg/logger"
	"tablepos/pkg/order"
	"tablepos/pkg/service"
	"tablepos/pkg/session"
	"tablepos/pkg/settings"

	_ "tablepos/docs"
)

// Sessions stores logged-in staff.
type Sessions interface {
	Create(ctx context.Context, username string, roles []string) (session.Session, error)
	Lookup(ctx context.Context, id string) (session.Session, error)
	Delete(ctx context.Context, id string) error
}

// Authenticator checks staff credentials.
type Authenticator interface {
	Authenticate(username, password string) (config.Member, bool)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Orders   *service.Service
	Settings *settings.Handle
	Sessions Sessions
	Auth     Authenticator
	// Chain wraps every operation. Use intercept.Standard in production.
	Chain  []intercept.Interceptor
	Tracer trace.Tracer
	Log    *logger.Logger
}

// Server serves the HTTP API.
type Server struct {
	orders   *service.Service
	settings *settings.Handle
	sessions Sessions
	auth     Authenticator
	chain    []intercept.Interceptor
	tracer   trace.Tracer
	log      *logger.Logger
}

// New returns a Server.
func New(d Deps) *Server {
	return &Server{
		orders:   d.Orders,
		settings: d.Settings,
		sessions: d.Sessions,
		auth:     d.Auth,
		chain:    d.Chain,
		tracer:   d.Tracer,
		log:      d.Log.With("component", "api"),
	}
}

// Routes builds the router.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(withRequestID)
	r.Use(s.traceMiddleware)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.logout).Methods(http.MethodPost)

	orders := r.PathPrefix("/orders").Subrouter()
	orders.Use(s.authMiddleware)
	orders.HandleFunc("", s.createOrder).Methods(http.MethodPost)
	orders.HandleFunc("", s.listOrders).Methods(http.MethodGet)
	orders.HandleFunc("/{id}", s.getOrder).Methods(http.MethodGet)
	orders.HandleFunc("/{id}/items", s.addItem).Methods(http.MethodPost)
	orders.HandleFunc("/{id}/items/{pos}", s.removeItem).Methods(http.MethodDelete)
	orders.HandleFunc("/{id}/state", s.changeState).Methods(http.MethodPost)
	orders.HandleFunc("/{id}/payment", s.processPayment).Methods(http.MethodPost)
	orders.HandleFunc("/{id}/payment", s.getPayment).Methods(http.MethodGet)

	cfg := r.PathPrefix("/settings").Subrouter()
	cfg.Use(s.authMiddleware)
	cfg.HandleFunc("", s.getSettings).Methods(http.MethodGet)
	cfg.HandleFunc("", s.updateSettings).Methods(http.MethodPatch)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

// run executes op through the chain and writes its outcome. A non-nil
// parseErr is returned by the handler so authorization still runs first.
func (s *Server) run(w http.ResponseWriter, r *http.Request, op string, payload any, parseErr error, status int, h intercept.Handler) {
	ctx := r.Context()
	inner := h
	if parseErr != nil {
		inner = func(context.Context, intercept.Request) (any, error) { return nil, parseErr }
	}
	out := intercept.Run(ctx, intercept.Chain(inner, s.chain...), intercept.Request{
		ID:        RequestIDFromContext(ctx),
		Operation: op,
		Actor:     actorFromContext(ctx),
		Payload:   payload,
	})
	if !out.OK {
		code := statusFor(out.Kind)
		if code == http.StatusInternalServerError {
			s.log.Error(ctx, "operation error", "operation", op, "error", out.Message)
		}
		writeError(w, code, string(out.Kind), out.Message)
		return
	}
	writeJSON(w, status, out.Result)
}

// login authenticates staff and opens a session.
// @Summary Login
// @Description Authenticates staff and sets the session cookie
// @Accept json
// @Produce json
// @Param creds body loginRequest true "Credentials"
// @Success 200 {object} loginResponse
// @Failure 401 {object} jsonError
// @Router /login [post]
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, string(apperr.KindInvalidInput), "username and password required")
		return
	}
	m, ok := s.auth.Authenticate(req.Username, req.Password)
	if !ok {
		s.log.Warn(ctx, "login rejected", "username", req.Username, "request_id", RequestIDFromContext(ctx))
		writeError(w, http.StatusUnauthorized, string(apperr.KindUnauthorized), "invalid credentials")
		return
	}
	sess, err := s.sessions.Create(ctx, m.Username, m.Roles)
	if err != nil {
		s.log.Error(ctx, "create session", "error", err)
		writeError(w, http.StatusInternalServerError, string(apperr.KindInternal), "session error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.log.Info(ctx, "login", "username", m.Username, "roles", strings.Join(m.Roles, ","))
	writeJSON(w, http.StatusOK, loginResponse{SessionID: sess.ID, Username: m.Username, Roles: m.Roles, ExpiresAt: sess.ExpiresAt})
}

// logout ends the current session.
// @Summary Logout
// @Success 204
// @Router /logout [post]
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if id := sessionID(r); id != "" {
		if err := s.sessions.Delete(r.Context(), id); err != nil {
			s.log.Warn(r.Context(), "delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// createOrder opens an order for a table.
// @Summary Create order
// @Accept json
// @Produce json
// @Param order body createOrderRequest true "Table"
// @Success 201 {object} order.Order
// @Security ApiKeyAuth
// @Router /orders [post]
func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	err := decode(r, &req)
	s.run(w, r, "create_order", req, err, http.StatusCreated, func(ctx context.Context, ir intercept.Request) (any, error) {
		return s.orders.CreateOrder(ctx, req.Table, ir.Actor.Name)
	})
}

// listOrders lists a table's orders or orders in some states.
// @Summary List orders
// @Produce json
// @Param table query int false "Table number"
// @Param state query string false "Comma separated states"
// @Success 200 {array} order.Order
// @Security ApiKeyAuth
// @Router /orders [get]
func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		table  int
		states []order.State
		err    error
	)
	if v := q.Get("table"); v != "" {
		if table, err = strconv.Atoi(v); err != nil {
			err = apperr.Wrap(errBadRequest, "table %q", v)
		}
	}
	if v := q.Get("state"); v != "" && err == nil {
		for _, part := range strings.Split(v, ",") {
			st, perr := order.ParseState(strings.TrimSpace(part))
			if perr != nil {
				err = perr
				break
			}
			states = append(states, st)
		}
	}
	s.run(w, r, "list_orders", q.Encode(), err, http.StatusOK, func(ctx context.Context, _ intercept.Request) (any, error) {
		if table == 0 {
			return s.orders.ListByState(ctx, states...)
		}
		list, err := s.orders.ListByTable(ctx, table)
		if err != nil || len(states) == 0 {
			return list, err
		}
		keep := list[:0]
		for _, o := range list {
			for _, st := range states {
				if o.State == st {
					keep = append(keep, o)
					break
				}
			}
		}
		return keep, nil
	})
}

// getOrder returns one order.
// @Summary Get order
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} order.Order
// @Failure 404 {object} jsonError
// @Security ApiKeyAuth
// @Router /orders/{id} [get]
func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	s.run(w, r, "get_order", id, err, http.StatusOK, func(ctx context.Context, _ intercept.Request) (any, error) {
		return s.orders.Get(ctx, id)
	})
}

// addItem appends a line item.
// @Summary Add item
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param item body order.LineItem true "Item"
// @Success 200 {object} order.Order
// @Failure 409 {object} jsonError
// @Security ApiKeyAuth
// @Router /orders/{id}/items [post]
func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var li order.LineItem
	id, err := orderID(r)
	if err == nil {
		err = decode(r, &li)
	}
	s.run(w, r, "add_item", li, err, http.StatusOK, func(ctx context.Context, ir intercept.Request) (any, error) {
		return s.orders.AddItem(ctx, id, li, ir.Actor.Name)
	})
}

// removeItem drops a line item by position.
// @Summary Remove item
// @Produce json
// @Param id path int true "Order ID"
// @Param pos path int true "Item position"
// @Success 200 {object} order.Order
// @Failure 409 {object} jsonError
// @Security ApiKeyAuth
// @Router /orders/{id}/items/{pos} [delete]
func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	var pos int
	if err == nil {
		v := mux.Vars(r)["pos"]
		if pos, err = strconv.Atoi(v); err != nil {
			err = apperr.Wrap(errBadRequest, "position %q", v)
		}
	}
	s.run(w, r, "remove_item", pos, err, http.StatusOK, func(ctx context.Context, ir intercept.Request) (any, error) {
		return s.orders.RemoveItem(ctx, id, pos, ir.Actor.Name)
	})
}

// changeState moves an order along its lifecycle.
// @Summary Change order state
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param state body stateRequest true "Target state"
// @Success 200 {object} order.Order
// @Failure 409 {object} jsonError
// @Security ApiKeyAuth
// @Router /orders/{id}/state [post]
func (s *Server) changeState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	var to order.State
	id, err := orderID(r)
	if err == nil {
		err = decode(r, &req)
	}
	if err == nil {
		to, err = order.ParseState(req.State)
	}
	s.run(w, r, "change_state", req, err, http.StatusOK, func(ctx context.Context, ir intercept.Request) (any, error) {
		return s.orders.ChangeState(ctx, id, to, ir.Actor.Name)
	})
}

// processPayment settles a delivered order.
// @Summary Process payment
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param payment body paymentRequest true "Payment"
// @Success 201 {object} order.Payment
// @Failure 409 {object} jsonError
// @Security ApiKeyAuth
// @Router /orders/{id}/payment [post]
func (s *Server) processPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	var method order.Method
	id, err := orderID(r)
	if err == nil {
		err = decode(r, &req)
	}
	if err == nil {
		method, err = order.ParseMethod(req.Method)
	}
	s.run(w, r, "process_payment", req, err, http.StatusCreated, func(ctx context.Context, ir intercept.Request) (any, error) {
		return s.orders.ProcessPayment(ctx, id, method, req.Tip, ir.Actor.Name)
	})
}

// getPayment returns the payment of a paid order.
// @Summary Get payment
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} order.Payment
// @Security ApiKeyAuth
// @Router /orders/{id}/payment [get]
func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	s.run(w, r, "get_payment", id, err, http.StatusOK, func(ctx context.Context, _ intercept.Request) (any, error) {
		return s.orders.GetPayment(ctx, id)
	})
}

// getSettings returns the live restaurant settings.
// @Summary Get settings
// @Produce json
// @Success 200 {object} settings.Settings
// @Security ApiKeyAuth
// @Router /settings [get]
func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "get_settings", nil, nil, http.StatusOK, func(ctx context.Context, _ intercept.Request) (any, error) {
		return s.settings.Instance(ctx).Get(), nil
	})
}

// updateSettings patches the restaurant settings. Rates are percentages.
// @Summary Update settings
// @Accept json
// @Produce json
// @Param patch body settingsRequest true "Changed fields"
// @Success 200 {object} settingsResponse
// @Security ApiKeyAuth
// @Router /settings [patch]
func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	err := decode(r, &req)
	s.run(w, r, "update_settings", req, err, http.StatusOK, func(ctx context.Context, _ intercept.Request) (any, error) {
		cur, err := s.settings.Instance(ctx).Update(ctx, req.patch())
		if errors.Is(err, settings.ErrPersistence) {
			return settingsResponse{Settings: cur, Warning: err.Error()}, nil
		}
		if err != nil {
			return nil, err
		}
		return settingsResponse{Settings: cur}, nil
	})
}

func orderID(r *http.Request) (int64, error) {
	v := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Wrap(errBadRequest, "order id %q", v)
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(errBadRequest, "decode body: %v", err)
	}
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string    `json:"session_id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

type createOrderRequest struct {
	Table int `json:"table"`
}

type stateRequest struct {
	State string `json:"state"`
}

type paymentRequest struct {
	Method string           `json:"method"`
	Tip    *decimal.Decimal `json:"tip,omitempty"`
}

// settingsRequest takes tax_rate and tip_rate as percentages (18 means 18%).
type settingsRequest struct {
	Name           *string  `json:"name,omitempty"`
	TaxRate        *float64 `json:"tax_rate,omitempty"`
	TipRate        *float64 `json:"tip_rate,omitempty"`
	Currency       *string  `json:"currency,omitempty"`
	Address        *string  `json:"address,omitempty"`
	Phone          *string  `json:"phone,omitempty"`
	Email          *string  `json:"email,omitempty"`
	Schedule       *string  `json:"schedule,omitempty"`
	Capacity       *int     `json:"capacity,omitempty"`
	MaxWaitMinutes *int     `json:"max_wait_minutes,omitempty"`
}

func (req settingsRequest) patch() settings.Patch {
	return settings.Patch{
		Name:           req.Name,
		TaxRate:        percent(req.TaxRate),
		TipRate:        percent(req.TipRate),
		Currency:       req.Currency,
		Address:        req.Address,
		Phone:          req.Phone,
		Email:          req.Email,
		Schedule:       req.Schedule,
		Capacity:       req.Capacity,
		MaxWaitMinutes: req.MaxWaitMinutes,
	}
}

func percent(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v / 100
	return &f
}

type settingsResponse struct {
	Settings settings.Settings `json:"settings"`
	Warning  string            `json:"warning,omitempty"`
}
