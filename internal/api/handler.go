package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/Gabiro3/curuza-pos2/domain"
	"github.com/Gabiro3/curuza-pos2/internal/catalog"
	"github.com/Gabiro3/curuza-pos2/internal/config"
	"github.com/Gabiro3/curuza-pos2/internal/customers"
	"github.com/Gabiro3/curuza-pos2/internal/ledger"
	"github.com/Gabiro3/curuza-pos2/internal/plans"
	"github.com/Gabiro3/curuza-pos2/internal/reports"
	"github.com/Gabiro3/curuza-pos2/internal/sales"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db       *sqlx.DB
	secret   string
	validate *validator.Validate

	catalog   *catalog.Service
	customers *customers.Service
	sales     *sales.Service
	plans     *plans.Service
	reports   *reports.Service
	ledger    *ledger.Ledger
}

// New constructs a Handler.
func New(db *sqlx.DB, secret string) *Handler {
	return &Handler{
		db:        db,
		secret:    secret,
		validate:  validator.New(),
		catalog:   catalog.New(db),
		customers: customers.New(db),
		sales:     sales.New(db),
		plans:     plans.New(db),
		reports:   reports.New(db),
		ledger:    ledger.New(db),
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/products", func(r chi.Router) {
			r.Post("/", h.createProduct)
			r.Get("/", h.listProducts)
			r.Get("/{id}", h.getProduct)
			r.Put("/{id}", h.updateProduct)
			r.Delete("/{id}", h.deleteProduct)
			r.Post("/{id}/refill", h.refillProduct)
			r.Get("/{id}/transactions", h.productTransactions)
			r.Get("/{id}/verify", h.verifyProduct)
		})

		pr.Route("/customers", func(r chi.Router) {
			r.Post("/", h.createCustomer)
			r.Get("/", h.listCustomers)
			r.Get("/{id}", h.getCustomer)
			r.Put("/{id}", h.updateCustomer)
			r.Delete("/{id}", h.deleteCustomer)
		})

		pr.Route("/sales", func(r chi.Router) {
			r.Post("/", h.createSale)
			r.Get("/", h.listSales)
			r.Get("/{id}", h.getSale)
		})

		pr.Route("/plans", func(r chi.Router) {
			r.Post("/", h.createPlan)
			r.Get("/", h.listPlans)
			r.Get("/{id}", h.getPlan)
			r.Delete("/{id}", h.deletePlan)
			r.Post("/{id}/items", h.addPlanItem)
			r.Delete("/{id}/items/{itemID}", h.removePlanItem)
			r.Post("/{id}/status", h.setPlanStatus)
		})

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/sales/daily", h.dailySummary)
			r.Get("/sales/monthly", h.monthlySummary)
			r.Get("/top-products", h.topProducts)
			r.Get("/low-stock", h.lowStock)
			r.Get("/profit", h.profit)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID string, role domain.Role) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok || claims.UserID == "" || !domain.Role(claims.Role).Valid() {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(r *http.Request) domain.Actor {
	actor := domain.Actor{}
	if v, ok := r.Context().Value(ctxUserID).(string); ok {
		actor.UserID = v
	}
	if v, ok := r.Context().Value(ctxRole).(string); ok {
		actor.Role = domain.Role(v)
	}
	return actor
}

// Auth Handlers

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	role := domain.Role(req.Role)
	if req.Role == "" {
		role = domain.RoleUser
	}
	// The very first account becomes admin so a fresh install is manageable.
	var userCount int64
	if err := h.db.GetContext(r.Context(), &userCount, `SELECT COUNT(*) FROM users`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start registration")
		return
	}
	if userCount == 0 {
		role = domain.RoleAdmin
	} else if role == domain.RoleAdmin {
		respondError(w, http.StatusForbidden, "admin accounts are created by an admin")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	user := domain.User{
		ID:       uuid.NewString(),
		Username: req.Username,
		Email:    strings.ToLower(req.Email),
		Role:     role,
	}
	_, err = h.db.ExecContext(r.Context(),
		`INSERT INTO users (id, username, email, password, role) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, hashed, user.Role)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "unique constraint") {
			respondError(w, http.StatusConflict, "email already exists")
		} else {
			respondError(w, http.StatusInternalServerError, "unable to create user")
		}
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user domain.User
	err := h.db.GetContext(r.Context(), &user,
		`SELECT id, username, email, password, role, created_at FROM users WHERE email = ?`,
		strings.ToLower(req.Email))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password" validate:"required,min=6"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor := actorFromContext(r)
	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `UPDATE users SET password = ? WHERE id = ?`, hashed, actor.UserID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// Product handlers

type additionalCostRequest struct {
	Title string          `json:"title" validate:"required"`
	Price decimal.Decimal `json:"price"`
}

type productRequest struct {
	Name            string                  `json:"name" validate:"required"`
	PurchasePrice   decimal.Decimal         `json:"purchase_price" validate:"required"`
	SalePrice       decimal.Decimal         `json:"sale_price" validate:"required"`
	Stock           int64                   `json:"stock" validate:"gte=0"`
	AdditionalCosts []additionalCostRequest `json:"additional_costs" validate:"dive"`
}

func (r productRequest) costs() domain.AdditionalCosts {
	out := make(domain.AdditionalCosts, 0, len(r.AdditionalCosts))
	for _, c := range r.AdditionalCosts {
		out = append(out, domain.AdditionalCost{Title: c.Title, Price: c.Price})
	}
	return out
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	product, err := h.catalog.Create(r.Context(), catalog.CreateInput{
		Name:            req.Name,
		PurchasePrice:   req.PurchasePrice,
		SalePrice:       req.SalePrice,
		InitialStock:    req.Stock,
		AdditionalCosts: req.costs(),
	}, actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	product, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), catalog.UpdateInput{
		Name:            req.Name,
		PurchasePrice:   req.PurchasePrice,
		SalePrice:       req.SalePrice,
		NewStock:        req.Stock,
		AdditionalCosts: req.costs(),
	}, actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context(), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id"), actorFromContext(r)); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type refillRequest struct {
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
	Notes    string `json:"notes"`
}

func (h *Handler) refillProduct(w http.ResponseWriter, r *http.Request) {
	var req refillRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	mv, err := h.catalog.Refill(r.Context(), chi.URLParam(r, "id"), req.Quantity, req.Notes, actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, mv)
}

func (h *Handler) productTransactions(w http.ResponseWriter, r *http.Request) {
	movements, err := h.ledger.History(r.Context(), chi.URLParam(r, "id"), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, movements)
}

func (h *Handler) verifyProduct(w http.ResponseWriter, r *http.Request) {
	live, replayed, err := h.ledger.Verify(r.Context(), chi.URLParam(r, "id"), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"current_stock": live,
		"replayed":      replayed,
		"consistent":    live == replayed,
	})
}

// Customer handlers

type customerRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	customer, err := h.customers.Create(r.Context(), customers.Input{Name: req.Name, Phone: req.Phone, Email: req.Email}, actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, customer)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	customer, err := h.customers.Update(r.Context(), chi.URLParam(r, "id"), customers.Input{Name: req.Name, Phone: req.Phone, Email: req.Email}, actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.customers.Get(r.Context(), chi.URLParam(r, "id"), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.customers.List(r.Context(), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.customers.Delete(r.Context(), chi.URLParam(r, "id"), actorFromContext(r)); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Sales handlers

type saleItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type saleRequest struct {
	CustomerID    *string           `json:"customer_id"`
	CustomerName  string            `json:"customer_name" validate:"required"`
	SaleDate      string            `json:"sale_date" validate:"omitempty,datetime=2006-01-02"`
	Items         []saleItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=cash card transfer other"`
	PaymentStatus string            `json:"payment_status" validate:"required,oneof=paid pending partial"`
	Notes         string            `json:"notes"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	items := make([]sales.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, sales.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
		})
	}
	sale, err := h.sales.RecordSale(r.Context(), sales.SaleInput{
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		SaleDate:      req.SaleDate,
		Items:         items,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		PaymentStatus: domain.PaymentStatus(req.PaymentStatus),
		Notes:         req.Notes,
	}, actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sale)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.sales.Get(r.Context(), chi.URLParam(r, "id"), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sale)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	from := strings.TrimSpace(r.URL.Query().Get("start_date"))
	to := strings.TrimSpace(r.URL.Query().Get("end_date"))
	for _, d := range []string{from, to} {
		if d != "" {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				respondError(w, http.StatusBadRequest, "dates must be in YYYY-MM-DD format")
				return
			}
		}
	}
	list, err := h.sales.List(r.Context(), from, to, actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// Purchase plan handlers

type planRequest struct {
	Name        string `json:"name" validate:"required"`
	PlannedDate string `json:"planned_date" validate:"omitempty,datetime=2006-01-02"`
	Notes       string `json:"notes"`
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	plan, err := h.plans.Create(r.Context(), plans.CreateInput{Name: req.Name, PlannedDate: req.PlannedDate, Notes: req.Notes}, actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, plan)
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.plans.Get(r.Context(), chi.URLParam(r, "id"), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	list, err := h.plans.List(r.Context(), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) deletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.plans.Delete(r.Context(), chi.URLParam(r, "id"), actorFromContext(r)); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type planItemRequest struct {
	ProductID *string         `json:"product_id"`
	ProdName  string          `json:"prod_name"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (h *Handler) addPlanItem(w http.ResponseWriter, r *http.Request) {
	var req planItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	plan, err := h.plans.AddItem(r.Context(), chi.URLParam(r, "id"), plans.ItemInput{
		ProductID: req.ProductID,
		ProdName:  req.ProdName,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
	}, actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, plan)
}

func (h *Handler) removePlanItem(w http.ResponseWriter, r *http.Request) {
	plan, err := h.plans.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

type planStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft scheduled completed cancelled"`
}

func (h *Handler) setPlanStatus(w http.ResponseWriter, r *http.Request) {
	var req planStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	plan, err := h.plans.SetStatus(r.Context(), chi.URLParam(r, "id"), domain.PlanStatus(req.Status), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// Report handlers

func (h *Handler) dailySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.DailySummary(r.Context(), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) monthlySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.MonthlySummary(r.Context(), actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.reports.TopProducts(r.Context(), limit, actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := strconv.ParseInt(r.URL.Query().Get("threshold"), 10, 64)
	if err != nil {
		threshold = 5
	}
	list, lerr := h.reports.LowStock(r.Context(), threshold, actorFromContext(r))
	if lerr != nil {
		respondServiceError(w, lerr)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) profit(w http.ResponseWriter, r *http.Request) {
	from := strings.TrimSpace(r.URL.Query().Get("start_date"))
	to := strings.TrimSpace(r.URL.Query().Get("end_date"))
	profit, err := h.reports.Profit(r.Context(), from, to, actorFromContext(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"profit": profit})
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the core error taxonomy onto HTTP statuses so the
// UI can distinguish validation, authorization and conflict failures.
func respondServiceError(w http.ResponseWriter, err error) {
	var partial *domain.PartialSaleError
	switch {
	case errors.As(err, &partial):
		respondError(w, http.StatusConflict, partial.Error())
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrHasSalesHistory),
		errors.Is(err, domain.ErrInvalidStateTransition):
		respondError(w, http.StatusConflict, err.Error())
	default:
		config.LogError(config.GetLogger(), "api", "respondServiceError", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
