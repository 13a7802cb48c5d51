package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nexus-storefront/internal/ai"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/identity"
	assistantsvc "nexus-storefront/internal/service/assistant"
	cartsvc "nexus-storefront/internal/service/cart"
	checkoutsvc "nexus-storefront/internal/service/checkout"
	customersvc "nexus-storefront/internal/service/customer"
	ordersvc "nexus-storefront/internal/service/order"
	productsvc "nexus-storefront/internal/service/product"
	profilesvc "nexus-storefront/internal/service/profile"
)

type accountService interface {
	Signup(ctx context.Context, in customersvc.SignupInput) (*domain.Account, string, error)
	Login(ctx context.Context, email, password string) (*domain.Account, string, error)
	ConfirmEmail(ctx context.Context, token string) error
	AccessTTLSeconds() int
}

type catalogService interface {
	List(ctx context.Context, f productsvc.Filter) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Categories() []domain.Category
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	Update(ctx context.Context, id string, p domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	ListReviews(ctx context.Context, productID string) (productsvc.Reviews, error)
	AddReview(ctx context.Context, who domain.Identity, productID string, in productsvc.ReviewInput) (*domain.Review, error)
}

type cartService interface {
	Get(ctx context.Context, sessionKey, uid string) (cartsvc.Snapshot, error)
	AddItem(ctx context.Context, sessionKey, uid, productID, size string) (cartsvc.Snapshot, error)
	Decrease(ctx context.Context, sessionKey, uid, lineID string) (cartsvc.Snapshot, error)
	Remove(ctx context.Context, sessionKey, uid, lineID string) (cartsvc.Snapshot, error)
	Clear(ctx context.Context, sessionKey, uid string) (cartsvc.Snapshot, error)
	Watch(ctx context.Context, sessionKey, uid string, fn func(cartsvc.Snapshot)) (func(), error)
	SignOut(sessionKey string)
}

type checkoutService interface {
	Instructions(ctx context.Context, sessionKey, uid string) (checkoutsvc.Instructions, error)
	Checkout(ctx context.Context, req checkoutsvc.Request) checkoutsvc.Result
}

type profileService interface {
	Get(ctx context.Context, who domain.Identity) (profilesvc.View, error)
	Update(ctx context.Context, who domain.Identity, in profilesvc.Update) (profilesvc.View, error)
	IsAdmin(ctx context.Context, uid string) (bool, error)
}

type orderService interface {
	ListForUser(ctx context.Context, uid string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	TogglePayment(ctx context.Context, id string) (*domain.Order, error)
	Cancel(ctx context.Context, id string) error
	Analytics(ctx context.Context) (ordersvc.Analytics, error)
	ExportXLSX(ctx context.Context, w io.Writer) error
}

type assistantService interface {
	Chat(ctx context.Context, question string) (assistantsvc.Answer, error)
	VisualSearch(ctx context.Context, image ai.Image) assistantsvc.Match
	Describe(ctx context.Context, title, subCategory string) (assistantsvc.Answer, error)
	Analyst(ctx context.Context, question string) (assistantsvc.Answer, error)
}

// Deps groups the services the router exposes. Accounts is optional and
// only set when the built-in identity provider is in use; Metrics and
// Assistant are optional too.
type Deps struct {
	Identity    identity.Provider
	Accounts    accountService
	Catalog     catalogService
	Carts       cartService
	Checkout    checkoutService
	Profiles    profileService
	Orders      orderService
	Assistant   assistantService
	Metrics     http.Handler
	CORSOrigins []string
}

func (d Deps) validate() error {
	switch {
	case d.Identity == nil:
		return errors.New("identity provider is required")
	case d.Catalog == nil:
		return errors.New("catalog service is required")
	case d.Carts == nil:
		return errors.New("cart service is required")
	case d.Checkout == nil:
		return errors.New("checkout service is required")
	case d.Profiles == nil:
		return errors.New("profile service is required")
	case d.Orders == nil:
		return errors.New("order service is required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db Pinger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(zap.NewStdLog(logger).Writer()), gin.Recovery())
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	h := &handlers{deps: deps, logger: logger}
	authed := requireIdentity(deps.Identity)
	admin := requireAdmin(deps.Profiles, logger)

	router.GET("/categories", h.listCategories)
	router.GET("/products", h.listProducts)
	router.GET("/products/:id", h.getProduct)
	router.GET("/products/:id/reviews", h.listReviews)
	router.POST("/products/:id/reviews", authed, h.addReview)

	auth := router.Group("/auth")
	if deps.Accounts != nil {
		auth.POST("/signup", h.signup)
		auth.POST("/login", h.login)
		auth.POST("/verify", h.verifyEmail)
	}
	auth.POST("/logout", authed, h.logout)

	if deps.Assistant != nil {
		router.POST("/assistant/chat", h.chat)
		router.POST("/assistant/visual-search", h.visualSearch)
	}

	me := router.Group("/me", authed)
	me.GET("", h.getProfile)
	me.PUT("", h.updateProfile)
	me.GET("/orders", h.myOrders)
	me.GET("/cart", h.getCart)
	me.GET("/cart/stream", h.streamCart)
	me.POST("/cart/items", h.addCartItem)
	me.POST("/cart/items/:lineId/decrease", h.decreaseCartItem)
	me.DELETE("/cart/items/:lineId", h.removeCartItem)
	me.DELETE("/cart", h.clearCart)
	me.GET("/checkout/instructions", h.checkoutInstructions)
	me.POST("/checkout", h.checkout)

	adm := router.Group("/admin", authed, admin)
	adm.POST("/products", h.createProduct)
	adm.PUT("/products/:id", h.updateProduct)
	adm.DELETE("/products/:id", h.deleteProduct)
	adm.GET("/orders", h.allOrders)
	adm.GET("/orders/export", h.exportOrders)
	adm.PUT("/orders/:id/status", h.updateOrderStatus)
	adm.POST("/orders/:id/payment/toggle", h.togglePayment)
	adm.DELETE("/orders/:id", h.cancelOrder)
	adm.GET("/analytics", h.analytics)
	if deps.Assistant != nil {
		adm.POST("/assistant/describe", h.describe)
		adm.POST("/assistant/analyst", h.analyst)
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", headerSessionID, headerIdempotencyKey},
		ExposeHeaders: []string{"Content-Disposition"},
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}
