package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nexus-storefront/internal/ai"
	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/identity"
	orderrepo "nexus-storefront/internal/repository/order"
	productrepo "nexus-storefront/internal/repository/product"
	reviewrepo "nexus-storefront/internal/repository/review"
	userrepo "nexus-storefront/internal/repository/user"
	assistantsvc "nexus-storefront/internal/service/assistant"
	cartsvc "nexus-storefront/internal/service/cart"
	checkoutsvc "nexus-storefront/internal/service/checkout"
	ordersvc "nexus-storefront/internal/service/order"
	productsvc "nexus-storefront/internal/service/product"
	profilesvc "nexus-storefront/internal/service/profile"
)

type stubIdentity struct {
	mu     sync.Mutex
	tokens map[string]domain.Identity
}

func (s *stubIdentity) CurrentUser(_ context.Context, token string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, identity.ErrUnauthenticated
	}
	return &id, nil
}

func (s *stubIdentity) Refresh(_ context.Context, id domain.Identity) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.tokens {
		if v.UID == id.UID {
			return &v, nil
		}
	}
	return nil, identity.ErrUnauthenticated
}

func (s *stubIdentity) SignOut(_ context.Context, _ domain.Identity, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

type stubAssistant struct {
	lastImage ai.Image
}

func (s *stubAssistant) Chat(context.Context, string) (assistantsvc.Answer, error) {
	return assistantsvc.Answer{Text: "We have phones."}, nil
}

func (s *stubAssistant) VisualSearch(_ context.Context, img ai.Image) assistantsvc.Match {
	s.lastImage = img
	return assistantsvc.Match{Category: "Fashion", SubCategory: "Shoes"}
}

func (s *stubAssistant) Describe(context.Context, string, string) (assistantsvc.Answer, error) {
	return assistantsvc.Answer{}, ai.ErrNotConfigured
}

func (s *stubAssistant) Analyst(context.Context, string) (assistantsvc.Answer, error) {
	return assistantsvc.Answer{Text: "Sales are up."}, nil
}

type okPinger struct{ err error }

func (p okPinger) Ping(context.Context) error { return p.err }

type harness struct {
	router    *gin.Engine
	ident     *stubIdentity
	products  productrepo.Repository
	profiles  *profilesvc.Service
	assistant *stubAssistant
	phoneID   string
	shirtID   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	mem := docstore.NewMemory()
	users := userrepo.NewDocstore(mem, nil)
	orders := orderrepo.NewDocstore(mem, nil)
	products := productrepo.NewDocstore(mem, nil)

	phone, err := products.Upsert(ctx, domain.Product{Title: "Nexus Phone", Price: decimal.NewFromInt(1000), Category: "Electronics", SubCategory: "Smartphones", Stock: 4})
	if err != nil {
		t.Fatalf("seed phone: %v", err)
	}
	shirt, err := products.Upsert(ctx, domain.Product{Title: "Linen Shirt", Price: decimal.NewFromInt(800), Category: "Fashion", SubCategory: "Men's Clothing", Sizes: map[string]int{"M": 3}})
	if err != nil {
		t.Fatalf("seed shirt: %v", err)
	}

	ident := &stubIdentity{tokens: map[string]domain.Identity{
		"tok-verified":   {UID: "u1", Email: "ayesha@example.com", EmailVerified: true},
		"tok-unverified": {UID: "u2", Email: "rafi@example.com"},
	}}

	registry := cartsvc.NewRegistry(users, nil)
	t.Cleanup(registry.Close)
	carts := cartsvc.New(registry, products, nil)
	profiles := profilesvc.New(users)
	orderSvc := ordersvc.New(orders, products, nil, nil)
	checkout := checkoutsvc.New(checkoutsvc.Config{
		ShippingFee:       decimal.NewFromInt(120),
		WalletName:        "bKash",
		WalletDestination: "01700000000",
	}, checkoutsvc.Deps{
		Identity: ident,
		Carts:    carts,
		Users:    users,
		Orders:   orders,
		Store:    mem,
	})
	assistant := &stubAssistant{}

	router, err := buildRouter(zap.NewNop(), okPinger{}, Deps{
		Identity:  ident,
		Catalog:   productsvc.New(products, reviewrepo.NewDocstore(mem, nil), users, nil),
		Carts:     carts,
		Checkout:  checkout,
		Profiles:  profiles,
		Orders:    orderSvc,
		Assistant: assistant,
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return &harness{
		router:    router,
		ident:     ident,
		products:  products,
		profiles:  profiles,
		assistant: assistant,
		phoneID:   phone.ID,
		shirtID:   shirt.ID,
	}
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestReadyReportsUnreachableStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/nil", readyHandler(nil))
	router.GET("/down", readyHandler(okPinger{err: errors.New("dial tcp: refused")}))

	for _, path := range []string{"/nil", "/down"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", path, rec.Code)
		}
	}
}

func TestBuildRouterRequiresServices(t *testing.T) {
	if _, err := buildRouter(zap.NewNop(), nil, Deps{}); err == nil {
		t.Fatalf("expected error for empty deps")
	}
}

func TestProductListingAndLookup(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/products?category=Electronics&sort=price-low", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var list struct {
		Total   int              `json:"total"`
		Results []domain.Product `json:"results"`
	}
	decodeBody(t, rec, &list)
	if list.Total != 1 || list.Results[0].ID != h.phoneID {
		t.Fatalf("unexpected listing: %+v", list)
	}

	if rec := h.do(http.MethodGet, "/products?minPrice=cheap", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad minPrice, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/products/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/categories", "", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Smartphones") {
		t.Fatalf("unexpected categories response %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAuthRequiredForMeRoutes(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(http.MethodGet, "/me/cart", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/me/cart", "bogus", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rec.Code)
	}
}

func TestLocalAuthRoutesAbsentWithoutAccounts(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(http.MethodPost, "/auth/login", "", loginRequest{Email: "a@b.c", Password: "x"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCartMutations(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/me/cart/items", "tok-verified", addItemRequest{ProductID: h.phoneID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = h.do(http.MethodPost, "/me/cart/items", "tok-verified", addItemRequest{ProductID: h.phoneID})
	var snap cartsvc.Snapshot
	decodeBody(t, rec, &snap)
	if len(snap.Lines) != 1 || snap.Count != 2 || !snap.Total.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("unexpected cart: %+v", snap)
	}

	rec = h.do(http.MethodPost, "/me/cart/items/"+h.phoneID+"/decrease", "tok-verified", nil)
	decodeBody(t, rec, &snap)
	if snap.Count != 1 {
		t.Fatalf("expected count 1 after decrease, got %d", snap.Count)
	}

	rec = h.do(http.MethodPost, "/me/cart/items", "tok-verified", addItemRequest{ProductID: h.shirtID})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without size, got %d", rec.Code)
	}
	rec = h.do(http.MethodPost, "/me/cart/items", "tok-verified", addItemRequest{ProductID: h.shirtID, Size: "s"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty size stock, got %d", rec.Code)
	}

	rec = h.do(http.MethodDelete, "/me/cart", "tok-verified", nil)
	decodeBody(t, rec, &snap)
	if rec.Code != http.StatusOK || len(snap.Lines) != 0 {
		t.Fatalf("expected empty cart, got %d %+v", rec.Code, snap)
	}
}

func TestCheckoutFlow(t *testing.T) {
	h := newHarness(t)

	h.do(http.MethodPost, "/me/cart/items", "tok-unverified", addItemRequest{ProductID: h.phoneID})
	rec := h.do(http.MethodPost, "/me/checkout", "tok-unverified", checkoutRequest{})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unverified email, got %d body=%s", rec.Code, rec.Body.String())
	}

	if rec := h.do(http.MethodPost, "/me/checkout", "tok-verified", checkoutRequest{}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing phone, got %d", rec.Code)
	}

	h.do(http.MethodPost, "/me/cart/items", "tok-verified", addItemRequest{ProductID: h.phoneID})
	h.do(http.MethodPost, "/me/cart/items", "tok-verified", addItemRequest{ProductID: h.phoneID})

	rec = h.do(http.MethodGet, "/me/checkout/instructions", "tok-verified", nil)
	var in checkoutsvc.Instructions
	decodeBody(t, rec, &in)
	if !in.Amount.Equal(decimal.NewFromInt(2120)) {
		t.Fatalf("expected amount 2120, got %s", in.Amount)
	}

	phone, address := "01711111111", "House 1, Dhaka"
	rec = h.do(http.MethodPost, "/me/checkout", "tok-verified", checkoutRequest{Phone: &phone, Address: &address, Payment: checkoutsvc.PaymentCOD})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var res checkoutsvc.Result
	decodeBody(t, rec, &res)
	if res.Order == nil || !res.Order.TotalAmount.Equal(decimal.NewFromInt(2120)) {
		t.Fatalf("unexpected order: %+v", res.Order)
	}

	var snap cartsvc.Snapshot
	decodeBody(t, h.do(http.MethodGet, "/me/cart", "tok-verified", nil), &snap)
	if len(snap.Lines) != 0 {
		t.Fatalf("expected cart emptied after checkout, got %+v", snap.Lines)
	}

	var mine struct {
		Total int `json:"total"`
	}
	decodeBody(t, h.do(http.MethodGet, "/me/orders", "tok-verified", nil), &mine)
	if mine.Total != 1 {
		t.Fatalf("expected 1 order, got %d", mine.Total)
	}
}

func TestWalletAbortReturnsIdle(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/me/cart/items", "tok-verified", addItemRequest{ProductID: h.phoneID})
	phone, address := "01711111111", "House 1, Dhaka"

	rec := h.do(http.MethodPost, "/me/checkout", "tok-verified", checkoutRequest{
		Phone: &phone, Address: &address, Payment: checkoutsvc.PaymentWallet,
		Wallet: &checkoutsvc.WalletConfirmation{Acknowledged: false},
	})
	var res checkoutsvc.Result
	decodeBody(t, rec, &res)
	if rec.Code != http.StatusOK || res.State != checkoutsvc.StateIdle {
		t.Fatalf("expected 200 idle, got %d %s", rec.Code, res.State)
	}
}

func TestCheckoutStatusMapping(t *testing.T) {
	cases := []struct {
		res  checkoutsvc.Result
		want int
	}{
		{checkoutsvc.Result{State: checkoutsvc.StateSuccess}, http.StatusCreated},
		{checkoutsvc.Result{State: checkoutsvc.StateIdle}, http.StatusOK},
		{checkoutsvc.Result{State: checkoutsvc.StateFailed}, http.StatusInternalServerError},
		{checkoutsvc.Result{State: checkoutsvc.StateBlocked, Reason: checkoutsvc.ReasonNotAuthenticated}, http.StatusUnauthorized},
		{checkoutsvc.Result{State: checkoutsvc.StateBlocked, Reason: checkoutsvc.ReasonEmailNotVerified}, http.StatusForbidden},
		{checkoutsvc.Result{State: checkoutsvc.StateBlocked, Reason: checkoutsvc.ReasonInProgress}, http.StatusConflict},
		{checkoutsvc.Result{State: checkoutsvc.StateBlocked, Reason: checkoutsvc.ReasonCartEmpty}, http.StatusUnprocessableEntity},
		{checkoutsvc.Result{State: checkoutsvc.StateBlocked, Reason: checkoutsvc.ReasonInvalidTransaction}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		if got := checkoutStatus(tc.res); got != tc.want {
			t.Fatalf("%s/%s: expected %d, got %d", tc.res.State, tc.res.Reason, tc.want, got)
		}
	}
}

func TestStatusForServiceErrors(t *testing.T) {
	cases := map[error]int{
		domain.ErrNotFound:             http.StatusNotFound,
		cartsvc.ErrSignedOut:           http.StatusUnauthorized,
		cartsvc.ErrOutOfStock:          http.StatusUnprocessableEntity,
		cartsvc.ErrRegistryClosed:      http.StatusServiceUnavailable,
		ai.ErrNotConfigured:            http.StatusServiceUnavailable,
		errors.New("connection reset"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}

func TestAdminRoutesRequireRole(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(http.MethodGet, "/admin/analytics", "tok-verified", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	if err := h.profiles.SetAdmin(context.Background(), "u1", true); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	if rec := h.do(http.MethodGet, "/admin/analytics", "tok-verified", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec := h.do(http.MethodGet, "/admin/orders/export", "tok-verified", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	rec = h.do(http.MethodPost, "/admin/products", "tok-verified", domain.Product{Title: "Desk Lamp", Price: decimal.NewFromInt(900), Category: "Home", SubCategory: "Lighting", Stock: 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = h.do(http.MethodPost, "/admin/products", "tok-verified", domain.Product{Price: decimal.NewFromInt(1)})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", rec.Code)
	}

	if rec := h.do(http.MethodPut, "/admin/orders/missing/status", "tok-verified", statusRequest{Status: domain.OrderShipped}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/admin/assistant/describe", "tok-verified", describeRequest{Title: "Lamp"}); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from unconfigured model, got %d", rec.Code)
	}
}

func TestReviewNeedsSignIn(t *testing.T) {
	h := newHarness(t)
	body := productsvc.ReviewInput{Rating: 5, Text: "Great phone, fast delivery."}
	if rec := h.do(http.MethodPost, "/products/"+h.phoneID+"/reviews", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/products/"+h.phoneID+"/reviews", "tok-verified", body); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var reviews productsvc.Reviews
	decodeBody(t, h.do(http.MethodGet, "/products/"+h.phoneID+"/reviews", "", nil), &reviews)
	if reviews.Count != 1 {
		t.Fatalf("expected 1 review, got %d", reviews.Count)
	}
}

func TestVisualSearchUpload(t *testing.T) {
	h := newHarness(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="image"; filename="shoe.png"`},
		"Content-Type":        {"image/png"},
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assistant/visual-search", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var match assistantsvc.Match
	decodeBody(t, rec, &match)
	if match.Category != "Fashion" || h.assistant.lastImage.MIMEType != "image/png" {
		t.Fatalf("unexpected match %+v mime=%s", match, h.assistant.lastImage.MIMEType)
	}

	if rec := h.do(http.MethodPost, "/assistant/visual-search", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without file, got %d", rec.Code)
	}
}

func TestLogoutSignsOutCartSession(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/me/cart/items", "tok-verified", addItemRequest{ProductID: h.phoneID})

	if rec := h.do(http.MethodPost, "/auth/logout", "tok-verified", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/me/cart", "tok-verified", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", rec.Code)
	}
}

func TestCartStreamPushesChanges(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer tok-verified")
	header.Set(headerSessionID, "tab-1")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/me/cart/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap cartsvc.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if snap.Count != 0 {
		t.Fatalf("expected empty initial cart, got %+v", snap)
	}

	req := httptest.NewRequest(http.MethodPost, "/me/cart/items", strings.NewReader(`{"productId":"`+h.phoneID+`"}`))
	req.Header.Set("Authorization", "Bearer tok-verified")
	req.Header.Set(headerSessionID, "tab-1")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: %d body=%s", rec.Code, rec.Body.String())
	}

	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if snap.Count != 1 {
		t.Fatalf("expected pushed count 1, got %+v", snap)
	}
}
