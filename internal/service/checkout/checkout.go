package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/events"
	"nexus-storefront/internal/identity"
	"nexus-storefront/internal/logging"
	"nexus-storefront/internal/service/cart"
	userrepo "nexus-storefront/internal/repository/user"
)

// State is a step of the checkout state machine.
type State string

const (
	StateIdle           State = "idle"
	StateVerifying      State = "verifying"
	StateValidating     State = "validating"
	StatePaymentCapture State = "payment_capture"
	StateSubmitting     State = "submitting"
	StateSuccess        State = "success"
	StateBlocked        State = "blocked"
	StateFailed         State = "failed"
)

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentWallet PaymentMethod = "wallet"
)

// WalletConfirmation is the shopper's answer to the wallet instructions.
type WalletConfirmation struct {
	Acknowledged bool   `json:"acknowledged"`
	Reference    string `json:"reference"`
}

// Request is one checkout attempt. Nil Phone or Address fall back to the
// values stored on the user record.
type Request struct {
	Identity       *domain.Identity
	SessionKey     string
	Phone          *string
	Address        *string
	Payment        PaymentMethod
	Wallet         *WalletConfirmation
	IdempotencyKey string
}

// Result is the terminal outcome. Trail lists the states passed through.
type Result struct {
	State   State         `json:"state"`
	Reason  Reason        `json:"reason,omitempty"`
	Message string        `json:"message,omitempty"`
	Order   *domain.Order `json:"order,omitempty"`
	Trail   []State       `json:"trail"`
}

// Instructions tell the shopper how much to send and where.
type Instructions struct {
	Wallet      string          `json:"wallet"`
	Destination string          `json:"destination"`
	Amount      decimal.Decimal `json:"amount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shippingFee"`
}

type cartSource interface {
	Manager(ctx context.Context, sessionKey, uid string) (*cart.Manager, error)
}

type profileReader interface {
	Get(ctx context.Context, uid string) (*userrepo.Record, error)
	CheckoutWrite(uid, phone, address string) docstore.Write
}

type orderWriter interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	CreateWrite(o domain.Order) (docstore.Write, error)
}

type committer interface {
	Commit(ctx context.Context, writes ...docstore.Write) error
}

type idempotencyStore interface {
	Reserve(ctx context.Context, key string) (orderID string, reserved bool, err error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

type outcomeRecorder interface {
	Checkout(state, reason string)
}

// Config holds the fixed commercial terms.
type Config struct {
	ShippingFee       decimal.Decimal
	WalletName        string
	WalletDestination string
}

// Service runs the checkout state machine.
//
// Two sessions of the same user are not coordinated: both may submit the
// same cart and create two orders unless the client sends an idempotency key.
type Service struct {
	cfg      Config
	identity identity.Provider
	carts    cartSource
	users    profileReader
	orders   orderWriter
	store    committer
	events   events.Publisher
	idem     idempotencyStore
	metrics  outcomeRecorder
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Deps bundles the collaborators of Service.
type Deps struct {
	Identity    identity.Provider
	Carts       cartSource
	Users       profileReader
	Orders      orderWriter
	Store       committer
	Events      events.Publisher
	Idempotency idempotencyStore
	Metrics     outcomeRecorder
	Logger      *zap.Logger
}

func New(cfg Config, deps Deps) *Service {
	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		cfg:      cfg,
		identity: deps.Identity,
		carts:    deps.Carts,
		users:    deps.Users,
		orders:   deps.Orders,
		store:    deps.Store,
		events:   pub,
		idem:     deps.Idempotency,
		metrics:  deps.Metrics,
		logger:   logging.Or(deps.Logger),
		now:      func() time.Time { return time.Now().UTC() },
		inFlight: make(map[string]struct{}),
	}
}

// Instructions computes the wallet payment instructions for the session's
// current cart.
func (s *Service) Instructions(ctx context.Context, sessionKey, uid string) (Instructions, error) {
	m, err := s.carts.Manager(ctx, sessionKey, uid)
	if err != nil {
		return Instructions{}, err
	}
	subtotal := m.Total()
	return Instructions{
		Wallet:      s.cfg.WalletName,
		Destination: s.cfg.WalletDestination,
		Amount:      subtotal.Add(s.cfg.ShippingFee),
		Subtotal:    subtotal,
		ShippingFee: s.cfg.ShippingFee,
	}, nil
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *Service) release(key string) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}

// InFlight reports whether the session has a checkout running.
func (s *Service) InFlight(sessionKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inFlight[sessionKey]
	return busy
}

type run struct {
	trail []State
}

func (r *run) enter(st State) { r.trail = append(r.trail, st) }

func (r *run) result(st State) Result {
	r.enter(st)
	return Result{State: st, Trail: r.trail}
}

// Checkout runs one attempt to completion. Checks run in a fixed order and
// the first failing one decides the outcome.
func (s *Service) Checkout(ctx context.Context, req Request) Result {
	res := s.checkout(ctx, req)
	if s.metrics != nil {
		s.metrics.Checkout(string(res.State), string(res.Reason))
	}
	return res
}

func (s *Service) checkout(ctx context.Context, req Request) Result {
	r := &run{trail: []State{StateIdle}}

	if req.Identity == nil {
		return s.block(r, ReasonNotAuthenticated)
	}
	uid := req.Identity.UID
	guardKey := req.SessionKey
	if guardKey == "" {
		guardKey = uid
	}
	if !s.acquire(guardKey) {
		return s.block(r, ReasonInProgress)
	}
	defer s.release(guardKey)
	log := s.logger.With(zap.String("uid", uid))

	r.enter(StateVerifying)
	fresh, err := s.identity.Refresh(ctx, *req.Identity)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) {
			return s.block(r, ReasonNotAuthenticated)
		}
		return s.fail(r, log, "refresh identity", err)
	}
	if !fresh.EmailVerified {
		return s.block(r, ReasonEmailNotVerified)
	}

	r.enter(StateValidating)
	profile := domain.UserProfile{UserID: uid}
	rec, err := s.users.Get(ctx, uid)
	switch {
	case err == nil:
		profile = rec.UserProfile
	case !errors.Is(err, domain.ErrNotFound):
		return s.fail(r, log, "load profile", err)
	}
	phone := pick(req.Phone, profile.Phone)
	address := pick(req.Address, profile.Address)
	if phone == "" {
		return s.block(r, ReasonPhoneRequired)
	}
	if address == "" {
		return s.block(r, ReasonAddressRequired)
	}

	manager, err := s.carts.Manager(ctx, req.SessionKey, uid)
	if err != nil {
		return s.fail(r, log, "open cart", err)
	}
	lines := manager.Lines()
	if len(lines) == 0 {
		return s.block(r, ReasonCartEmpty)
	}
	subtotal := domain.LinesTotal(lines)
	total := subtotal.Add(s.cfg.ShippingFee)

	method := domain.PaymentMethodCOD
	status := domain.PaymentPendingCOD
	var reference string
	switch req.Payment {
	case PaymentCOD, "":
	case PaymentWallet:
		r.enter(StatePaymentCapture)
		if req.Wallet == nil || !req.Wallet.Acknowledged {
			return r.result(StateIdle)
		}
		raw := req.Wallet.Reference
		if raw == "" {
			return r.result(StateIdle)
		}
		// Checked as typed. Padding is a malformed reference, not a decline.
		if !ValidReference(raw) {
			return s.block(r, ReasonInvalidTransaction)
		}
		reference = strings.ToUpper(raw)
		method = fmt.Sprintf("%s (TrxID: %s)", s.cfg.WalletName, reference)
		status = domain.PaymentVerifyTrxID
	default:
		return s.block(r, ReasonUnsupportedPayment)
	}

	idemKey := ""
	if req.IdempotencyKey != "" && s.idem != nil {
		idemKey = uid + ":" + req.IdempotencyKey
		existing, reserved, err := s.idem.Reserve(ctx, idemKey)
		if err != nil {
			return s.fail(r, log, "reserve idempotency key", err)
		}
		if existing != "" {
			order, err := s.orders.GetByID(ctx, existing)
			if err != nil {
				return s.fail(r, log, "load replayed order", err)
			}
			res := r.result(StateSuccess)
			res.Order = order
			return res
		}
		if !reserved {
			return s.block(r, ReasonInProgress)
		}
	}

	r.enter(StateSubmitting)
	order := domain.Order{
		ID:             docstore.NewID(),
		UserID:         uid,
		UserEmail:      fresh.Email,
		UserPhone:      phone,
		Items:          lines,
		Subtotal:       subtotal,
		ShippingFee:    s.cfg.ShippingFee,
		TotalAmount:    total,
		Address:        address,
		Status:         domain.OrderPending,
		PaymentStatus:  status,
		PaymentMethod:  method,
		TransactionRef: reference,
		CreatedAt:      s.now(),
	}
	if err := s.submit(ctx, uid, phone, address, order); err != nil {
		if idemKey != "" {
			_ = s.idem.Release(ctx, idemKey)
		}
		return s.fail(r, log, "submit order", err)
	}
	manager.Reset()
	if idemKey != "" {
		if err := s.idem.Complete(ctx, idemKey, order.ID); err != nil {
			log.Warn("complete idempotency key", zap.Error(err))
		}
	}
	s.publish(ctx, log, order)

	log.Info("order placed", zap.String("order_id", order.ID), zap.String("total", order.TotalAmount.String()), zap.String("payment", string(order.PaymentStatus)))
	res := r.result(StateSuccess)
	res.Order = &order
	return res
}

// submit persists the delivery details, the emptied cart and the order in a
// single atomic commit.
func (s *Service) submit(ctx context.Context, uid, phone, address string, order domain.Order) error {
	orderWrite, err := s.orders.CreateWrite(order)
	if err != nil {
		return err
	}
	return s.store.Commit(ctx, s.users.CheckoutWrite(uid, phone, address), orderWrite)
}

func (s *Service) publish(ctx context.Context, log *zap.Logger, order domain.Order) {
	payload := events.OrderCreatedPayload{
		OrderID:       order.ID,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		PaymentStatus: string(order.PaymentStatus),
		Items:         len(order.Items),
	}
	if err := s.events.Publish(ctx, events.OrderCreated, order.ID, payload); err != nil {
		log.Warn("publish order created", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *Service) block(r *run, reason Reason) Result {
	res := r.result(StateBlocked)
	res.Reason = reason
	res.Message = reason.Message()
	return res
}

func (s *Service) fail(r *run, log *zap.Logger, step string, err error) Result {
	log.Error("checkout failed", zap.String("step", step), zap.Error(err))
	res := r.result(StateFailed)
	res.Message = FailedMessage
	return res
}

func pick(override *string, stored string) string {
	if override != nil {
		return strings.TrimSpace(*override)
	}
	return strings.TrimSpace(stored)
}

// ValidReference reports whether ref is exactly ten ASCII letters or digits.
func ValidReference(ref string) bool {
	if len(ref) != 10 {
		return false
	}
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

// Err converts a non-success result to an error for callers that prefer one.
func (r Result) Err() error {
	switch r.State {
	case StateBlocked:
		return blocked(r.Reason)
	case StateFailed:
		return ErrFailed
	}
	return nil
}
