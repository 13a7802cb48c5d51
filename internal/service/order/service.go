package order

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/events"
	"nexus-storefront/internal/logging"
)

type orderRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, uid string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	SetStatus(ctx context.Context, id string, status domain.OrderStatus) error
	SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error
	Delete(ctx context.Context, id string) error
}

type productLister interface {
	List(ctx context.Context) ([]domain.Product, error)
}

// Service exposes order history to shoppers and order management to admins.
// Order totals are returned as stored.
type Service struct {
	orders   orderRepo
	products productLister
	events   events.Publisher
	logger   *zap.Logger
}

func New(orders orderRepo, products productLister, pub events.Publisher, logger *zap.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{orders: orders, products: products, events: pub, logger: logging.Or(logger)}
}

func (s *Service) ListForUser(ctx context.Context, uid string) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, uid)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.orders.ListAll(ctx)
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", domain.ErrInvalidInput, status)
	}
	if err := s.orders.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.publish(ctx, events.OrderStatusChanged, id, events.OrderStatusChangedPayload{OrderID: id, Status: string(status)})
	return s.orders.GetByID(ctx, id)
}

// TogglePayment flips an order between Paid and the pending status of its
// payment method.
func (s *Service) TogglePayment(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := domain.PaymentPaid
	if o.PaymentStatus == domain.PaymentPaid {
		next = o.PendingPaymentStatus()
	}
	if err := s.orders.SetPaymentStatus(ctx, id, next); err != nil {
		return nil, err
	}
	o.PaymentStatus = next
	s.publish(ctx, events.PaymentStatusChanged, id, events.PaymentStatusChangedPayload{OrderID: id, PaymentStatus: string(next)})
	return o, nil
}

// Cancel removes the order record.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.OrderCancelled, id, events.OrderCancelledPayload{OrderID: id})
	return nil
}

func (s *Service) publish(ctx context.Context, eventType, id string, payload any) {
	if err := s.events.Publish(ctx, eventType, id, payload); err != nil {
		s.logger.Warn("publish order event", zap.String("type", eventType), zap.String("order_id", id), zap.Error(err))
	}
}

type DailySales struct {
	Date  string          `json:"date"`
	Day   string          `json:"day"`
	Sales decimal.Decimal `json:"sales"`
}

type NamedAmount struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Analytics struct {
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	OrderCount      int             `json:"orderCount"`
	DailySales      []DailySales    `json:"dailySales"`
	StatusCounts    []NamedCount    `json:"statusCounts"`
	CategoryRevenue []NamedAmount   `json:"categoryRevenue"`
	TopSelling      []NamedCount    `json:"topSelling"`
	LowStock        []NamedCount    `json:"lowStock"`
}

const (
	analyticsDays = 7
	analyticsTopN = 5
)

// Analytics summarizes every order and the current stock levels.
func (s *Service) Analytics(ctx context.Context) (Analytics, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return Analytics{}, err
	}
	products, err := s.products.List(ctx)
	if err != nil {
		return Analytics{}, err
	}
	return summarize(orders, products), nil
}

func summarize(orders []domain.Order, products []domain.Product) Analytics {
	a := Analytics{TotalRevenue: decimal.Zero, OrderCount: len(orders)}
	byDate := map[string]decimal.Decimal{}
	statuses := map[domain.OrderStatus]int{}
	categories := map[string]decimal.Decimal{}
	sold := map[string]int{}

	for _, o := range orders {
		a.TotalRevenue = a.TotalRevenue.Add(o.TotalAmount)
		date := o.CreatedAt.UTC().Format(time.DateOnly)
		byDate[date] = byDate[date].Add(o.TotalAmount)

		status := o.Status
		if status == "" {
			status = domain.OrderPending
		}
		statuses[status]++

		for _, item := range o.Items {
			cat := item.Category
			if cat == "" {
				cat = "Other"
			}
			categories[cat] = categories[cat].Add(item.Subtotal())
			sold[item.Title] += item.Quantity
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > analyticsDays {
		dates = dates[len(dates)-analyticsDays:]
	}
	a.DailySales = make([]DailySales, 0, len(dates))
	for _, d := range dates {
		t, _ := time.Parse(time.DateOnly, d)
		a.DailySales = append(a.DailySales, DailySales{Date: d, Day: t.Format("Mon"), Sales: byDate[d]})
	}

	for _, st := range domain.OrderStatuses {
		a.StatusCounts = append(a.StatusCounts, NamedCount{Name: string(st), Count: statuses[st]})
	}

	for name, v := range categories {
		a.CategoryRevenue = append(a.CategoryRevenue, NamedAmount{Name: name, Value: v})
	}
	sort.Slice(a.CategoryRevenue, func(i, j int) bool {
		if c := a.CategoryRevenue[i].Value.Cmp(a.CategoryRevenue[j].Value); c != 0 {
			return c > 0
		}
		return a.CategoryRevenue[i].Name < a.CategoryRevenue[j].Name
	})

	for title, qty := range sold {
		a.TopSelling = append(a.TopSelling, NamedCount{Name: title, Count: qty})
	}
	sort.Slice(a.TopSelling, func(i, j int) bool {
		if a.TopSelling[i].Count != a.TopSelling[j].Count {
			return a.TopSelling[i].Count > a.TopSelling[j].Count
		}
		return a.TopSelling[i].Name < a.TopSelling[j].Name
	})
	if len(a.TopSelling) > analyticsTopN {
		a.TopSelling = a.TopSelling[:analyticsTopN]
	}

	for _, p := range products {
		a.LowStock = append(a.LowStock, NamedCount{Name: p.Title, Count: p.Stock})
	}
	sort.SliceStable(a.LowStock, func(i, j int) bool { return a.LowStock[i].Count < a.LowStock[j].Count })
	if len(a.LowStock) > analyticsTopN {
		a.LowStock = a.LowStock[:analyticsTopN]
	}
	return a
}

var exportHeaders = []string{
	"Order ID", "Date", "Customer Email", "Phone", "Address", "Items",
	"Subtotal", "Shipping", "Total", "Status", "Payment Method", "Payment Status",
}

// ExportXLSX writes every order as one spreadsheet row.
func (s *Service) ExportXLSX(ctx context.Context, w io.Writer) error {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetValue(h)
	}
	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(o.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(o.UserEmail)
		row.AddCell().SetValue(o.UserPhone)
		row.AddCell().SetValue(o.Address)
		row.AddCell().SetValue(itemSummary(o.Items))
		row.AddCell().SetValue(o.Subtotal.String())
		row.AddCell().SetValue(o.ShippingFee.String())
		row.AddCell().SetValue(o.TotalAmount.String())
		row.AddCell().SetValue(string(o.Status))
		row.AddCell().SetValue(o.PaymentMethod)
		row.AddCell().SetValue(string(o.PaymentStatus))
	}
	return file.Write(w)
}

func itemSummary(items []domain.CartLine) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s x%d", it.Title, it.Quantity)
	}
	return out
}
