package order

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/logging"
)

type docRepo struct {
	store  docstore.Store
	logger *zap.Logger
}

func NewDocstore(store docstore.Store, logger *zap.Logger) Repository {
	return &docRepo{store: store, logger: logging.Or(logger)}
}

func (r *docRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error("order repo: get", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	return decode(doc)
}

func (r *docRepo) ListByUser(ctx context.Context, uid string) ([]domain.Order, error) {
	return r.list(ctx, docstore.Where("userId", uid))
}

func (r *docRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx)
}

// list returns orders newest first.
func (r *docRepo) list(ctx context.Context, filters ...docstore.Filter) ([]domain.Order, error) {
	docs, err := r.store.List(ctx, Collection, filters...)
	if err != nil {
		r.logger.Error("order repo: list", zap.Error(err))
		return nil, err
	}
	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		o, err := decode(doc)
		if err != nil {
			r.logger.Warn("order repo: skip undecodable order", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		out = append(out, *o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *docRepo) SetStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	return r.mergeExisting(ctx, id, map[string]any{"status": string(status)})
}

func (r *docRepo) SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	return r.mergeExisting(ctx, id, map[string]any{"paymentStatus": string(status)})
}

func (r *docRepo) mergeExisting(ctx context.Context, id string, fields map[string]any) error {
	if _, err := r.store.Get(ctx, Collection, id); err != nil {
		return err
	}
	return r.store.Set(ctx, Collection, id, fields, true)
}

func (r *docRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, Collection, id)
}

func (r *docRepo) CreateWrite(o domain.Order) (docstore.Write, error) {
	if o.ID == "" {
		o.ID = docstore.NewID()
	}
	fields, err := docstore.Encode(o)
	if err != nil {
		return docstore.Write{}, err
	}
	delete(fields, "id")
	return docstore.Write{Collection: Collection, ID: o.ID, Fields: fields}, nil
}

func decode(doc docstore.Document) (*domain.Order, error) {
	var o domain.Order
	if err := docstore.Decode(doc.Fields, &o); err != nil {
		return nil, err
	}
	o.ID = doc.ID
	return &o, nil
}
