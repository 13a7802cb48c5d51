package user

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/logging"
)

type docRepo struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewDocstore returns a Repository over the given document store.
func NewDocstore(store docstore.Store, logger *zap.Logger) Repository {
	return &docRepo{store: store, logger: logging.Or(logger)}
}

func (r *docRepo) Get(ctx context.Context, uid string) (*Record, error) {
	doc, err := r.store.Get(ctx, Collection, uid)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error("user repo: get", zap.String("uid", uid), zap.Error(err))
		}
		return nil, err
	}
	return decodeRecord(uid, doc)
}

func decodeRecord(uid string, doc docstore.Document) (*Record, error) {
	var rec Record
	if err := docstore.Decode(doc.Fields, &rec); err != nil {
		return nil, err
	}
	rec.UserID = uid
	return &rec, nil
}

// LoadCart returns the persisted lines and whether a cart field exists at all.
func (r *docRepo) LoadCart(ctx context.Context, uid string) ([]domain.CartLine, bool, error) {
	doc, err := r.store.Get(ctx, Collection, uid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if _, ok := doc.Fields["cart"]; !ok {
		return nil, false, nil
	}
	rec, err := decodeRecord(uid, doc)
	if err != nil {
		return nil, false, err
	}
	return rec.Cart, true, nil
}

func (r *docRepo) SaveCart(ctx context.Context, uid string, lines []domain.CartLine) error {
	fields, err := cartFields(lines)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, Collection, uid, fields, true)
}

func cartFields(lines []domain.CartLine) (map[string]any, error) {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return docstore.Encode(struct {
		Cart []domain.CartLine `json:"cart"`
	}{Cart: lines})
}

func (r *docRepo) WatchCart(ctx context.Context, uid string, onChange func([]domain.CartLine)) (docstore.Subscription, error) {
	return r.store.Subscribe(ctx, Collection, uid, func(doc docstore.Document) {
		if !doc.Exists {
			onChange(nil)
			return
		}
		rec, err := decodeRecord(uid, doc)
		if err != nil {
			r.logger.Warn("user repo: undecodable cart snapshot", zap.String("uid", uid), zap.Error(err))
			return
		}
		onChange(rec.Cart)
	})
}

func (r *docRepo) UpdateProfile(ctx context.Context, uid string, in ProfileUpdate) error {
	return r.store.Set(ctx, Collection, uid, profileFields(in), true)
}

func profileFields(in ProfileUpdate) map[string]any {
	fields := map[string]any{}
	if in.Email != nil {
		fields["email"] = *in.Email
	}
	if in.Username != nil {
		fields["username"] = *in.Username
	}
	if in.Phone != nil {
		fields["phone"] = *in.Phone
	}
	if in.Address != nil {
		fields["address"] = *in.Address
	}
	return fields
}

func (r *docRepo) SetRole(ctx context.Context, uid, role string) error {
	return r.store.Set(ctx, Collection, uid, map[string]any{"role": role}, true)
}

// CheckoutWrite merges the delivery details and empties the cart in one write.
func (r *docRepo) CheckoutWrite(uid, phone, address string) docstore.Write {
	return docstore.Write{
		Collection: Collection,
		ID:         uid,
		Fields: map[string]any{
			"phone":   phone,
			"address": address,
			"cart":    []any{},
		},
		Merge: true,
	}
}
