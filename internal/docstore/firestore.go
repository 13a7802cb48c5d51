package docstore

import (
	"context"
	"sync"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"nexus-storefront/internal/domain"
)

// Firestore adapts a Cloud Firestore client to Store.
type Firestore struct {
	client *firestore.Client
	logger *zap.Logger
}

func NewFirestore(client *firestore.Client, logger *zap.Logger) *Firestore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Firestore{client: client, logger: logger}
}

func fromSnapshot(collection string, snap *firestore.DocumentSnapshot) Document {
	doc := Document{Collection: collection}
	if snap == nil {
		return doc
	}
	if snap.Ref != nil {
		doc.ID = snap.Ref.ID
	}
	if snap.Exists() {
		doc.Exists = true
		doc.Fields = snap.Data()
		doc.UpdatedAt = snap.UpdateTime
	}
	return doc
}

func (s *Firestore) Get(ctx context.Context, collection, id string) (Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Document{Collection: collection, ID: id}, domain.ErrNotFound
		}
		return Document{Collection: collection, ID: id}, err
	}
	return fromSnapshot(collection, snap), nil
}

func (s *Firestore) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	ref := s.client.Collection(collection).Doc(id)
	var err error
	if merge {
		_, err = ref.Set(ctx, fields, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, fields)
	}
	if err != nil {
		s.logger.Error("firestore set", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
	}
	return err
}

func (s *Firestore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, fields)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *Firestore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return domain.ErrNotFound
	}
	return err
}

func (s *Firestore) List(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, "==", f.Value)
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, fromSnapshot(collection, snap))
	}
	return out, nil
}

// Subscribe streams snapshots of one document. The feed outlives ctx and is
// torn down by Stop only.
func (s *Firestore) Subscribe(_ context.Context, collection, id string, onChange func(Document)) (Subscription, error) {
	feedCtx, cancel := context.WithCancel(context.Background())
	it := s.client.Collection(collection).Doc(id).Snapshots(feedCtx)
	sub := newSubscriber(onChange)

	go func() {
		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled && feedCtx.Err() == nil {
					s.logger.Error("firestore snapshot feed", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
				}
				return
			}
			doc := fromSnapshot(collection, snap)
			doc.ID = id
			sub.deliver(doc, 0)
		}
	}()

	var once sync.Once
	return stopFunc(func() {
		once.Do(func() {
			sub.stop()
			cancel()
			it.Stop()
		})
	}), nil
}

// Commit applies the writes inside one Firestore transaction.
func (s *Firestore) Commit(ctx context.Context, writes ...Write) error {
	return s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		for _, w := range writes {
			ref := s.client.Collection(w.Collection).Doc(w.ID)
			var err error
			if w.Merge {
				err = tx.Set(ref, w.Fields, firestore.MergeAll)
			} else {
				err = tx.Set(ref, w.Fields)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
