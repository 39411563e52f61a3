package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
)

// Document is a decoded Firestore document with its metadata timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	UpdateTime time.Time
}

// Decoder hydrates the strongly typed entity from a snapshot.
type Decoder[T any] func(ctx context.Context, snap *firestore.DocumentSnapshot) (T, error)

// ReadRepository provides typed reads from one collection.
type ReadRepository[T any] struct {
	provider   *Provider
	collection string
	decode     Decoder[T]
}

// NewReadRepository binds a ReadRepository to a collection. A nil decoder uses
// Firestore's native struct decoding.
func NewReadRepository[T any](provider *Provider, collection string, decode Decoder[T]) *ReadRepository[T] {
	if decode == nil {
		decode = StructDecoder[T]()
	}
	return &ReadRepository[T]{
		provider:   provider,
		collection: strings.TrimSpace(collection),
		decode:     decode,
	}
}

// Get fetches the document by ID and decodes it.
func (r *ReadRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	op := r.collection + ".get"
	if strings.TrimSpace(id) == "" {
		return Document[T]{}, WrapError(op, errors.New("firestore: document id is required"))
	}
	if r.provider == nil {
		return Document[T]{}, WrapError(op, errors.New("firestore: provider is nil"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return Document[T]{}, err
	}

	snapshot, err := client.Collection(r.collection).Doc(id).Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(op, err)
	}
	entity, err := r.decode(ctx, snapshot)
	if err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode document %s: %w", id, err)
	}
	return Document[T]{
		ID:         snapshot.Ref.ID,
		Data:       entity,
		UpdateTime: snapshot.UpdateTime,
	}, nil
}

// StructDecoder populates the target struct using Firestore's native decoding.
func StructDecoder[T any]() Decoder[T] {
	return func(_ context.Context, snap *firestore.DocumentSnapshot) (T, error) {
		var target T
		err := snap.DataTo(&target)
		return target, err
	}
}
