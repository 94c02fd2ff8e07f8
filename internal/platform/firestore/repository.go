package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Document pairs a decoded entity with its document id.
type Document[T any] struct {
	ID   string
	Data T
}

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection provides typed access to a Firestore collection. Every method joins the
// transaction bound to ctx by Provider.RunInTx when there is one.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection binds a typed collection helper to the provider.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name)}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Get fetches and decodes the document. Missing documents yield an Error with IsNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	ref, err := c.ref(ctx, id)
	if err != nil {
		return zero, err
	}

	state, inTx := stateFromContext(ctx)
	if inTx {
		if cached, ok := state.lookup(ref.Path); ok {
			if !cached.exists {
				return zero, NotFound(c.op("get"), "document %s not found", id)
			}
			return cached.data.(T), nil
		}
	}

	var snap *firestore.DocumentSnapshot
	if inTx {
		snap, err = state.tx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if err != nil {
		if inTx && status.Code(err) == codes.NotFound {
			state.remember(ref.Path, cachedDoc{exists: false})
		}
		return zero, WrapError(c.op("get"), err)
	}

	var value T
	if err := snap.DataTo(&value); err != nil {
		return zero, fmt.Errorf("firestore: decode %s/%s: %w", c.name, id, err)
	}
	if inTx {
		state.remember(ref.Path, cachedDoc{exists: true, data: value})
	}
	return value, nil
}

// GetAll fetches the listed documents, skipping any that do not exist.
func (c *Collection[T]) GetAll(ctx context.Context, ids []string) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	state, inTx := stateFromContext(ctx)
	var refs []*firestore.DocumentRef
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		ref := client.Collection(c.name).Doc(id)
		if inTx {
			if cached, ok := state.lookup(ref.Path); ok {
				if cached.exists {
					out[id] = cached.data.(T)
				}
				continue
			}
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return out, nil
	}

	var snaps []*firestore.DocumentSnapshot
	if inTx {
		snaps, err = state.tx.GetAll(refs)
	} else {
		snaps, err = client.GetAll(ctx, refs)
	}
	if err != nil {
		return nil, WrapError(c.op("get_all"), err)
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			if inTx {
				state.remember(snap.Ref.Path, cachedDoc{exists: false})
			}
			continue
		}
		var value T
		if err := snap.DataTo(&value); err != nil {
			return nil, fmt.Errorf("firestore: decode %s/%s: %w", c.name, snap.Ref.ID, err)
		}
		if inTx {
			state.remember(snap.Ref.Path, cachedDoc{exists: true, data: value})
		}
		out[snap.Ref.ID] = value
	}
	return out, nil
}

// Set upserts the document.
func (c *Collection[T]) Set(ctx context.Context, id string, value T) error {
	ref, err := c.ref(ctx, id)
	if err != nil {
		return err
	}
	if state, ok := stateFromContext(ctx); ok {
		if err := state.tx.Set(ref, value); err != nil {
			return WrapError(c.op("set"), err)
		}
		state.remember(ref.Path, cachedDoc{exists: true, data: value})
		return nil
	}
	if _, err := ref.Set(ctx, value); err != nil {
		return WrapError(c.op("set"), err)
	}
	return nil
}

// Create writes the document and fails with a conflict when it already exists.
func (c *Collection[T]) Create(ctx context.Context, id string, value T) error {
	ref, err := c.ref(ctx, id)
	if err != nil {
		return err
	}
	if state, ok := stateFromContext(ctx); ok {
		if cached, seen := state.lookup(ref.Path); seen && cached.exists {
			return Conflict(c.op("create"), "document %s already exists", id)
		}
		if err := state.tx.Create(ref, value); err != nil {
			return WrapError(c.op("create"), err)
		}
		state.remember(ref.Path, cachedDoc{exists: true, data: value})
		return nil
	}
	if _, err := ref.Create(ctx, value); err != nil {
		return WrapError(c.op("create"), err)
	}
	return nil
}

// Delete removes the document. Deleting a missing document is not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	ref, err := c.ref(ctx, id)
	if err != nil {
		return err
	}
	if state, ok := stateFromContext(ctx); ok {
		if err := state.tx.Delete(ref); err != nil {
			return WrapError(c.op("delete"), err)
		}
		state.remember(ref.Path, cachedDoc{exists: false})
		return nil
	}
	if _, err := ref.Delete(ctx); err != nil {
		return WrapError(c.op("delete"), err)
	}
	return nil
}

// Query executes a collection query and returns the decoded documents. Inside a transaction the
// query runs through the transaction and must happen before any write.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	query := client.Collection(c.name).Query
	if build != nil {
		query = build(query)
	}

	state, inTx := stateFromContext(ctx)
	var iter *firestore.DocumentIterator
	if inTx {
		iter = state.tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	var docs []Document[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		var value T
		if err := snap.DataTo(&value); err != nil {
			return nil, fmt.Errorf("firestore: decode %s/%s: %w", c.name, snap.Ref.ID, err)
		}
		if inTx {
			state.remember(snap.Ref.Path, cachedDoc{exists: true, data: value})
		}
		docs = append(docs, Document[T]{ID: snap.Ref.ID, Data: value})
	}
	return docs, nil
}

func (c *Collection[T]) ref(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if c == nil || c.provider == nil {
		return nil, errors.New("firestore: collection is not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%s: document id is required", c.op("document"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name).Doc(id), nil
}

func (c *Collection[T]) op(action string) string {
	return c.name + "." + action
}

// Provider returns the provider backing the collection.
func (c *Collection[T]) Provider() *Provider { return c.provider }
