package firestore

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	defaultTxAttempts = 5
	defaultTxTimeout  = 15 * time.Second
)

// TxOption customises transaction behaviour.
type TxOption func(*txConfig)

type txConfig struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts overrides the retry attempts for a transaction.
func WithTxAttempts(attempts int) TxOption {
	return func(cfg *txConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
	}
}

// WithTxTimeout sets a timeout for the transaction context.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

type txKey struct{}

// txState carries the active transaction together with every document it has read or written.
// Firestore rejects reads after writes, so repeated reads are served from the cache.
type txState struct {
	tx *firestore.Transaction

	mu   sync.Mutex
	docs map[string]cachedDoc
}

type cachedDoc struct {
	exists bool
	data   any
}

func (s *txState) lookup(path string) (cachedDoc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	return doc, ok
}

func (s *txState) remember(path string, doc cachedDoc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = doc
}

func stateFromContext(ctx context.Context) (*txState, bool) {
	state, ok := ctx.Value(txKey{}).(*txState)
	return state, ok && state != nil
}

// InTransaction reports whether ctx is bound to a running transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := stateFromContext(ctx)
	return ok
}

// RunInTx executes fn inside a Firestore transaction. Collections used with the ctx handed to fn
// join the transaction. Nested calls reuse the outer transaction.
func (p *Provider) RunInTx(ctx context.Context, fn func(ctx context.Context) error, opts ...TxOption) error {
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}
	if InTransaction(ctx) {
		return fn(ctx)
	}

	client, err := p.Client(ctx)
	if err != nil {
		return err
	}

	cfg := txConfig{attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	txnCtx := ctx
	if cfg.timeout > 0 {
		deadline, hasDeadline := ctx.Deadline()
		if !hasDeadline || time.Until(deadline) > cfg.timeout {
			var cancel context.CancelFunc
			txnCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
			defer cancel()
		}
	}

	err = client.RunTransaction(txnCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		// A fresh cache per attempt; retried attempts must not see the aborted attempt's reads.
		state := &txState{tx: tx, docs: make(map[string]cachedDoc)}
		return fn(context.WithValue(ctx, txKey{}, state))
	}, firestore.MaxAttempts(cfg.attempts))

	return WrapError("transaction", err)
}
