package ledger

import (
	"context"
	"errors"
)

// Typed client failures. The pipeline treats all of them as non-retryable at
// its level; retry/backoff belongs to the client implementation or operator.
var (
	ErrAuth        = errors.New("ledger authentication failed")
	ErrValidation  = errors.New("ledger rejected the payload")
	ErrUnreachable = errors.New("ledger unreachable")
)

// Account is one bookable account at the ledger.
type Account struct {
	ID   string
	Name string
	Type string
}

// Category is one ledger-side category name.
type Category struct {
	ID   string
	Name string
}

// Client is the pipeline's view of the ledger API.
type Client interface {
	// Submit posts the payload and returns the created transaction id.
	Submit(ctx context.Context, payload Payload) (string, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListCategories(ctx context.Context) ([]Category, error)
}
