package settlement

import (
	"context"

	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/settlement"
)

// TransactionScope provides transactional access to the repositories a
// settlement touches. Domain mutations and the cursor advance performed inside
// Execute commit or roll back together.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides repositories sharing one transaction
type TransactionalRepositories interface {
	Bids() auction.BidRepository
	Auctions() auction.AuctionRepository
	Cursor() settlement.CursorRepository
}

// NoOpTransactionScope runs the function against plain repositories without
// a transaction. Used by tests.
type NoOpTransactionScope struct {
	bids     auction.BidRepository
	auctions auction.AuctionRepository
	cursor   settlement.CursorRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(bids auction.BidRepository, auctions auction.AuctionRepository, cursor settlement.CursorRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{bids: bids, auctions: auctions, cursor: cursor}
}

// Execute runs fn without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Bids returns the bid repository
func (s *NoOpTransactionScope) Bids() auction.BidRepository { return s.bids }

// Auctions returns the auction repository
func (s *NoOpTransactionScope) Auctions() auction.AuctionRepository { return s.auctions }

// Cursor returns the cursor repository
func (s *NoOpTransactionScope) Cursor() settlement.CursorRepository { return s.cursor }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
