package auction

import "github.com/plebmarket/backend/internal/domain/shared"

var (
	ErrAlreadySettled     = shared.NewDomainError("ALREADY_SETTLED", "payment already settled")
	ErrInvalidAmount      = shared.NewDomainError("INVALID_AMOUNT", "amount must be positive")
	ErrNotRunning         = shared.NewDomainError("AUCTION_NOT_RUNNING", "auction is not running")
	ErrNotEnded           = shared.NewDomainError("AUCTION_NOT_ENDED", "auction has not ended")
	ErrBidTooLow          = shared.NewDomainError("BID_TOO_LOW", "amount must be higher than the top bid and the starting bid")
	ErrContributionExists = shared.NewDomainError("CONTRIBUTION_EXISTS", "contribution already requested")
	ErrNoContribution     = shared.NewDomainError("NO_CONTRIBUTION", "no contribution requested")
	ErrNoWinner           = shared.NewDomainError("NO_WINNER", "auction has no winning bid")
)
