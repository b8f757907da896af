package handler

import (
	"errors"

	appauction "github.com/plebmarket/backend/internal/application/auction"
	"github.com/plebmarket/backend/internal/application/payout"
	appsettlement "github.com/plebmarket/backend/internal/application/settlement"
	"github.com/plebmarket/backend/internal/infrastructure/lightning"
	"github.com/plebmarket/backend/internal/interfaces/http/dto"
)

// errorCodes is checked in order; the first match wins
var errorCodes = []struct {
	err  error
	code string
}{
	{appauction.ErrInvalidInput, dto.ErrCodeValidation},
	{payout.ErrInvalidRequest, dto.ErrCodeValidation},
	{payout.ErrNotSettled, dto.ErrCodeNotSettled},
	{payout.ErrNoPayoutAddress, dto.ErrCodeNoPayoutAddress},
	{payout.ErrNothingToPay, dto.ErrCodeNothingToPay},
	{payout.ErrAlreadyPaid, dto.ErrCodeAlreadyPaid},
	{appsettlement.ErrAlreadyRunning, dto.ErrCodeReconcilerRunning},
	{lightning.ErrAuthenticationFailed, dto.ErrCodeGateway},
	{lightning.ErrAuthBackoff, dto.ErrCodeGateway},
	{lightning.ErrAuthRetryExhausted, dto.ErrCodeGateway},
	{lightning.ErrGatewayUnavailable, dto.ErrCodeGateway},
	{lightning.ErrGatewayRequestFailed, dto.ErrCodeGateway},
	{lightning.ErrGatewayInvalidResponse, dto.ErrCodeGateway},
	{lightning.ErrResolutionFailed, dto.ErrCodeGateway},
	{lightning.ErrResolverUnavailable, dto.ErrCodeGateway},
}

func codeFor(err error) (string, bool) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code, true
		}
	}
	return "", false
}
