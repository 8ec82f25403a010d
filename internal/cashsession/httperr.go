package cashsession

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"kasa-backend/internal/cashcount"
	"kasa-backend/internal/fund"
	"kasa-backend/internal/lock"
	"kasa-backend/internal/money"
)

// HTTPError translates domain errors into fiber errors. Anything unexpected
// is logged and hidden behind a generic 500.
func HTTPError(log *zap.Logger, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}

	switch {
	case errors.Is(err, ErrInvalidOpening),
		errors.Is(err, ErrInvalidClosing),
		errors.Is(err, cashcount.ErrInvalidDenomination),
		errors.Is(err, cashcount.ErrInvalidQuantity),
		errors.Is(err, cashcount.ErrCurrencyMismatch),
		errors.Is(err, cashcount.ErrUnknownCurrency),
		errors.Is(err, cashcount.ErrMissingCount),
		errors.Is(err, fund.ErrInvalidAmount),
		errors.Is(err, fund.ErrInvalidName),
		errors.Is(err, money.ErrInvalid),
		errors.Is(err, money.ErrNegative),
		errors.Is(err, money.ErrPrecision),
		errors.Is(err, money.ErrOverflow):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())

	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, fund.ErrFundNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())

	case errors.Is(err, ErrSessionAlreadyOpen),
		errors.Is(err, ErrSessionAlreadyClosed),
		errors.Is(err, fund.ErrInsufficientFunds),
		errors.Is(err, fund.ErrFundInactive),
		errors.Is(err, fund.ErrDuplicateName),
		errors.Is(err, fund.ErrAllocationReleased):
		return fiber.NewError(fiber.StatusConflict, err.Error())

	case errors.Is(err, ErrAggregateUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, ErrAggregateUnavailable.Error())

	case errors.Is(err, lock.ErrNotAcquired):
		return fiber.NewError(fiber.StatusServiceUnavailable, "Şube üzerinde başka bir kasa işlemi sürüyor, tekrar deneyin")
	}

	log.Error("beklenmeyen hata", zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "Beklenmeyen bir hata oluştu")
}
