package strategy

import "errors"

var (
	// ErrPrematureReport is returned when a report cycle arrives while
	// the open epoch is not yet eligible to close. No state changes.
	ErrPrematureReport = errors.New("report before epoch close condition")

	// ErrReentrantReport rejects a report entering while another
	// lifecycle operation is in flight.
	ErrReentrantReport = errors.New("reentrant report")

	// ErrNoPosition is returned when a close is attempted with no
	// active range.
	ErrNoPosition = errors.New("no active position")

	// ErrZeroLiquidity is returned when the idle balance sizes to zero
	// liquidity and there is nothing to deploy.
	ErrZeroLiquidity = errors.New("computed liquidity is zero")
)
