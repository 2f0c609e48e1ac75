package billing

import "errors"

var (
	ErrListCandidates   = errors.New("failed to list billing candidates")
	ErrInvalidRefund    = errors.New("invalid refund request")
	ErrRefundInProgress = errors.New("another refund of this record is in progress")
)
