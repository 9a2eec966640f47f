package service

import (
	"errors"
	"fmt"
)

// 错误类别：处理器按类别映射 HTTP 状态码，通过 errors.Is 匹配。
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrState      = errors.New("invalid state")
	ErrConflict   = errors.New("conflict")
	ErrIntegrity  = errors.New("integrity violation")
)

// 请求单
var (
	ErrRequestOrderNotFound   = fmt.Errorf("%w: request order not found", ErrNotFound)
	ErrRequestOrderTitleTaken = fmt.Errorf("%w: request order title already exists", ErrConflict)
	ErrRequestOrderClosed     = fmt.Errorf("%w: request order is closed", ErrState)
)

// 报价单
var (
	ErrOfferNotFound        = fmt.Errorf("%w: offer not found", ErrNotFound)
	ErrOfferItemNotFound    = fmt.Errorf("%w: offer line item not found", ErrNotFound)
	ErrOfferNotEditable     = fmt.Errorf("%w: offer is not editable in its current status", ErrState)
	ErrOfferTransition      = fmt.Errorf("%w: offer status transition not allowed", ErrState)
	ErrOfferNotRejected     = fmt.Errorf("%w: offer is not in a rejected status", ErrState)
	ErrOfferRetriesExceeded = fmt.Errorf("%w: offer retry limit reached", ErrState)
	ErrOfferTerminal        = fmt.Errorf("%w: offer is in a terminal status", ErrState)
	ErrOfferEmpty           = fmt.Errorf("%w: offer must contain at least one line item", ErrValidation)
	ErrFinanceReviewPending = fmt.Errorf("%w: finance review has undecided line items", ErrState)
	ErrFinanceNotReviewable = fmt.Errorf("%w: offer is not awaiting finance review", ErrState)
)

// 报价单拆分
var (
	ErrSplitNotPartial      = fmt.Errorf("%w: offer is not finance partially accepted", ErrState)
	ErrSplitAlreadyDone     = fmt.Errorf("%w: offer has already been split", ErrState)
	ErrSplitNothingAccepted = fmt.Errorf("%w: split requires at least one accepted line item", ErrState)
	ErrSplitNothingLeft     = fmt.Errorf("%w: split requires at least one remaining line item", ErrState)
	ErrSplitQuantity        = fmt.Errorf("%w: accepted quantity exceeds unallocated requested quantity", ErrIntegrity)
)

// 采购单
var (
	ErrPurchaseOrderNotFound = fmt.Errorf("%w: purchase order not found", ErrNotFound)
	ErrPurchaseItemNotFound  = fmt.Errorf("%w: purchase order item not found", ErrNotFound)
	ErrPurchaseOrderExists   = fmt.Errorf("%w: purchase order already generated for offer", ErrState)
	ErrNoFinalizedItems      = fmt.Errorf("%w: no finalized accepted line items to purchase", ErrValidation)
	ErrOfferNotFinalizing    = fmt.Errorf("%w: offer is not being finalized", ErrState)
)

// 收货与问题单
var (
	ErrReceiptNotFound        = fmt.Errorf("%w: delivery receipt not found", ErrNotFound)
	ErrIssueNotFound          = fmt.Errorf("%w: issue not found", ErrNotFound)
	ErrIssueQuantity          = fmt.Errorf("%w: affected quantity exceeds unaccounted quantity", ErrValidation)
	ErrIssueNotResolvable     = fmt.Errorf("%w: issue is already resolved", ErrState)
	ErrIssueReceiptMismatch   = fmt.Errorf("%w: issue does not belong to the receipt's item", ErrValidation)
	ErrRedeliveryNotEligible  = fmt.Errorf("%w: referenced issue is not a resolved redelivery", ErrState)
	ErrRedeliveryAlreadyDone  = fmt.Errorf("%w: redelivery for this issue was already received", ErrState)
	ErrReceiptQuantityInvalid = fmt.Errorf("%w: receipt good quantity is invalid", ErrValidation)
)
