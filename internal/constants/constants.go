package constants

// 采购需求单状态常量
const (
	RequestOrderStatusOpen       = "open"
	RequestOrderStatusSuperseded = "superseded"
	RequestOrderStatusClosed     = "closed"
)

// 报价单状态常量
const (
	OfferStatusUnstarted              = "unstarted"
	OfferStatusInProgress             = "in_progress"
	OfferStatusSubmitted              = "submitted"
	OfferStatusManagerAccepted        = "manager_accepted"
	OfferStatusManagerRejected        = "manager_rejected"
	OfferStatusFinanceAccepted        = "finance_accepted"
	OfferStatusFinanceRejected        = "finance_rejected"
	OfferStatusFinancePartialAccepted = "finance_partially_accepted"
	OfferStatusFinalizing             = "finalizing"
	OfferStatusCompleted              = "completed"
	OfferStatusCancelled              = "cancelled"
)

// 报价项财务审批状态常量
const (
	FinanceStatusPending  = "pending"
	FinanceStatusAccepted = "accepted"
	FinanceStatusRejected = "rejected"
)

// 报价时间线事件类型常量
const (
	TimelineEventOfferCreated           = "offer_created"
	TimelineEventOfferStarted           = "offer_started"
	TimelineEventOfferSubmitted         = "offer_submitted"
	TimelineEventManagerAccepted        = "manager_accepted"
	TimelineEventManagerRejected        = "manager_rejected"
	TimelineEventFinanceAccepted        = "finance_accepted"
	TimelineEventFinanceRejected        = "finance_rejected"
	TimelineEventFinancePartialAccepted = "finance_partially_accepted"
	TimelineEventOfferFinalizing        = "offer_finalizing"
	TimelineEventOfferCompleted         = "offer_completed"
	TimelineEventOfferCancelled         = "offer_cancelled"
	TimelineEventOfferRetried           = "offer_retried"
	TimelineEventOfferSplit             = "offer_split"
)

// 采购单/采购项状态常量
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusPartial   = "partial"
	PurchaseStatusDisputed  = "disputed"
	PurchaseStatusCompleted = "completed"
)

// 收货问题类型常量
const (
	IssueTypeDamaged   = "damaged"
	IssueTypeMissing   = "missing"
	IssueTypeWrongItem = "wrong_item"
	IssueTypeLate      = "late"
	IssueTypeOther     = "other"
)

// 收货问题状态常量
const (
	IssueStatusReported   = "reported"
	IssueStatusInProgress = "in_progress"
	IssueStatusResolved   = "resolved"
)

// 问题处理方式常量
const (
	ResolutionTypeRedelivery     = "redelivery"
	ResolutionTypeRefund         = "refund"
	ResolutionTypeAcceptShortage = "accept_shortage"
	ResolutionTypeReplacement    = "replacement"
)

// 通知事件类型常量
const (
	NotificationEventOfferSubmitted       = "offer_submitted"
	NotificationEventOfferDecided         = "offer_decided"
	NotificationEventOfferSplit           = "offer_split"
	NotificationEventPurchaseOrderCreated = "purchase_order_created"
	NotificationEventDeliveryDisputed     = "delivery_disputed"
	NotificationEventIssueResolved        = "issue_resolved"
)

// 通知级别常量
const (
	NotifySeverityInfo     = "info"
	NotifySeverityWarning  = "warning"
	NotifySeverityCritical = "critical"
)

// 队列与任务名常量
const (
	QueueDefault             = "default"
	TaskNotificationDispatch = "notification:dispatch"
	TaskReconcileOrder       = "reconcile:order"
)
