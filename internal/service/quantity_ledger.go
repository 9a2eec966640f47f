package service

import (
	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/models"
)

// 数量台账：基于收货记录与问题单推导采购项/采购单的履约状态。
// 所有函数均为纯计算，不触碰数据库。

// goodReceivedQty 累计完好收货数量
func goodReceivedQty(receipts []models.DeliveryReceipt) int {
	total := 0
	for _, r := range receipts {
		total += r.GoodQuantity
	}
	return total
}

// closedIssueQty 已解决且不走补发的问题数量（退款、认损、换货）
func closedIssueQty(issues []models.Issue) int {
	total := 0
	for _, issue := range issues {
		if issue.Status != constants.IssueStatusResolved {
			continue
		}
		if issue.ResolutionType == constants.ResolutionTypeRedelivery {
			continue
		}
		total += issue.AffectedQuantity
	}
	return total
}

// unresolvedIssueQty 未解决问题涉及的数量
func unresolvedIssueQty(issues []models.Issue) int {
	total := 0
	for _, issue := range issues {
		if issue.Status == constants.IssueStatusResolved {
			continue
		}
		total += issue.AffectedQuantity
	}
	return total
}

// unresolvedIssueCount 未解决问题数量
func unresolvedIssueCount(issues []models.Issue) int {
	count := 0
	for _, issue := range issues {
		if issue.Status != constants.IssueStatusResolved {
			count++
		}
	}
	return count
}

// pendingRedeliveryQty 已承诺补发但尚未到货的数量。
// 每个补发问题单独结算：已到的补发量最多抵扣其受影响数量，不跨问题借位。
func pendingRedeliveryQty(receipts []models.DeliveryReceipt, issues []models.Issue) int {
	redelivered := make(map[uint]int)
	for _, r := range receipts {
		if !r.IsRedelivery || r.IssueID == nil {
			continue
		}
		redelivered[*r.IssueID] += r.GoodQuantity
	}

	total := 0
	for _, issue := range issues {
		if issue.Status != constants.IssueStatusResolved {
			continue
		}
		if issue.ResolutionType != constants.ResolutionTypeRedelivery {
			continue
		}
		pending := issue.AffectedQuantity - redelivered[issue.ID]
		if pending > 0 {
			total += pending
		}
	}
	return total
}

// deriveItemStatus 推导采购项履约状态。
// 优先级：存在未解决问题 > 补发未到 > 完好+已关闭覆盖订购量 > 部分到货 > 待收货。
func deriveItemStatus(orderedQty int, receipts []models.DeliveryReceipt, issues []models.Issue) string {
	if unresolvedIssueCount(issues) > 0 {
		return constants.PurchaseStatusDisputed
	}
	if pendingRedeliveryQty(receipts, issues) > 0 {
		return constants.PurchaseStatusPending
	}
	accounted := goodReceivedQty(receipts) + closedIssueQty(issues)
	if accounted >= orderedQty {
		return constants.PurchaseStatusCompleted
	}
	if accounted > 0 {
		return constants.PurchaseStatusPartial
	}
	return constants.PurchaseStatusPending
}

// deriveOrderStatus 汇总采购项状态推导采购单状态。
// 任一采购项有争议则整单有争议，避免遮蔽资金风险。
func deriveOrderStatus(itemStatuses []string) string {
	if len(itemStatuses) == 0 {
		return constants.PurchaseStatusPending
	}
	allCompleted := true
	for _, status := range itemStatuses {
		if status == constants.PurchaseStatusDisputed {
			return constants.PurchaseStatusDisputed
		}
		if status != constants.PurchaseStatusCompleted {
			allCompleted = false
		}
	}
	if allCompleted {
		return constants.PurchaseStatusCompleted
	}
	return constants.PurchaseStatusPartial
}

// unaccountedQty 尚未被收货或问题覆盖的数量，作为新问题单可申报的上限
func unaccountedQty(orderedQty int, receipts []models.DeliveryReceipt, issues []models.Issue) int {
	accounted := goodReceivedQty(receipts) + closedIssueQty(issues) +
		unresolvedIssueQty(issues) + pendingRedeliveryQty(receipts, issues)
	remaining := orderedQty - accounted
	if remaining < 0 {
		return 0
	}
	return remaining
}
