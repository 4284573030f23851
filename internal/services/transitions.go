package services

import domain "github.com/machikado-app/api/internal/domain"

// approvalEffect names the side effect a watched approvalStatus edge demands.
type approvalEffect int

const (
	effectNone approvalEffect = iota
	// effectNotifyAdmin announces a fresh pending submission to the administrator.
	effectNotifyAdmin
	// effectNotifyApproved tells the submitter their entry was accepted.
	effectNotifyApproved
	// effectNotifyRejected tells the submitter their entry was declined.
	effectNotifyRejected
)

// approvalEdge is one observed (before, after) pair. An empty before marks a
// document that had no approvalStatus prior to the write.
type approvalEdge struct {
	before domain.ApprovalStatus
	after  domain.ApprovalStatus
}

// registrationApprovalEffects is the edge table shared by users and shops:
// a fresh pending submission alerts the admin, pending to approved confirms
// the submitter, and any move onto rejected declines them. Every edge absent
// from the table is a no-op.
var registrationApprovalEffects = map[approvalEdge]approvalEffect{
	{"", domain.ApprovalPending}:                       effectNotifyAdmin,
	{domain.ApprovalPending, domain.ApprovalApproved}:  effectNotifyApproved,
	{"", domain.ApprovalRejected}:                      effectNotifyRejected,
	{domain.ApprovalPending, domain.ApprovalRejected}:  effectNotifyRejected,
	{domain.ApprovalApproved, domain.ApprovalRejected}: effectNotifyRejected,
}

// eventApprovalEffects handles only the two decision outcomes. Events never
// alert the admin on creation.
var eventApprovalEffects = map[approvalEdge]approvalEffect{
	{"", domain.ApprovalApproved}:                      effectNotifyApproved,
	{domain.ApprovalPending, domain.ApprovalApproved}:  effectNotifyApproved,
	{domain.ApprovalRejected, domain.ApprovalApproved}: effectNotifyApproved,
	{"", domain.ApprovalRejected}:                      effectNotifyRejected,
	{domain.ApprovalPending, domain.ApprovalRejected}:  effectNotifyRejected,
	{domain.ApprovalApproved, domain.ApprovalRejected}: effectNotifyRejected,
}

func registrationApprovalEffect(before, after domain.ApprovalStatus) approvalEffect {
	if before == after {
		return effectNone
	}
	return registrationApprovalEffects[approvalEdge{before: before, after: after}]
}

func eventApprovalEffect(before, after domain.ApprovalStatus) approvalEffect {
	if before == after {
		return effectNone
	}
	return eventApprovalEffects[approvalEdge{before: before, after: after}]
}

// eventProgressEffect reports whether an observed eventProgress edge notifies
// the owner. Progress mail only fires while the event is approved, and only
// for the three operational outcomes.
func eventProgressEffect(approval domain.ApprovalStatus, before, after domain.EventProgress) bool {
	if approval != domain.ApprovalApproved {
		return false
	}
	if before == after {
		return false
	}
	switch after {
	case domain.ProgressOngoing, domain.ProgressCancelled, domain.ProgressFinished:
		return true
	}
	return false
}
