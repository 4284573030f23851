package services

import (
	"testing"

	domain "github.com/machikado-app/api/internal/domain"
)

func TestRegistrationApprovalEffects(t *testing.T) {
	cases := []struct {
		name   string
		before domain.ApprovalStatus
		after  domain.ApprovalStatus
		want   approvalEffect
	}{
		{"fresh pending alerts admin", "", domain.ApprovalPending, effectNotifyAdmin},
		{"pending to approved confirms", domain.ApprovalPending, domain.ApprovalApproved, effectNotifyApproved},
		{"pending to rejected declines", domain.ApprovalPending, domain.ApprovalRejected, effectNotifyRejected},
		{"approved to rejected declines", domain.ApprovalApproved, domain.ApprovalRejected, effectNotifyRejected},
		{"unchanged pending is silent", domain.ApprovalPending, domain.ApprovalPending, effectNone},
		{"unchanged approved is silent", domain.ApprovalApproved, domain.ApprovalApproved, effectNone},
		{"rejected to approved is silent", domain.ApprovalRejected, domain.ApprovalApproved, effectNone},
		{"fresh approved is silent", "", domain.ApprovalApproved, effectNone},
	}

	for _, tc := range cases {
		if got := registrationApprovalEffect(tc.before, tc.after); got != tc.want {
			t.Fatalf("%s: effect(%q, %q) = %d, want %d", tc.name, tc.before, tc.after, got, tc.want)
		}
	}
}

func TestEventApprovalEffects(t *testing.T) {
	cases := []struct {
		name   string
		before domain.ApprovalStatus
		after  domain.ApprovalStatus
		want   approvalEffect
	}{
		{"pending to approved confirms", domain.ApprovalPending, domain.ApprovalApproved, effectNotifyApproved},
		{"rejected to approved confirms", domain.ApprovalRejected, domain.ApprovalApproved, effectNotifyApproved},
		{"pending to rejected declines", domain.ApprovalPending, domain.ApprovalRejected, effectNotifyRejected},
		{"fresh pending is silent", "", domain.ApprovalPending, effectNone},
		{"unchanged rejected is silent", domain.ApprovalRejected, domain.ApprovalRejected, effectNone},
	}

	for _, tc := range cases {
		if got := eventApprovalEffect(tc.before, tc.after); got != tc.want {
			t.Fatalf("%s: effect(%q, %q) = %d, want %d", tc.name, tc.before, tc.after, got, tc.want)
		}
	}
}

func TestEventProgressEffect(t *testing.T) {
	cases := []struct {
		name     string
		approval domain.ApprovalStatus
		before   domain.EventProgress
		after    domain.EventProgress
		want     bool
	}{
		{"ongoing fires while approved", domain.ApprovalApproved, domain.ProgressScheduled, domain.ProgressOngoing, true},
		{"cancelled fires while approved", domain.ApprovalApproved, domain.ProgressScheduled, domain.ProgressCancelled, true},
		{"finished fires while approved", domain.ApprovalApproved, domain.ProgressOngoing, domain.ProgressFinished, true},
		{"never fires while pending", domain.ApprovalPending, domain.ProgressScheduled, domain.ProgressOngoing, false},
		{"never fires while rejected", domain.ApprovalRejected, domain.ProgressScheduled, domain.ProgressCancelled, false},
		{"unchanged progress is silent", domain.ApprovalApproved, domain.ProgressOngoing, domain.ProgressOngoing, false},
		{"moving back to scheduled is silent", domain.ApprovalApproved, domain.ProgressOngoing, domain.ProgressScheduled, false},
	}

	for _, tc := range cases {
		if got := eventProgressEffect(tc.approval, tc.before, tc.after); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
