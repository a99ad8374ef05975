package model

import (
	"testing"
	"time"
)

func TestStatus_Transitions(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to Status }{
		{Created, Scheduled},
		{Scheduled, Pending},
		{Scheduled, Failed},
		{Pending, Sent},
		{Pending, Failed},
		{Failed, Scheduled},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransitionTo(tr.to) {
			t.Errorf("expected %s -> %s to be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to Status }{
		{Created, Sent},
		{Created, Failed},
		{Created, Pending},
		{Scheduled, Created},
		{Scheduled, Sent},
		{Sent, Scheduled},
		{Sent, Failed},
		{Failed, Sent},
		{Failed, Created},
		{Pending, Scheduled},
	}
	for _, tr := range denied {
		if tr.from.CanTransitionTo(tr.to) {
			t.Errorf("expected %s -> %s to be rejected", tr.from, tr.to)
		}
	}
}

func TestStatus_TerminalAndValid(t *testing.T) {
	t.Parallel()

	if !Sent.Terminal() {
		t.Fatalf("expected sent to be terminal")
	}
	if Failed.Terminal() {
		t.Fatalf("failed must stay retryable")
	}
	if Status("bogus").Valid() {
		t.Fatalf("unknown status must not be valid")
	}
	if Status("bogus").Terminal() {
		t.Fatalf("unknown status must not be terminal")
	}
}

func TestStatus_Deletable(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{Created, Failed} {
		if !s.Deletable() {
			t.Errorf("expected %s deletable", s)
		}
	}
	for _, s := range []Status{Scheduled, Pending, Sent} {
		if s.Deletable() {
			t.Errorf("expected %s not deletable", s)
		}
	}
}

func TestMessage_Due(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m := Message{DeliveryDate: now.Add(-time.Second)}
	if !m.Due(now) {
		t.Fatalf("past delivery date should be due")
	}

	m.DeliveryDate = now
	if !m.Due(now) {
		t.Fatalf("delivery date equal to now should be due")
	}

	m.DeliveryDate = now.Add(time.Second)
	if m.Due(now) {
		t.Fatalf("future delivery date should not be due")
	}
}

func TestAccount_SwitchTripped(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Account{
		LastCheckIn:     now.Add(-8 * 24 * time.Hour),
		CheckInInterval: 7 * 24 * time.Hour,
		GracePeriod:     2 * 24 * time.Hour,
	}
	if a.SwitchTripped(now) {
		t.Fatalf("still inside grace period")
	}

	a.LastCheckIn = now.Add(-10 * 24 * time.Hour)
	if !a.SwitchTripped(now) {
		t.Fatalf("interval plus grace elapsed, switch should trip")
	}

	a.LastCheckIn = time.Time{}
	if a.SwitchTripped(now) {
		t.Fatalf("account that never checked in must not trip the switch")
	}
}
