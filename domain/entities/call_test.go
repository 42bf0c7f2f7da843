package entities

import (
	"testing"
	"time"
)

func TestAppendTurn(t *testing.T) {
	sess := &CallSession{CallID: "call-1", From: "+15551234567"}

	sess.AppendTurn(RoleCaller, "hello")
	sess.AppendTurn(RoleAssistant, "hi there")

	if len(sess.Turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(sess.Turns))
	}
	if sess.Turns[0].Role != RoleCaller {
		t.Errorf("Expected caller role, got %s", sess.Turns[0].Role)
	}
	if sess.Turns[1].Text != "hi there" {
		t.Errorf("Expected assistant text, got %s", sess.Turns[1].Text)
	}
	if sess.LastActivity.IsZero() {
		t.Error("Expected LastActivity to be set")
	}
}

func TestAppendTurnDropsOldestBeyondCap(t *testing.T) {
	sess := &CallSession{CallID: "call-1", From: "+15551234567"}

	sess.AppendTurn(RoleCaller, "first")
	for i := 0; i < MaxTurns; i++ {
		sess.AppendTurn(RoleAssistant, "filler")
	}

	if len(sess.Turns) != MaxTurns {
		t.Fatalf("Expected %d turns, got %d", MaxTurns, len(sess.Turns))
	}
	if sess.Turns[0].Text == "first" {
		t.Error("Expected the oldest turn to be dropped")
	}
}

func TestCallSessionValidate(t *testing.T) {
	valid := &CallSession{CallID: "call-1", From: "+15551234567"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid session, got %v", err)
	}

	missingID := &CallSession{From: "+15551234567"}
	if err := missingID.Validate(); err == nil {
		t.Error("Expected error for missing call id")
	}

	missingFrom := &CallSession{CallID: "call-1"}
	if err := missingFrom.Validate(); err == nil {
		t.Error("Expected error for missing from number")
	}
}

func TestLedgerRecordAndReset(t *testing.T) {
	now := time.Now()
	ledger := &DailyCallLedger{WindowStart: now}

	ledger.Record(now)
	ledger.Record(now)
	if ledger.Count != 2 {
		t.Errorf("Expected count 2, got %d", ledger.Count)
	}

	// Inside the window the count holds.
	ledger.ResetIfExpired(now.Add(23 * time.Hour))
	if ledger.Count != 2 {
		t.Errorf("Expected count preserved inside window, got %d", ledger.Count)
	}

	// A full day later the window resets.
	later := now.Add(25 * time.Hour)
	ledger.ResetIfExpired(later)
	if ledger.Count != 0 {
		t.Errorf("Expected count reset after window, got %d", ledger.Count)
	}
	if !ledger.WindowStart.Equal(later) {
		t.Error("Expected window start to move on reset")
	}
}

func TestLedgerCountNeverNegative(t *testing.T) {
	ledger := &DailyCallLedger{Count: -5, WindowStart: time.Now()}
	ledger.ResetIfExpired(time.Now())
	if ledger.Count < 0 {
		t.Errorf("Expected count clamped at 0, got %d", ledger.Count)
	}
}
