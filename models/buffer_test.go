package models

import "testing"

func TestBufferedMessageTransition(t *testing.T) {
	claim := "batch-1"

	t.Run("pending to processed requires a claim", func(t *testing.T) {
		msg := BufferedMessage{ID: 1, Status: BufferPending}
		if err := msg.Transition(BufferProcessed); err == nil {
			t.Error("processed without a batch claim must be rejected")
		}

		msg.BatchID = &claim
		if err := msg.Transition(BufferProcessed); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if msg.Status != BufferProcessed {
			t.Errorf("expected processed, got %s", msg.Status)
		}
	})

	t.Run("pending to skipped allowed without claim", func(t *testing.T) {
		msg := BufferedMessage{ID: 2, Status: BufferPending}
		if err := msg.Transition(BufferSkipped); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("terminal states are final", func(t *testing.T) {
		msg := BufferedMessage{ID: 3, Status: BufferProcessed, BatchID: &claim}
		if err := msg.Transition(BufferSkipped); err == nil {
			t.Error("processed is terminal")
		}
		msg = BufferedMessage{ID: 4, Status: BufferSkipped}
		if err := msg.Transition(BufferProcessed); err == nil {
			t.Error("skipped is terminal")
		}
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		msg := BufferedMessage{ID: 5, Status: BufferPending}
		if err := msg.Transition("archived"); err == nil {
			t.Error("unknown statuses must be rejected")
		}
	})
}
