package module

import (
	"errors"
	"testing"
	"time"
)

func TestScriptPairDeliversCommandAndAck(t *testing.T) {
	ctrl, transport := NewScriptPair()

	if err := ctrl.Send(CmdStage); err != nil {
		t.Fatalf("send: %v", err)
	}
	cmd, ok := transport.NextCommand()
	if !ok || cmd != CmdStage {
		t.Fatalf("NextCommand = %s, %v, want stage, true", cmd, ok)
	}

	transport.Ack(nil)
	if err := ctrl.Ack(time.Second); err != nil {
		t.Fatalf("ack: %v", err)
	}
}

func TestScriptControllerAckTimesOutWithNoReply(t *testing.T) {
	ctrl, _ := NewScriptPair()
	if err := ctrl.Ack(10 * time.Millisecond); !errors.Is(err, ErrAckTimeout) {
		t.Fatalf("expected ErrAckTimeout, got %v", err)
	}
}

func TestScriptControllerCloseEndsTransportLoop(t *testing.T) {
	ctrl, transport := NewScriptPair()
	if err := ctrl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := transport.NextCommand(); ok {
		t.Fatal("expected NextCommand to report closed after Close")
	}
}
