package module

import (
	"fmt"
	"strings"
)

// EncodeCommand renders a command as the single line written to the
// control channel's command pipe.
func EncodeCommand(cmd Command) string { return string(cmd) + "\n" }

// DecodeCommand parses a line received on the command side.
func DecodeCommand(line string) (Command, error) {
	switch Command(strings.TrimSpace(line)) {
	case CmdStage:
		return CmdStage, nil
	case CmdReset:
		return CmdReset, nil
	case CmdPause:
		return CmdPause, nil
	case CmdResume:
		return CmdResume, nil
	case CmdTerminate:
		return CmdTerminate, nil
	default:
		return "", fmt.Errorf("unrecognized control command: %q", line)
	}
}

// EncodeAck renders an ack (nil error means success) as a single line.
// An *AckError is encoded by its Reason, so DecodeAck reproduces it.
func EncodeAck(err error) string {
	if err == nil {
		return "ok\n"
	}
	msg := err.Error()
	if ackErr, ok := err.(*AckError); ok {
		msg = ackErr.Reason
	}
	return "err: " + strings.ReplaceAll(msg, "\n", " ") + "\n"
}

// DecodeAck parses a line received on the ack side.
func DecodeAck(line string) error {
	line = strings.TrimSpace(line)
	if line == "ok" {
		return nil
	}
	return &AckError{Reason: strings.TrimPrefix(line, "err: ")}
}
