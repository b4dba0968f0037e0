package observability

import (
	"bytes"
	"strings"
	"testing"
)

func TestRecoverPanic(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(ErrorLevel, buf)

	func() {
		defer RecoverPanic(logger, "stats-poller")
		panic("boom")
	}()

	out := buf.String()
	if !strings.Contains(out, "Panic recovered") {
		t.Errorf("Expected panic logged, got %s", out)
	}
	if !strings.Contains(out, "stats-poller") {
		t.Errorf("Expected operation name in log, got %s", out)
	}
}
