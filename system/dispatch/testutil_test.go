package dispatch

import (
	"io"
	"strings"
	"testing"

	"github.com/r3e-network/algoserver/infrastructure/logging"
)

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewFromEnv("dispatch-test")
}
