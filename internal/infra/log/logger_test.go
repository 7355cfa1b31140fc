package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestComponentLoggerAddsField(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(newLogger(&buf, "prod"), "interval")
	logger.Debug().Msg("скрыто")
	logger.Info().Msg("видно")

	out := buf.String()
	if strings.Contains(out, "скрыто") {
		t.Fatalf("debug не должен писаться вне dev: %s", out)
	}
	if !strings.Contains(out, `"component":"interval"`) {
		t.Fatalf("ожидали поле component: %s", out)
	}
}
