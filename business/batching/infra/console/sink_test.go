package console

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fd1az/multicall-batcher/business/batching/app"
	"github.com/fd1az/multicall-batcher/internal/logger"
)

func TestSink_RecordWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "test", nil)
	sink := New(log)

	sink.Record(context.Background(), app.LevelError, app.MessageAMQPError, map[string]any{
		"exchange": "multicall",
		"err":      "refused",
	})
	if err := sink.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if line["msg"] != app.MessageAMQPError || line["level"] != "ERROR" {
		t.Errorf("line = %v", line)
	}
	if line["exchange"] != "multicall" || line["err"] != "refused" {
		t.Errorf("fields = %v", line)
	}
}
