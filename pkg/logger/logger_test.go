package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	logrus.SetOutput(buf)
	t.Cleanup(func() { logrus.SetOutput(os.Stdout) })
	return buf
}

func TestWithPayloadAttachesFields(t *testing.T) {
	Init(logrus.InfoLevel)
	buf := captureOutput(t)

	New("test_service").WithPayload(map[string]interface{}{
		"files": 3,
	}).Info("batch done")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["message"] != "batch done" || entry["service_name"] != "test_service" {
		t.Errorf("unexpected entry: %v", entry)
	}
	payload, ok := entry["payload"].(map[string]interface{})
	if !ok || payload["files"] != float64(3) {
		t.Errorf("payload not attached: %v", entry)
	}
}

func TestDebugRespectsLevel(t *testing.T) {
	Init(logrus.InfoLevel)
	buf := captureOutput(t)
	log := New("test_service")

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug message must be suppressed at info level: %s", buf.String())
	}

	Init(logrus.DebugLevel)
	logrus.SetOutput(buf)
	log.Debug("visible")
	if buf.Len() == 0 {
		t.Error("debug message must be emitted at debug level")
	}
}
