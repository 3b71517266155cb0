package telemetry

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/voicetra/pipeline/utils/logger"
)

func sampleEvent() Event {
	return Event{
		Operation:   "translate",
		Attempt:     2,
		Duration:    120 * time.Millisecond,
		PayloadSize: 512,
		StatusCode:  503,
		ErrorKind:   "server_error",
		Timestamp:   time.Now(),
	}
}

func TestLoggerSinkWritesOneLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLoggerSink(logger.NewWriterLogger(&buf))

	sink.Record(sampleEvent())

	line := buf.String()
	assert.Contains(t, line, "op=translate")
	assert.Contains(t, line, "attempt=2")
	assert.Contains(t, line, "status=503")
	assert.Contains(t, line, "outcome=server_error")
}

func TestLoggerSinkReportsSuccessAsOK(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLoggerSink(logger.NewWriterLogger(&buf))

	event := sampleEvent()
	event.StatusCode = 200
	event.ErrorKind = ""
	sink.Record(event)

	assert.Contains(t, buf.String(), "outcome=ok")
}

func TestMultiSinkFansOut(t *testing.T) {
	first := NewMockSink()
	second := NewMockSink()
	first.On("Record", mock.Anything).Return()
	second.On("Record", mock.Anything).Return()

	NewMultiSink(first, second).Record(sampleEvent())

	first.AssertNumberOfCalls(t, "Record", 1)
	second.AssertNumberOfCalls(t, "Record", 1)
}

func TestPrometheusSinkCountsAttempts(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	assert.NoError(t, err)

	sink.Record(sampleEvent())
	sink.Record(sampleEvent())

	success := sampleEvent()
	success.StatusCode = 200
	success.ErrorKind = ""
	sink.Record(success)

	assert.Equal(t, float64(2), testutil.ToFloat64(
		sink.attempts.WithLabelValues("translate", "503", "server_error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		sink.attempts.WithLabelValues("translate", "200", "none")))
}

func TestPrometheusSinkRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	assert.NoError(t, err)

	_, err = NewPrometheusSink(reg)
	assert.Error(t, err)
}

func TestPrometheusMetricNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	assert.NoError(t, err)
	sink.Record(sampleEvent())

	families, err := reg.Gather()
	assert.NoError(t, err)

	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "voicetra_pipeline_attempts_total")
	assert.Contains(t, joined, "voicetra_pipeline_attempt_duration_seconds")
	assert.Contains(t, joined, "voicetra_pipeline_request_payload_bytes")
}
