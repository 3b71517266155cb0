package telemetry

import (
	"github.com/stretchr/testify/mock"
)

// MockSink is a testify mock of Sink for asserting on recorded attempts.
type MockSink struct {
	mock.Mock
}

// Ensure MockSink implements Sink
var _ Sink = (*MockSink)(nil)

func NewMockSink() *MockSink {
	return &MockSink{}
}

func (m *MockSink) Record(event Event) {
	m.Called(event)
}
