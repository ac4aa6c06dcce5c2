package transport

import (
	"bytes"
	"encoding/json"

	"golang.org/x/time/rate"
)

// remoteLogRate bounds log traffic to the broker.
const remoteLogRate = 5

type remoteLog struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// LogSink forwards encoded log lines to the logs topic. Lines are dropped
// while disconnected or above the rate limit. Use with logger.Tee.
type LogSink struct {
	m       *MQTT
	limiter *rate.Limiter
}

func (m *MQTT) LogSink() *LogSink {
	return &LogSink{m: m, limiter: rate.NewLimiter(rate.Limit(remoteLogRate), remoteLogRate)}
}

func (s *LogSink) Write(p []byte) (int, error) {
	if !s.m.Connected() || !s.limiter.Allow() {
		return len(p), nil
	}
	body, err := json.Marshal(remoteLog{ID: s.m.deviceID, Message: string(bytes.TrimSpace(p))})
	if err != nil {
		return len(p), nil
	}
	s.m.client.Publish(s.m.Topic(TopicLogs), 0, false, body)
	return len(p), nil
}

func (s *LogSink) Sync() error { return nil }
