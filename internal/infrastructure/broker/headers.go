package broker

import (
	"strconv"

	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	RetryHeader     = "x-retry-count"
	DLQReasonHeader = "x-dlq-reason"
)

// HeaderCarrier adapts kafka-go headers to OpenTelemetry's TextMapCarrier.
type HeaderCarrier struct {
	Headers *[]kafka.Header
}

func (c HeaderCarrier) Get(key string) string {
	for _, h := range *c.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c HeaderCarrier) Set(key, value string) {
	for i, h := range *c.Headers {
		if h.Key == key {
			(*c.Headers)[i].Value = []byte(value)
			return
		}
	}
	*c.Headers = append(*c.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.Headers))
	for _, h := range *c.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// getRetryCount reads the retry header. A missing or invalid header counts as 0.
func getRetryCount(headers []kafka.Header) int {
	for _, h := range headers {
		if h.Key != RetryHeader {
			continue
		}
		count, err := strconv.Atoi(string(h.Value))
		if err != nil {
			logger.L().Warn("Invalid retry header value",
				zap.String("headerKey", RetryHeader),
				zap.ByteString("headerValue", h.Value),
				zap.Error(err),
			)
			return 0
		}
		return count
	}
	return 0
}

// withHeader returns a copy of headers with key set to value.
func withHeader(headers []kafka.Header, key string, value []byte) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers)+1)
	found := false
	for _, h := range headers {
		if h.Key == key {
			out = append(out, kafka.Header{Key: key, Value: value})
			found = true
			continue
		}
		out = append(out, h)
	}
	if !found {
		out = append(out, kafka.Header{Key: key, Value: value})
	}
	return out
}

func updateRetryHeader(headers []kafka.Header, retryCount int) []kafka.Header {
	return withHeader(headers, RetryHeader, []byte(strconv.Itoa(retryCount)))
}
