package qdrant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClientConfig_ApplyDefaults(t *testing.T) {
	cfg := &ClientConfig{Host: "qdrant.internal", Port: 6335}
	cfg.ApplyDefaults()

	assert.Equal(t, "qdrant.internal", cfg.Host)
	assert.Equal(t, 6335, cfg.Port)
	assert.Equal(t, 64*1024*1024, cfg.MaxMessageSize)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, qdrant.Distance_Cosine, cfg.Distance)
	assert.Zero(t, cfg.RetryAttempts, "zero retries is an explicit choice")
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ClientConfig)
		wantErr string
	}{
		{"defaults", func(*ClientConfig) {}, ""},
		{"no host", func(c *ClientConfig) { c.Host = "" }, "host is required"},
		{"port too large", func(c *ClientConfig) { c.Port = 70000 }, "invalid port"},
		{"zero message size", func(c *ClientConfig) { c.MaxMessageSize = 0 }, "max message size"},
		{"negative retries", func(c *ClientConfig) { c.RetryAttempts = -1 }, "retry attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.QdrantConfig{
		Host:           "abc.cloud.qdrant.io",
		Port:           6334,
		UseTLS:         true,
		APIKey:         config.Secret("qd-key"),
		RequestTimeout: config.Duration(5 * time.Second),
	})
	assert.Equal(t, "abc.cloud.qdrant.io", cfg.Host)
	assert.True(t, cfg.UseTLS)
	assert.Equal(t, "qd-key", cfg.APIKey)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
}

func TestNewGRPCClient_RequiresLogger(t *testing.T) {
	_, err := NewGRPCClient(DefaultClientConfig(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger is required")
}

func TestToQdrantPoint(t *testing.T) {
	p := toQdrantPoint(&Point{
		ID:     "7f0f3a4e-1d5c-5c3e-9b1a-0c2d3e4f5a6b",
		Vector: []float32{0.1, 0.2},
		Payload: map[string]interface{}{
			"text":        "ROS 2 nodes",
			"chunk_index": 3,
			"score":       0.5,
			"draft":       false,
		},
	})

	assert.Equal(t, "7f0f3a4e-1d5c-5c3e-9b1a-0c2d3e4f5a6b", p.GetId().GetUuid())
	assert.Equal(t, "ROS 2 nodes", p.Payload["text"].GetStringValue())
	assert.Equal(t, int64(3), p.Payload["chunk_index"].GetIntegerValue())
	assert.Equal(t, 0.5, p.Payload["score"].GetDoubleValue())
	assert.False(t, p.Payload["draft"].GetBoolValue())
}

func TestPayloadRoundTrip(t *testing.T) {
	in := map[string]interface{}{
		"page":        "intro.md",
		"chunk_index": 2,
		"tags":        []string{"ros", "nav2"},
		"empty":       nil,
	}
	qp := make(map[string]*qdrant.Value, len(in))
	for k, v := range in {
		qp[k] = toQdrantValue(v)
	}

	out := fromQdrantPayload(qp)
	assert.Equal(t, "intro.md", out["page"])
	assert.Equal(t, int64(2), out["chunk_index"], "integers come back as int64")
	assert.Equal(t, []interface{}{"ros", "nav2"}, out["tags"])
	assert.Nil(t, out["empty"])
	assert.Nil(t, fromQdrantPayload(nil))
}

func TestToQdrantFilter(t *testing.T) {
	assert.Nil(t, toQdrantFilter(nil))
	assert.Nil(t, toQdrantFilter(&Filter{}))

	f := toQdrantFilter(&Filter{
		Must: []Condition{
			{Field: "section", Match: "Topics"},
			{Field: "chunk_index", Match: 0},
		},
		MustNot: []Condition{{Field: "draft", Match: true}},
	})
	require.Len(t, f.Must, 2)
	require.Len(t, f.MustNot, 1)

	first := f.Must[0].GetField()
	assert.Equal(t, "chunk_index", first.GetKey(), "conditions are sorted by field")
	assert.Equal(t, int64(0), first.GetMatch().GetInteger())

	second := f.Must[1].GetField()
	assert.Equal(t, "section", second.GetKey())
	assert.Equal(t, "Topics", second.GetMatch().GetKeyword())

	assert.True(t, f.MustNot[0].GetField().GetMatch().GetBoolean())
}

func TestMatchAll(t *testing.T) {
	assert.Nil(t, MatchAll(nil))

	f := MatchAll(map[string]interface{}{"page": "intro.md"})
	require.Len(t, f.Must, 1)
	assert.Equal(t, Condition{Field: "page", Match: "intro.md"}, f.Must[0])
}

func TestPointID(t *testing.T) {
	assert.Equal(t, "", pointID(nil))
	assert.Equal(t, "abc", pointID(qdrant.NewIDUUID("abc")))
	assert.Equal(t, "42", pointID(qdrant.NewIDNum(42)))
	assert.Nil(t, denseVector(nil))
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{status.Error(codes.Unavailable, "down"), true},
		{status.Error(codes.DeadlineExceeded, "slow"), true},
		{status.Error(codes.ResourceExhausted, "busy"), true},
		{status.Error(codes.InvalidArgument, "bad"), false},
		{status.Error(codes.NotFound, "missing"), false},
		{errors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientError(tt.err))
		})
	}
}

func TestRetryOperation(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		code         codes.Code
		retries      int
		wantErr      bool
		wantAttempts int
		wantLogs     []string
	}{
		{"success", 0, codes.OK, 3, false, 1, nil},
		{"recovers", 1, codes.Unavailable, 3, false, 2, []string{
			"retrying qdrant operation after transient error",
			"qdrant operation recovered after retries",
		}},
		{"exhausted", 10, codes.Unavailable, 2, true, 3, []string{
			"qdrant operation failed after all retries exhausted",
		}},
		{"permanent", 10, codes.InvalidArgument, 3, true, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := logging.NewTestLogger()
			c := &GRPCClient{
				config: &ClientConfig{RetryAttempts: tt.retries, RetryBackoff: time.Millisecond},
				logger: tl.Logger,
			}

			attempts := 0
			err := c.retryOperation(context.Background(), func() error {
				attempts++
				if attempts <= tt.failures {
					return status.Error(tt.code, "failure")
				}
				return nil
			})

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempts, attempts)
			for _, msg := range tt.wantLogs {
				assert.NotZero(t, tl.FilterMessage(msg).Len(), "missing log %q", msg)
			}
		})
	}
}

func TestRetryOperation_ContextCanceled(t *testing.T) {
	c := &GRPCClient{
		config: &ClientConfig{RetryAttempts: 5, RetryBackoff: time.Hour},
		logger: logging.NewTestLogger().Logger,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.retryOperation(ctx, func() error {
		return status.Error(codes.Unavailable, "down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
