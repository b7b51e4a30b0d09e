package redisstore

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Melvud/ChessAnalysis-sub000/internal/codec"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
)

type fakeClient struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	b, ok := value.([]byte)
	if !ok {
		return redis.NewStatusResult("", errors.New("unexpected value type"))
	}
	f.data[key] = append([]byte(nil), b...)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestStore_PutGet(t *testing.T) {
	client := newFakeClient()
	s := NewWithClient(client, codec.Zstd(), WithPrefix("chess"), WithTTL(time.Hour))
	ctx := context.Background()

	want := []byte(`{"positions":[]}`)
	if err := s.Put(ctx, "reports/abc", want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	raw, ok := client.data["chess/reports/abc"]
	if !ok {
		t.Fatalf("value not stored under prefixed key: %v", client.data)
	}
	if bytes.Equal(raw, want) {
		t.Error("value stored uncompressed")
	}
	if client.ttls["chess/reports/abc"] != time.Hour {
		t.Errorf("ttl = %v, want 1h", client.ttls["chess/reports/abc"])
	}

	got, err := s.Get(ctx, "reports/abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Get() = %q, want %q", got, want)
	}
}

func TestStore_GetErrors(t *testing.T) {
	tests := []struct {
		name    string
		getErr  error
		wantErr error
	}{
		{"missing key", nil, store.ErrNotFound},
		{"connection failure", errors.New("connection refused"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			client.getErr = tt.getErr
			s := NewWithClient(client, codec.None())

			_, err := s.Get(context.Background(), "reports/k")
			if err == nil {
				t.Fatal("Get() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && errors.Is(err, store.ErrNotFound) {
				t.Errorf("transport failure reported as not found: %v", err)
			}
		})
	}
}

func TestStore_Close(t *testing.T) {
	client := newFakeClient()
	if err := NewWithClient(client, codec.None()).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !client.closed {
		t.Error("client not closed")
	}
}
