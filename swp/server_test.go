package swp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/p-hoffmann/trexsql-ext-sub003/batch"
	"github.com/p-hoffmann/trexsql-ext-sub003/shuffle"
)

func startTestServer(t *testing.T, handler ExchangeHandler) *Server {
	t.Helper()
	srv := NewServer(handler)
	require.NoError(t, srv.Start("127.0.0.1:0"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv
}

func TestExchangeEndToEnd(t *testing.T) {
	t.Parallel()

	for _, codec := range []Codec{&MsgpackCodec{}, &JSONCodec{}} {
		codec := codec
		t.Run(codec.Name(), func(t *testing.T) {
			t.Parallel()

			registry := shuffle.NewRegistry()
			srv := startTestServer(t, registry)

			desc := testDescriptor()
			desc.ShuffleID = "shuffle-e2e-" + codec.Name()
			registry.Register(desc.ShuffleID, 1)

			client := NewClient(WithClientCodec(codec))
			err := client.SendPartition(context.Background(), srv.Addr(), desc, 1, testSchema(),
				[]*batch.Batch{testBatch(t, "a", "b"), testBatch(t, "c")})
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			batches, err := registry.WaitForPartition(ctx, desc.ShuffleID, 1, 1)
			require.NoError(t, err)
			require.Equal(t, 3, batch.TotalRows(batches))

			var names []string
			for _, b := range batches {
				for _, v := range b.Column(0) {
					names = append(names, v.(string))
				}
			}
			require.ElementsMatch(t, []string{"a", "b", "c"}, names)
		})
	}
}

func TestExchangeConcurrentPartitions(t *testing.T) {
	t.Parallel()

	registry := shuffle.NewRegistry()
	srv := startTestServer(t, registry)

	desc := testDescriptor()
	desc.ShuffleID = "shuffle-concurrent"
	registry.Register(desc.ShuffleID, 1)

	client := NewClient()
	errCh := make(chan error, desc.NumPartitions)
	for pid := 0; pid < desc.NumPartitions; pid++ {
		pid := pid
		go func() {
			errCh <- client.SendPartition(context.Background(), srv.Addr(), desc, pid, testSchema(),
				[]*batch.Batch{testBatch(t, fmt.Sprintf("row-%d", pid))})
		}()
	}
	for pid := 0; pid < desc.NumPartitions; pid++ {
		require.NoError(t, <-errCh)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for pid := 0; pid < desc.NumPartitions; pid++ {
		batches, err := registry.WaitForPartition(ctx, desc.ShuffleID, pid, 1)
		require.NoError(t, err)
		require.Equal(t, 1, batch.TotalRows(batches))
	}

	require.Equal(t, int64(desc.NumPartitions), srv.ExchangesReceived())
}

type failingHandler struct{ msg string }

func (h *failingHandler) HandleExchange(context.Context, *shuffle.Descriptor, int, batch.Schema, []*batch.Batch) error {
	return fmt.Errorf("%s", h.msg)
}

func TestExchangeHandlerErrorReachesSender(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t, &failingHandler{msg: "unknown shuffle"})

	client := NewClient()
	err := client.SendPartition(context.Background(), srv.Addr(), testDescriptor(), 0, testSchema(),
		[]*batch.Batch{testBatch(t, "a")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown shuffle")
	require.Equal(t, int64(0), srv.ExchangesReceived())
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t, shuffle.NewRegistry())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
}
