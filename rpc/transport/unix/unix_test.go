package unix

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dMap/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestResponse(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "dmap.sock")

	server := NewUnixServerTransport(0, 4)
	server.RegisterHandler(func(_ context.Context, partitionID uint32, req []byte) []byte {
		return []byte(fmt.Sprintf("%d:%s", partitionID, req))
	})
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen(common.ServerConfig{
			TimeoutSecond: 5,
			Transport:     common.ServerTransportConfig{Endpoint: socket},
		})
	}()

	client := NewUnixClientTransport()
	config := common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{socket},
			RetryCount:             3,
			ConnectionsPerEndpoint: 2,
		},
	}
	require.Eventually(t, func() bool { return client.Connect(config) == nil }, 5*time.Second, 20*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Send(context.Background(), uint32(i), []byte(fmt.Sprintf("req-%d", i)))
			if assert.NoError(t, err) {
				assert.Equal(t, fmt.Sprintf("%d:req-%d", i, i), string(resp))
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, client.Close())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.NoError(t, <-listenErr)
}

func TestSendHonorsContext(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "dmap.sock")
	release := make(chan struct{})

	server := NewUnixDefaultServerTransport()
	server.RegisterHandler(func(context.Context, uint32, []byte) []byte {
		<-release
		return nil
	})
	go func() {
		_ = server.Listen(common.ServerConfig{Transport: common.ServerTransportConfig{Endpoint: socket}})
	}()

	client := NewUnixClientTransport()
	config := common.ClientConfig{Transport: common.ClientTransportConfig{Endpoints: []string{socket}}}
	require.Eventually(t, func() bool { return client.Connect(config) == nil }, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Send(ctx, 0, []byte("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	_ = client.Close()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	assert.NoError(t, server.Shutdown(shutdownCtx))
}

func TestConnectWithoutServer(t *testing.T) {
	client := NewUnixClientTransport()
	err := client.Connect(common.ClientConfig{Transport: common.ClientTransportConfig{
		Endpoints: []string{filepath.Join(t.TempDir(), "missing.sock")},
	}})
	assert.Error(t, err)
}
