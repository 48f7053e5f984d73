package local

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dMap/rpc/common"
	"github.com/ValentinKolb/dMap/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// endpoints maps endpoint names to the handlers of listening servers
var endpoints = xsync.NewMapOf[string, transport.ServerHandleFunc]()

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

func NewLocalServerTransport() transport.IRPCServerTransport {
	return &serverTransport{stop: make(chan struct{})}
}

type serverTransport struct {
	handler  transport.ServerHandleFunc
	mu       sync.Mutex
	endpoint string
	once     sync.Once
	stop     chan struct{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	endpoint := config.Transport.Endpoint
	if _, loaded := endpoints.LoadOrStore(endpoint, t.handler); loaded {
		return fmt.Errorf("endpoint %s is already in use", endpoint)
	}
	t.mu.Lock()
	t.endpoint = endpoint
	t.mu.Unlock()
	<-t.stop
	return nil
}

func (t *serverTransport) Shutdown(context.Context) error {
	t.once.Do(func() {
		t.mu.Lock()
		if t.endpoint != "" {
			endpoints.Delete(t.endpoint)
		}
		t.mu.Unlock()
		close(t.stop)
	})
	return nil
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

func NewLocalClientTransport() transport.IRPCClientTransport {
	return &clientTransport{}
}

type clientTransport struct {
	endpoints []string
	counter   atomic.Uint32
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}
	t.endpoints = config.Transport.Endpoints
	return nil
}

// Send calls the handler of the endpoint directly. Unlike the network
// transports a missing server is detected per request, not on Connect.
func (t *clientTransport) Send(ctx context.Context, partitionID uint32, req []byte) ([]byte, error) {
	if len(t.endpoints) == 0 {
		return nil, fmt.Errorf("local transport not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	endpoint := t.endpoints[t.counter.Add(1)%uint32(len(t.endpoints))]
	handler, ok := endpoints.Load(endpoint)
	if !ok {
		return nil, fmt.Errorf("no server listening on %s", endpoint)
	}

	// the handler owns its request buffer
	buf := make([]byte, len(req))
	copy(buf, req)
	return handler(ctx, partitionID, buf), nil
}

func (t *clientTransport) Close() error {
	t.endpoints = nil
	return nil
}
