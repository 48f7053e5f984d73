package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/dMap/lib/node"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/rpc/common"
	"github.com/ValentinKolb/dMap/rpc/serializer"
	"github.com/ValentinKolb/dMap/rpc/transport"
	vm "github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server exposing n.
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//		n,
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	n *node.Node,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		node:       n,
		adapters:   make(map[common.MessageType]IRPCServerAdapter),
	}
	for _, adapter := range []IRPCServerAdapter{
		NewMapServerAdapter(),
		NewLockManagerServerAdapter(),
		NewBackupServerAdapter(),
	} {
		for _, t := range adapter.MessageTypes() {
			s.adapters[t] = adapter
		}
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())
	return s
}

// RPCServer serves the operations of a single node over a transport.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	node       *node.Node
	adapters   map[common.MessageType]IRPCServerAdapter

	mu            sync.Mutex
	metricsServer *http.Server
}

// Serve starts the metrics endpoint (if configured) and the transport layer.
// It blocks until the transport is shut down.
func (s *RPCServer) Serve() error {
	s.transport.RegisterHandler(s.Handle)

	if s.config.MetricsEndpoint != "" {
		s.serveMetrics()
	}

	Logger.Infof("dMap node %s serving on %s", s.node.ID(), s.config.Transport.Endpoint)
	return s.transport.Listen(s.config)
}

// Shutdown stops the transport and the metrics endpoint. The node is not
// closed.
func (s *RPCServer) Shutdown(ctx context.Context) error {
	err := s.transport.Shutdown(ctx)

	s.mu.Lock()
	metricsServer := s.metricsServer
	s.mu.Unlock()
	if metricsServer != nil {
		if mErr := metricsServer.Shutdown(ctx); mErr != nil && err == nil {
			err = mErr
		}
	}
	return err
}

// Handle implements transport.ServerHandleFunc: it decodes a request, lets
// the responsible adapter handle it and encodes the response.
func (s *RPCServer) Handle(ctx context.Context, partitionID uint32, req []byte) []byte {
	start := time.Now()

	var msg common.Message
	var resp *common.Message
	if err := s.serializer.Deserialize(req, &msg); err != nil {
		resp = common.NewErrorResponse(operation.WrapError(operation.RetCInvalidOperation, "failed to deserialize request", err))
	} else {
		resp = s.dispatch(ctx, partitionID, &msg)
	}

	observeRequest(msg.MsgType, resp, time.Since(start))

	data, err := s.serializer.Serialize(*resp)
	if err != nil {
		Logger.Errorf("failed to serialize %s response: %v", resp.MsgType, err)
		data, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Errorf("failed to serialize response: %w", err)))
	}
	return data
}

// dispatch validates the addressing of msg and hands it to its adapter.
func (s *RPCServer) dispatch(ctx context.Context, partitionID uint32, msg *common.Message) *common.Message {
	adapter, ok := s.adapters[msg.MsgType]
	if !ok {
		return common.NewErrorResponse(operation.NewError(operation.RetCInvalidOperation,
			fmt.Sprintf("unsupported message type: %s", msg.MsgType)))
	}

	table := s.node.Table()
	if msg.MsgType != common.MsgTInfo && partitionID >= table.PartitionCount() {
		return common.NewErrorResponse(operation.NewError(operation.RetCInvalidOperation,
			fmt.Sprintf("partition %d out of range [0, %d)", partitionID, table.PartitionCount())))
	}
	if msg.Key != nil && msg.MsgType != common.MsgTInfo {
		if keyPartition := table.PartitionOf(msg.Key); keyPartition != partitionID {
			return common.NewErrorResponse(operation.NewError(operation.RetCWrongPartition,
				fmt.Sprintf("key belongs to partition %d, request was sent to partition %d", keyPartition, partitionID)))
		}
	}

	return adapter.Handle(ctx, partitionID, msg, s.node)
}

// serveMetrics exposes the process-wide metrics in the Prometheus text
// format on config.MetricsEndpoint.
func (s *RPCServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		vm.WritePrometheus(w, true)
	})
	srv := &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}

	s.mu.Lock()
	s.metricsServer = srv
	s.mu.Unlock()

	go func() {
		Logger.Infof("Serving metrics on %s/metrics", s.config.MetricsEndpoint)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint failed: %v", err)
		}
	}()
}

// observeRequest records the outcome of one request.
func observeRequest(msgType common.MessageType, resp *common.Message, took time.Duration) {
	code := operation.RetCode(resp.Code)
	vm.GetOrCreateCounter(fmt.Sprintf(`dmap_rpc_requests_total{type=%q,code=%q}`, msgType, code)).Inc()
	vm.GetOrCreateHistogram(fmt.Sprintf(`dmap_rpc_request_duration_seconds{type=%q}`, msgType)).Update(took.Seconds())
}
