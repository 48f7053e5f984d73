package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/dMap/cmd/util"
	"github.com/ValentinKolb/dMap/lib/codec"
	"github.com/ValentinKolb/dMap/lib/node"
	"github.com/ValentinKolb/dMap/lib/persistence"
	"github.com/ValentinKolb/dMap/rpc/client"
	"github.com/ValentinKolb/dMap/rpc/common"
	"github.com/ValentinKolb/dMap/rpc/server"
	"github.com/ValentinKolb/dMap/rpc/transport"
	"github.com/ValentinKolb/dMap/rpc/transport/http"
	"github.com/ValentinKolb/dMap/rpc/transport/tcp"
	"github.com/ValentinKolb/dMap/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start a dMap member",
		Long: `Start a dMap member with the specified configuration. The configuration can
be set via command line flags or environment variables. The format of the
environment variables is DMAP_<flag> (e.g. DMAP_NODE_ID=a).

Every member of a cluster must be started with the same members, partitions
and maps.`,
		PreRunE: processConfig,
		RunE:    run,
	}

	log = logger.GetLogger("serve")
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	cmdUtil.SetupClusterFlags(ServeCmd)

	key := "node-id"
	ServeCmd.PersistentFlags().String(key, "a", cmdUtil.WrapString("ID of this member, must be one of the ids in --members"))

	key = "maps"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of map definitions in the format 'name:backups:asyncBackups:writeDelay:ttl', e.g. 'users:1:1:0:1h'. Omitted fields and unlisted maps use 1 sync backup, write-through and no ttl"))

	key = "backup-timeout"
	ServeCmd.PersistentFlags().Duration(key, 5*time.Second, cmdUtil.WrapString("How long a mutation waits for the acknowledgements of its sync backups before it completes as degraded"))

	key = "persistence"
	ServeCmd.PersistentFlags().String(key, "none", cmdUtil.WrapString("Persistence store of the maps (none, memory)"))

	key = "codec"
	ServeCmd.PersistentFlags().String(key, "string", cmdUtil.WrapString("Codec converting between stored data and persisted objects (string, json, gob)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for requests this member sends to the other members"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/dmap.sock, ...). Defaults to the address of this member in --members"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("Maximum concurrent requests per connection (tcp, unix)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("Size of the pooled request buffers in KB (tcp, unix)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address serving prometheus metrics on /metrics (e.g. localhost:9090), empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and
// environment variables and converts it to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	members, err := cmdUtil.GetMembers()
	if err != nil {
		return err
	}

	serveCmdConfig.NodeID = viper.GetString("node-id")
	serveCmdConfig.Members = members
	serveCmdConfig.PartitionCount = viper.GetUint32("partitions")
	serveCmdConfig.BackupTimeout = viper.GetDuration("backup-timeout")
	serveCmdConfig.Persistence = viper.GetString("persistence")
	serveCmdConfig.Codec = viper.GetString("codec")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport.WorkersPerConn = viper.GetInt("workers-per-conn")
	serveCmdConfig.Transport.BufferSize = viper.GetInt("buffer-size") * 1024

	// the node id must be a member
	addr, ok := members[serveCmdConfig.NodeID]
	if !ok {
		return fmt.Errorf("node id %q is not one of the members", serveCmdConfig.NodeID)
	}
	serveCmdConfig.Transport.Endpoint = viper.GetString("endpoint")
	if serveCmdConfig.Transport.Endpoint == "" {
		serveCmdConfig.Transport.Endpoint = addr
	}

	// parse maps
	serveCmdConfig.Maps = nil
	if maps := viper.GetString("maps"); maps != "" {
		seen := make(map[string]bool)
		for _, def := range strings.Split(maps, ",") {
			mapConfig, err := common.ParseMapConfig(def)
			if err != nil {
				return err
			}
			if seen[mapConfig.Name] {
				return fmt.Errorf("map %q is defined twice", mapConfig.Name)
			}
			seen[mapConfig.Name] = true
			serveCmdConfig.Maps = append(serveCmdConfig.Maps, mapConfig)
		}
	}

	return common.InitLoggers(*serveCmdConfig)
}

// run starts the member and blocks until it is stopped by a signal
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// parse the transport
	var t transport.IRPCServerTransport
	switch name := viper.GetString("transport"); name {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport(serveCmdConfig.Transport.BufferSize, serveCmdConfig.Transport.WorkersPerConn)
	case "unix":
		t = unix.NewUnixServerTransport(serveCmdConfig.Transport.BufferSize, serveCmdConfig.Transport.WorkersPerConn)
	default:
		return fmt.Errorf("invalid transport %s (expected one of: http, tcp, unix)", name)
	}

	newClientTransport, err := cmdUtil.GetTransportFactory()
	if err != nil {
		return err
	}

	table, err := serveCmdConfig.Table()
	if err != nil {
		return err
	}
	factory, err := persistence.FactoryFromName(serveCmdConfig.Persistence)
	if err != nil {
		return err
	}
	c, err := codec.FromName(serveCmdConfig.Codec)
	if err != nil {
		return err
	}

	// backups to the other members use the same serializer and transport
	dispatcher, err := client.NewRemoteBackupDispatcher(common.ClientConfig{
		Members:        serveCmdConfig.Members,
		PartitionCount: serveCmdConfig.PartitionCount,
		TimeoutSecond:  int(serveCmdConfig.TimeoutSecond),
		Transport:      common.ClientTransportConfig{RetryCount: 1, ConnectionsPerEndpoint: 1},
	}, newClientTransport, s, serveCmdConfig.BackupTimeout)
	if err != nil {
		return err
	}

	n, err := node.New(node.Config{
		Table:         table,
		Maps:          serveCmdConfig.MapConfigs(),
		Persistence:   factory,
		Codec:         c,
		Dispatcher:    dispatcher,
		BackupTimeout: serveCmdConfig.BackupTimeout,
	})
	if err != nil {
		return err
	}
	defer n.Close()

	serv := server.NewRPCServer(*serveCmdConfig, t, s, n)

	errCh := make(chan error, 1)
	go func() { errCh <- serv.Serve() }()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case err := <-errCh:
		_ = dispatcher.Close(context.Background())
		return err
	case sig := <-signals:
		log.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// stop accepting requests first, then flush the pending async backups
	shutdownErr := serv.Shutdown(ctx)
	if err := dispatcher.Close(ctx); err != nil {
		log.Warningf("closing backup dispatcher: %v", err)
	}
	if err := <-errCh; err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	return shutdownErr
}
