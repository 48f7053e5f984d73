package common

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/record"
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings shared by the tcp and unix
// transports. Zero keeps the operating system default.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific settings.
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // zero keeps the operating system default
}

type ServerTransportConfig struct {
	// Endpoint is the address the server listens on (host:port or socket path)
	Endpoint string
	// WorkersPerConn limits concurrent requests per connection (tcp, unix)
	WorkersPerConn int
	// BufferSize is the size of pooled request buffers (tcp, unix)
	BufferSize int
	SocketConf
	TCPConf
}

type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a dMap node.
type ServerConfig struct {
	// Cluster membership
	NodeID         string
	Members        map[string]string // node id -> transport endpoint
	PartitionCount uint32

	// Maps and replication
	Maps          []record.MapConfig
	BackupTimeout time.Duration
	Persistence   string
	Codec         string

	// RPC settings
	TimeoutSecond int64
	Transport     ServerTransportConfig

	// Prometheus endpoint, empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// Table builds the partition table of the configured cluster as seen by
// this node.
func (c *ServerConfig) Table() (*cluster.Table, error) {
	return buildTable(cluster.NodeID(c.NodeID), c.Members, c.PartitionCount)
}

// MapConfigs returns the configured maps by name.
func (c *ServerConfig) MapConfigs() map[string]record.MapConfig {
	maps := make(map[string]record.MapConfig, len(c.Maps))
	for _, m := range c.Maps {
		maps[m.Name] = m
	}
	return maps
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Node Identity
	addSection("Node Identity")
	addField("Node ID", c.NodeID)
	addField("Partitions", strconv.FormatUint(uint64(c.PartitionCount), 10))

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.MetricsEndpoint != "" {
		addField("Metrics", c.MetricsEndpoint)
	}

	// Replication
	addSection("Replication")
	addField("Backup Timeout", c.BackupTimeout.String())
	addField("Persistence", c.Persistence)
	addField("Codec", c.Codec)

	// Maps
	addSection("Maps")
	if len(c.Maps) == 0 {
		addField("*", "defaults")
	}
	for _, m := range c.Maps {
		addField(m.Name, strings.TrimPrefix(m.String(), m.Name+": "))
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Cluster members
	addSection("Cluster")
	writeMembers(&sb, c.Members)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Members        map[string]string // node id -> transport endpoint
	PartitionCount uint32
	TimeoutSecond  int
	Transport      ClientTransportConfig
}

// Table builds the partition table used to route requests to owners.
func (c *ClientConfig) Table() (*cluster.Table, error) {
	return buildTable("", c.Members, c.PartitionCount)
}

// ForEndpoint returns a copy of the config that connects only to endpoint.
func (c ClientConfig) ForEndpoint(endpoint string) ClientConfig {
	c.Transport.Endpoints = []string{endpoint}
	return c
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))
	addField("Partitions", strconv.FormatUint(uint64(c.PartitionCount), 10))

	// Cluster members
	addSection("Cluster")
	writeMembers(&sb, c.Members)

	return sb.String()
}

// --------------------------------------------------------------------------
// Parsing helpers (used by the cli)
// --------------------------------------------------------------------------

// ParseMembers parses entries of the form "id=address".
func ParseMembers(entries []string) (map[string]string, error) {
	members := make(map[string]string, len(entries))
	for _, entry := range entries {
		id, addr, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || id == "" || addr == "" {
			return nil, fmt.Errorf("invalid member %q, expected id=address", entry)
		}
		if _, dup := members[id]; dup {
			return nil, fmt.Errorf("duplicate member %q", id)
		}
		members[id] = addr
	}
	return members, nil
}

// ParseMapConfig parses a map definition of the form
// "name[:backups[:asyncBackups[:writeDelay[:ttl]]]]", e.g. "users:1:1:0:1h".
// Omitted fields keep the defaults of record.DefaultMapConfig.
func ParseMapConfig(s string) (record.MapConfig, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 5 {
		return record.MapConfig{}, fmt.Errorf("invalid map %q, expected name:backups:asyncBackups:writeDelay:ttl", s)
	}
	config := record.DefaultMapConfig(parts[0])

	var err error
	if len(parts) > 1 {
		if config.BackupCount, err = strconv.Atoi(parts[1]); err != nil {
			return config, fmt.Errorf("map %q: backups must be a number: %w", s, err)
		}
	}
	if len(parts) > 2 {
		if config.AsyncBackupCount, err = strconv.Atoi(parts[2]); err != nil {
			return config, fmt.Errorf("map %q: async backups must be a number: %w", s, err)
		}
	}
	if len(parts) > 3 {
		if config.WriteDelay, err = parseDuration(parts[3]); err != nil {
			return config, fmt.Errorf("map %q: invalid write delay: %w", s, err)
		}
	}
	if len(parts) > 4 {
		if config.TTL, err = parseDuration(parts[4]); err != nil {
			return config, fmt.Errorf("map %q: invalid ttl: %w", s, err)
		}
	}
	return config, config.Validate()
}

// parseDuration accepts go durations and plain seconds.
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseUint(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func buildTable(local cluster.NodeID, members map[string]string, partitionCount uint32) (*cluster.Table, error) {
	list := make([]cluster.Member, 0, len(members))
	for id, addr := range members {
		list = append(list, cluster.Member{ID: cluster.NodeID(id), Address: addr})
	}
	return cluster.NewTable(local, list, partitionCount)
}

func writeMembers(sb *strings.Builder, members map[string]string) {
	// Sort keys for consistent output
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sb.WriteString(fmt.Sprintf("    Node %s: %s\n", id, members[id]))
	}
}
