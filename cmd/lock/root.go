package lock

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dMap/cmd/util"
	"github.com/ValentinKolb/dMap/lib/lockmgr"
	"github.com/ValentinKolb/dMap/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcMap     *client.RPCMapClient
	acquireTTL time.Duration

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:               "lock",
		Short:             "Perform key lock operations",
		PersistentPreRunE: setupLockClient,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return rpcMap.Close()
		},
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [key]",
		Short: "Acquire the lock of a key",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [key] [token]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the key and the token returned by the acquire command.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRelease,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add subcommands to lock command
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)

	// Add common RPC flags to the lock command
	util.SetupRPCClientFlags(LockCommands)

	// Add flags specific to acquire
	acquireCmd.Flags().DurationVar(&acquireTTL, "ttl", 30*time.Second, util.WrapString("Lease of the lock (0 for no expiry)"))
}

// setupLockClient initializes the map client
func setupLockClient(cmd *cobra.Command, _ []string) error {
	var err error
	rpcMap, err = util.NewMapClient(cmd)
	return err
}

// runAcquire handles the acquire lock command
func runAcquire(cmd *cobra.Command, args []string) error {
	key := args[0]

	// Attempt to acquire the lock
	acquired, token, err := rpcMap.Lock(cmd.Context(), util.GetMapName(), []byte(key), acquireTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %v", err)
	}

	if !acquired {
		fmt.Printf("acquired=false\n")
		return nil
	}

	fmt.Printf("acquired=true, token=%s\n", token)
	return nil
}

// runRelease handles the release lock command
func runRelease(cmd *cobra.Command, args []string) error {
	key := args[0]

	// Attempt to release the lock
	released, err := rpcMap.Unlock(cmd.Context(), util.GetMapName(), []byte(key), lockmgr.Token(args[1]))
	if err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}

	fmt.Printf("released=%v\n", released)
	return nil
}
