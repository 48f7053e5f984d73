package maps

import (
	"github.com/ValentinKolb/dMap/cmd/util"
	"github.com/ValentinKolb/dMap/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcMap *client.RPCMapClient

	// MapCommands represents the map command group
	MapCommands = &cobra.Command{
		Use:               "map",
		Short:             "Perform map operations",
		PersistentPreRunE: setupMapClient,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return rpcMap.Close()
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the map command
	util.SetupRPCClientFlags(MapCommands)

	// Add subcommands
	MapCommands.AddCommand(putCmd)
	MapCommands.AddCommand(updateCmd)
	MapCommands.AddCommand(getCmd)
	MapCommands.AddCommand(removeCmd)
	MapCommands.AddCommand(infoCmd)
	MapCommands.AddCommand(perfTestCmd)

	putCmd.Flags().Duration("ttl", 0, util.WrapString("Time to live of the entry (0 uses the map default)"))
	updateCmd.Flags().Duration("ttl", 0, util.WrapString("Time to live of the entry (0 uses the map default)"))
}

// setupMapClient initializes the RPC map client
func setupMapClient(cmd *cobra.Command, _ []string) error {
	var err error
	rpcMap, err = util.NewMapClient(cmd)
	return err
}
