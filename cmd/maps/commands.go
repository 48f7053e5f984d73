package maps

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dMap/cmd/util"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/spf13/cobra"
)

var (
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Maps a key to a value and prints the prior value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			resp, err := rpcMap.Put(cmd.Context(), util.GetMapName(), []byte(args[0]), []byte(args[1]), ttl)
			if err != nil {
				return err
			}
			printMutation(args[0], resp)
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [key] [value]",
		Short: "Replaces the value of a key if it has one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			resp, err := rpcMap.Update(cmd.Context(), util.GetMapName(), []byte(args[0]), []byte(args[1]), ttl)
			if err != nil {
				return err
			}
			printMutation(args[0], resp)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if resp, ok, err := rpcMap.Get(cmd.Context(), util.GetMapName(), []byte(key)); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			}
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [key]",
		Short: "Removes a key and prints its prior value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := rpcMap.Remove(cmd.Context(), util.GetMapName(), []byte(args[0]))
			if err != nil {
				return err
			}
			printMutation(args[0], resp)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints the statistics of every member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := rpcMap.Info(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(infos, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

func printMutation(key string, resp operation.Response) {
	fmt.Printf("key=%s, found=%v, prior=%s", key, resp.Found, resp.Value)
	if resp.Degraded {
		fmt.Print(", degraded=true")
	}
	fmt.Println()
}
