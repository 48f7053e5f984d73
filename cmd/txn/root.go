package txn

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dMap/cmd/util"
	"github.com/ValentinKolb/dMap/lib/lockmgr"
	"github.com/ValentinKolb/dMap/lib/partition"
	"github.com/ValentinKolb/dMap/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcMap *client.RPCMapClient

	// TxnCommands represents the transaction command group
	TxnCommands = &cobra.Command{
		Use:               "txn",
		Short:             "Run map operations in a transaction",
		PersistentPreRunE: setupTxnClient,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return rpcMap.Close()
		},
	}

	// execCmd represents the exec command
	execCmd = &cobra.Command{
		Use:   "exec [op]...",
		Short: "Log the operations in a transaction and commit it",
		Long: `Log the operations in a transaction and commit it. Operations are applied in
the given order per partition. Each operation has one of the forms

  put:key=value
  update:key=value
  remove:key

With --rollback the transaction is rolled back instead of committed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExec,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	TxnCommands.AddCommand(execCmd)

	// Add common RPC flags to the txn command
	util.SetupRPCClientFlags(TxnCommands)

	execCmd.Flags().Bool("rollback", false, util.WrapString("Roll the transaction back instead of committing it"))
	execCmd.Flags().String("token", "", util.WrapString("Lock token presented for locked keys"))
}

// setupTxnClient initializes the map client
func setupTxnClient(cmd *cobra.Command, _ []string) error {
	var err error
	rpcMap, err = util.NewMapClient(cmd)
	return err
}

// op is a parsed transaction operation
type op struct {
	kind  partition.Kind
	key   []byte
	value []byte
}

// parseOp parses "put:key=value", "update:key=value" or "remove:key"
func parseOp(s string) (op, error) {
	name, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return op{}, fmt.Errorf("invalid operation %q (expected kind:key[=value])", s)
	}
	kind, err := partition.ParseKind(strings.ToUpper(name))
	if err != nil {
		return op{}, fmt.Errorf("invalid operation %q (expected one of: put, update, remove)", s)
	}
	if kind == partition.KindRemove {
		return op{kind: kind, key: []byte(rest)}, nil
	}
	key, value, ok := strings.Cut(rest, "=")
	if !ok || key == "" {
		return op{}, fmt.Errorf("invalid operation %q (expected %s:key=value)", s, name)
	}
	return op{kind: kind, key: []byte(key), value: []byte(value)}, nil
}

// runExec handles the exec command
func runExec(cmd *cobra.Command, args []string) error {
	ops := make([]op, 0, len(args))
	for _, arg := range args {
		o, err := parseOp(arg)
		if err != nil {
			return err
		}
		ops = append(ops, o)
	}

	ctx := cmd.Context()
	mapName := util.GetMapName()
	token, _ := cmd.Flags().GetString("token")
	rollback, _ := cmd.Flags().GetBool("rollback")

	tx := rpcMap.BeginTransaction(lockmgr.Token(token))
	for _, o := range ops {
		var err error
		switch o.kind {
		case partition.KindPut:
			err = tx.Put(ctx, mapName, o.key, o.value, 0)
		case partition.KindUpdate:
			err = tx.Update(ctx, mapName, o.key, o.value, 0)
		case partition.KindRemove:
			err = tx.Remove(ctx, mapName, o.key)
		}
		if err != nil {
			if _, rbErr := tx.Rollback(ctx); rbErr != nil {
				fmt.Printf("rollback failed: %v\n", rbErr)
			}
			return fmt.Errorf("%s %s: %w", o.kind, o.key, err)
		}
	}

	if rollback {
		dropped, err := tx.Rollback(ctx)
		fmt.Printf("txn=%s, rolled back, dropped=%d\n", tx.ID(), dropped)
		return err
	}
	applied, err := tx.Commit(ctx)
	fmt.Printf("txn=%s, committed, applied=%d\n", tx.ID(), applied)
	return err
}
