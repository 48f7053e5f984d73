package maps

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dMap/cmd/util"
	"github.com/ValentinKolb/dMap/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dMap clusters",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// benchmark describes one test: prepare fills the keys it reads, op runs
// once per iteration.
type benchmark struct {
	name    string
	prepare bool
	op      func(ctx context.Context, mapName string, key []byte) error
}

func runPerf(_ *cobra.Command, _ []string) error {
	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	fmt.Println("Performance testing tool for dMap clusters")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	mapName := util.GetMapName()
	largeValue := make([]byte, perfLargeValueSizeKB*1024)

	benchmarks := []benchmark{
		{name: "put", op: func(ctx context.Context, m string, k []byte) error {
			_, err := rpcMap.Put(ctx, m, k, []byte("test"), 0)
			return err
		}},
		{name: "put-large", op: func(ctx context.Context, m string, k []byte) error {
			_, err := rpcMap.Put(ctx, m, k, largeValue, 0)
			return err
		}},
		{name: "update", prepare: true, op: func(ctx context.Context, m string, k []byte) error {
			_, err := rpcMap.Update(ctx, m, k, []byte("test"), 0)
			return err
		}},
		{name: "get", prepare: true, op: func(ctx context.Context, m string, k []byte) error {
			_, _, err := rpcMap.Get(ctx, m, k)
			return err
		}},
		{name: "get-miss", op: func(ctx context.Context, m string, k []byte) error {
			_, _, err := rpcMap.Get(ctx, m, k)
			return err
		}},
		{name: "remove", prepare: true, op: func(ctx context.Context, m string, k []byte) error {
			_, err := rpcMap.Remove(ctx, m, k)
			return err
		}},
		{name: "mixed", prepare: true, op: mixedOp()},
	}

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(bm.name) {
				return
			}
			runBenchmark(b, mapName, bm)
		})
		results[bm.name] = result
		printResult(bm.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runBenchmark runs bm in parallel and removes its keys afterwards
func runBenchmark(b *testing.B, mapName string, bm benchmark) {
	ctx := context.Background()
	getKey, iter := getKeys(bm.name)

	if bm.prepare {
		iter(func(k []byte) {
			if _, err := rpcMap.Put(ctx, mapName, k, []byte("test"), 0); err != nil {
				log.Printf("(%s) - error preparing key: %v\n", bm.name, err)
			}
		})
	}

	// cleanup
	b.Cleanup(func() {
		iter(func(k []byte) {
			if _, err := rpcMap.Remove(ctx, mapName, k); err != nil {
				log.Printf("(%s) - error removing key: %v\n", bm.name, err)
			}
		})
	})

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if err := bm.op(ctx, mapName, getKey(counter)); err != nil {
				log.Printf("(%s) - error performing operation: %v\n", bm.name, err)
			}
			counter++
		}
	})
}

// mixedOp cycles through put, get, update and remove
func mixedOp() func(ctx context.Context, mapName string, key []byte) error {
	return func(ctx context.Context, mapName string, key []byte) error {
		var err error
		switch time.Now().UnixNano() % 4 {
		case 0:
			_, err = rpcMap.Put(ctx, mapName, key, []byte("test"), 0)
		case 1:
			_, _, err = rpcMap.Get(ctx, mapName, key)
		case 2:
			_, err = rpcMap.Update(ctx, mapName, key, []byte("test"), 0)
		case 3:
			_, err = rpcMap.Remove(ctx, mapName, key)
		}
		return err
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) []byte, func(func([]byte))) {
	keys := make([][]byte, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = []byte(fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i))
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) []byte {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func([]byte)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Members", "Partitions", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Map", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	members := make([]string, 0, len(config.Members))
	for id, addr := range config.Members {
		members = append(members, id+"="+addr)
	}
	sort.Strings(members)

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(members, ";"),
			strconv.FormatUint(uint64(config.PartitionCount), 10),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			util.GetMapName(),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
