// incsearchctl drives an embedded incsearch store from the command line:
// seed items, run incremental searches, and watch results arrive.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	incsearch "github.com/groupmesh/incsearch/pkg/sdk"
)

var (
	flagBoltPath  string
	flagRedisAddr string
	flagRedisPass string
	flagUser      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "incsearchctl",
		Short:         "incsearchctl drives an incsearch store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagBoltPath, "db", "incsearch.db", "bolt database file")
	pf.StringVar(&flagRedisAddr, "redis", "", "redis address (overrides --db)")
	pf.StringVar(&flagRedisPass, "redis-password", "", "redis password")
	pf.StringVar(&flagUser, "user", "default", "acting user id")

	rootCmd.AddCommand(newPutCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newDelCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newStopCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient() (*incsearch.Client, error) {
	opts := []incsearch.Option{
		incsearch.WithWaitBudget(2 * time.Second),
		incsearch.WithPollInterval(20 * time.Millisecond),
	}
	if flagRedisAddr != "" {
		opts = append(opts, incsearch.WithRedis(flagRedisAddr, flagRedisPass))
	} else {
		opts = append(opts, incsearch.WithBolt(flagBoltPath))
	}
	return incsearch.New(opts...)
}
