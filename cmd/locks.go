package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vihalabs/giftflow/internal/config"
	"github.com/vihalabs/giftflow/internal/store"
)

// locksCmd is the out-of-band admin surface for conversation locks. The bot
// never unlocks on its own; a human runs `giftflow locks unlock <id>` once
// the customer is handed back.
func locksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locks",
		Short: "Inspect and reset conversation locks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List locked conversations",
		Run: func(cmd *cobra.Command, args []string) {
			st := openLockStore()
			defer st.Close()

			snap := st.Snapshot()
			locked := 0
			for _, cs := range snap {
				if !cs.Locked {
					continue
				}
				locked++
				fmt.Printf("%s\tlocked_by=%s\tlocked_at=%s\n",
					cs.ConversationID, cs.LockedBy, cs.LockedAt.Format("2006-01-02 15:04:05"))
			}
			if locked == 0 {
				fmt.Println("no locked conversations")
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unlock <conversation-id>",
		Short: "Release a conversation back to the bot",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			st := openLockStore()
			defer st.Close()

			id := args[0]
			if !st.IsLocked(id) {
				fmt.Printf("%s is not locked\n", id)
				return
			}
			st.Unlock(id)
			fmt.Printf("%s unlocked\n", id)
		},
	})

	return cmd
}

func openLockStore() *store.Store {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %s\n", err)
		os.Exit(1)
	}
	if cfg.Store.Path == "" {
		fmt.Fprintln(os.Stderr, "lock persistence is disabled (store.path not set); locks live only inside the running process")
		os.Exit(1)
	}

	p, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open lock database: %s\n", err)
		os.Exit(1)
	}
	st, err := store.New(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load lock state: %s\n", err)
		os.Exit(1)
	}
	return st
}
