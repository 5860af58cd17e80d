package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/vihalabs/giftflow/internal/backend"
	"github.com/vihalabs/giftflow/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, backend, and bridge health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("giftflow doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, env vars only)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Config invalid: %s\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Println()
	fmt.Println("  Decision backend:")
	fmt.Printf("    %-10s %s\n", "URL:", cfg.Backend.BaseURL)
	if !cfg.Backend.BackendEnabled() {
		fmt.Printf("    %-10s disabled\n", "Status:")
	} else {
		client := backend.NewClient(cfg.Backend.BaseURL)
		if err := client.Health(ctx); err != nil {
			fmt.Printf("    %-10s UNREACHABLE (%s)\n", "Status:", err)
		} else {
			fmt.Printf("    %-10s OK\n", "Status:")
		}
	}

	fmt.Println()
	fmt.Println("  WhatsApp bridge:")
	fmt.Printf("    %-10s %s\n", "URL:", cfg.Channels.WhatsApp.BridgeURL)
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second
	conn, _, err := dialer.DialContext(ctx, cfg.Channels.WhatsApp.BridgeURL, nil)
	if err != nil {
		fmt.Printf("    %-10s UNREACHABLE (%s)\n", "Status:", err)
	} else {
		conn.Close()
		fmt.Printf("    %-10s OK\n", "Status:")
	}

	fmt.Println()
	fmt.Printf("  Operator chat: %s\n", cfg.Operator.ChatID)
	if cfg.Store.Path != "" {
		fmt.Printf("  Lock store:    %s\n", cfg.Store.Path)
	} else {
		fmt.Println("  Lock store:    memory only (locks lost on restart)")
	}
}
