package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"filegate/internal/client"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Used for flags.
	serverURL     string
	adminPassword string
	timeout       time.Duration
	gate          client.GateHeaders

	rootCmd = &cobra.Command{
		Use:           "filegate",
		Short:         "Command line client for a filegate server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	// A local .env may carry the gate values and admin password.
	_ = godotenv.Load()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&serverURL, "server", envOr("FILEGATE_SERVER", "http://localhost:8080"), "server base URL")
	flags.StringVar(&adminPassword, "password", os.Getenv("FILEGATE_ADMIN_PASSWORD"), "admin password for check, delete, delete-file and stats")
	flags.DurationVar(&timeout, "timeout", 10*time.Minute, "request timeout")
	flags.StringVar(&gate.Name, "gate-name", envOr("GATE_NAME", "FILEGATE-STORAGE"), "value of the Name header")
	flags.StringVar(&gate.Connection, "gate-connection", envOr("GATE_CONNECTION", "keep-alive"), "value of the Connection header")
	flags.StringVar(&gate.Models, "gate-models", envOr("GATE_MODELS", "FG1.0"), "value of the Models header")
	flags.StringVar(&gate.Version, "gate-version", envOr("GATE_VERSION", "1.0"), "value of the Version header")

	rootCmd.AddCommand(keyCmd, uploadCmd, getCmd, checkCmd, deleteCmd, deleteFileCmd, statsCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *client.Client {
	return client.New(serverURL, gate, &http.Client{Timeout: timeout})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
