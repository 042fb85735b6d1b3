package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stampede/internal/dummy"
	"stampede/internal/output"
)

var (
	servePort      int
	serveHeartbeat time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bundled target server",
	Long: `Run a local server to aim stampede at.

Endpoints:
  POST /test              {"input": "x"} -> {"message": "X"}
  GET  /fast              10-50ms
  GET  /slow              1-2s
  GET  /error             random 500 / 429 / 200
  GET|POST /status/{code} fixed status`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server, addr, err := dummy.Start(dummy.ServerConfig{Port: servePort})
		if err != nil {
			return err
		}

		fmt.Printf("👻 Target server running on http://%s\n", addr)
		fmt.Println("   Endpoints: POST /test, /fast, /slow, /error, /status/{code}")

		go dummy.RunHeartbeat(ctx, serveHeartbeat)

		<-ctx.Done()
		output.Logger.Info("Shutting down target server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().DurationVar(&serveHeartbeat, "heartbeat", time.Second, "Interval of the background heartbeat log, 0 disables it")
}
