// Command abprecv is the ABP receiver demo: it listens on
// the protocol's default port and writes every accepted transfer under
// a destination directory until killed.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"abpudp/internal/config"
	"abpudp/internal/rsocket"
)

func main() {
	var (
		destination string
		port        int
		timeoutMs   int
		lossPRaw    string
		errorPRaw   string
		dupPRaw     string
	)

	cmd := &cobra.Command{
		Use:   "abprecv",
		Short: "Receive files over the ABP protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := config.Default()
			settings.Port = port
			settings.RcvFileTimeout = time.Duration(timeoutMs) * time.Millisecond

			var err error
			if settings.LossP, err = config.ParseProbabilityFlag("loss_p", lossPRaw); err != nil {
				return err
			}
			if settings.ErrorP, err = config.ParseProbabilityFlag("error_p", errorPRaw); err != nil {
				return err
			}
			if settings.DupP, err = config.ParseProbabilityFlag("dup_p", dupPRaw); err != nil {
				return err
			}
			if errs := config.ValidateAll(settings); len(errs) > 0 {
				return errors.Join(errs...)
			}

			sock, err := rsocket.Bind(fmt.Sprintf("0.0.0.0:%d", settings.Port))
			if err != nil {
				return fmt.Errorf("bind: %w", err)
			}
			defer sock.Close()

			if err := sock.SetUnreliableTransmitParameters(settings.LossP, settings.ErrorP, settings.DupP); err != nil {
				return err
			}
			sock.SetRcvFileTimeoutMs(int(settings.RcvFileTimeout.Milliseconds()))
			sock.OnLog = func(line string) { fmt.Fprintln(os.Stdout, line) }

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Println("shutting down")
				_ = sock.Close()
				os.Exit(0)
			}()

			fmt.Printf("listening on :%d, writing into %s\n", settings.Port, destination)
			if err := sock.RecvFileBlocking(destination); err != nil {
				return fmt.Errorf("receive loop: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&destination, "destination", ".", "directory to write received files into")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "UDP port to listen on")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", int(config.DefaultTimeout.Milliseconds()), "per-connection idle timeout in milliseconds")
	cmd.Flags().StringVar(&lossPRaw, "loss-p", "0", "datagram loss probability [0,1]")
	cmd.Flags().StringVar(&errorPRaw, "error-p", "0", "single-bit corruption probability [0,1]")
	cmd.Flags().StringVar(&dupPRaw, "dup-p", "0", "datagram duplication probability [0,1]")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
