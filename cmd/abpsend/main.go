// Command abpsend is the ABP sender demo: it reads a local
// file and pushes it to a peer's receiver over UDP, reporting bytes
// sent and goodput on completion.
package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"abpudp/internal/config"
	"abpudp/internal/rsocket"
)

func main() {
	var (
		ip             string
		fileName       string
		port           int
		timeoutMs      int
		maxRetransmits int
		lossPRaw       string
		errorPRaw      string
		dupPRaw        string
	)

	cmd := &cobra.Command{
		Use:   "abpsend",
		Short: "Send a file to an ABP receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateHost(ip); err != nil {
				return err
			}

			settings := config.Default()
			settings.Port = port
			settings.SndFileTimeout = time.Duration(timeoutMs) * time.Millisecond
			settings.SndFileMaxRetransmits = maxRetransmits

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

			peer, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", ip, settings.Port))
			if err != nil {
				return fmt.Errorf("resolve peer: %w", err)
			}

			sock, err := rsocket.Bind("0.0.0.0:0")
			if err != nil {
				return fmt.Errorf("bind local socket: %w", err)
			}
			defer sock.Close()

			if err := sock.SetUnreliableTransmitParameters(settings.LossP, settings.ErrorP, settings.DupP); err != nil {
				return err
			}
			sock.SetSndFileTimeoutMs(int(settings.SndFileTimeout.Milliseconds()))
			sock.SetSndFileMaxRetransmits(settings.SndFileMaxRetransmits)
			sock.OnLog = func(line string) { fmt.Fprintln(os.Stdout, line) }

			bytesSent, elapsed, err := sock.SendFileBlocking(fileName, peer)
			if err != nil {
				return fmt.Errorf("send file: %w", err)
			}

			goodput := float64(0)
			if elapsed > 0 {
				goodput = float64(bytesSent) / elapsed.Seconds()
			}
			fmt.Printf("sent %d bytes in %s (%.0f B/s)\n", bytesSent, elapsed, goodput)
			return nil
		},
	}

	cmd.Flags().StringVar(&ip, "ip", "", "receiver IP address (required)")
	cmd.Flags().StringVar(&fileName, "file-name", "", "path of the file to send (required)")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "receiver UDP port")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", int(config.DefaultTimeout.Milliseconds()), "retransmit timeout in milliseconds")
	cmd.Flags().IntVar(&maxRetransmits, "max-retransmits", config.DefaultMaxRetransmits, "retransmit budget before giving up")
	cmd.Flags().StringVar(&lossPRaw, "loss-p", "0", "datagram loss probability [0,1]")
	cmd.Flags().StringVar(&errorPRaw, "error-p", "0", "single-bit corruption probability [0,1]")
	cmd.Flags().StringVar(&dupPRaw, "dup-p", "0", "datagram duplication probability [0,1]")
	_ = cmd.MarkFlagRequired("ip")
	_ = cmd.MarkFlagRequired("file-name")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
