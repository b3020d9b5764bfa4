package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Serve listens on a unix socket and dispatches each newline-terminated
// line it receives to the scan-time/no-scan-time/show-scan command
// tree, writing the command's output back to the connection. This
// stands in for the vty/command-line framework spec.md §1 puts out of
// scope while still letting "bgp scan-time"/"show ip bgp scan" be
// driven against a live daemon process rather than its own argv.
func Serve(ctx context.Context, root *Root, sockPath string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	_ = os.Remove(sockPath)
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("cli: failed to listen on %s: %w", sockPath, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Info("cli: vty control socket listening", "path", sockPath)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("cli: accept failed", "error", err)
			continue
		}
		go handleConn(root, conn, log)
	}
}

func handleConn(root *Root, conn net.Conn, log *slog.Logger) {
	defer conn.Close()
	scanner := newLineScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd := newVtyRoot(root)
		cmd.SetArgs(strings.Fields(line))
		cmd.SetOut(conn)
		cmd.SetErr(conn)
		if err := cmd.Execute(); err != nil {
			fmt.Fprintf(conn, "error: %v\n", err)
		}
	}
}

func newVtyRoot(root *Root) *cobra.Command {
	rootCmd := &cobra.Command{Use: "vty", SilenceUsage: true}
	rootCmd.AddCommand(
		NewScanTimeCmd(root).Command(),
		NewNoScanTimeCmd(root).Command(),
		NewShowScanCmd(root).Command(),
	)
	return rootCmd
}

func newLineScanner(conn net.Conn) *bufio.Scanner {
	return bufio.NewScanner(conn)
}
