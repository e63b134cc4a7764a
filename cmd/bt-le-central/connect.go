package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <identifier>",
		Short: "Connect to a peripheral and open the GATT prompt",
		Long: `Connect to the peripheral with the given identifier (its address on Linux,
its UUID on macOS) without scanning first, then start the interactive GATT
prompt. The command ends when the peripheral disconnects.`,
		Args: cobra.ExactArgs(1),
		RunE: runConnect,
	}
}

func runConnect(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	if id == "" {
		return fmt.Errorf("%w: identifier is empty", ErrInvalidIdentifier)
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := interruptible(cmd)
	defer cancel()

	l := s.listener(cmd)
	state := s.state()
	if err := l.Connect(ctx, state, id); err != nil {
		return s.finish(err)
	}

	// keep reporting until the peer goes away
	return s.finish(l.Listen(ctx, state))
}
