package gatt

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/srg/blecentral/internal/device"
	"github.com/srg/blecentral/internal/groutine"
)

// DefaultPrompt is shown before every REPL command.
const DefaultPrompt = "GATT> "

// LoopOptions configures the GATT REPL.
type LoopOptions struct {
	In     io.Reader
	Out    io.Writer
	Logger *logrus.Logger
	Prompt string
	Color  bool
}

// DefaultLoopOptions returns options bound to the process stdio.
func DefaultLoopOptions() *LoopOptions {
	return &LoopOptions{
		In:     os.Stdin,
		Out:    os.Stdout,
		Logger: logrus.New(),
		Prompt: DefaultPrompt,
		Color:  true,
	}
}

// errExit ends the loop without an error.
var errExit = errors.New("exit")

type command struct {
	usage string
	help  string
	run   func(r *repl, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help": {"help", "show this help", (*repl).cmdHelp},
		"list": {"list", "discover and list services and characteristics", (*repl).cmdList},
		"read": {"read <char-uuid>", "read a characteristic value", (*repl).cmdRead},
		"write": {"write <char-uuid> <hex>", "write a characteristic value with response",
			func(r *repl, args []string) error { return r.cmdWrite(args, false) }},
		"write-without-response": {"write-without-response <char-uuid> <hex>", "write a characteristic value without response",
			func(r *repl, args []string) error { return r.cmdWrite(args, true) }},
		"exit": {"exit", "disconnect and leave", (*repl).cmdExit},
		"quit": {"quit", "alias for exit", (*repl).cmdExit},
	}
}

// commandOrder fixes the help listing order.
var commandOrder = []string{"help", "list", "read", "write", "write-without-response", "exit", "quit"}

type repl struct {
	client Client
	table  *attributeTable
	in     io.Reader
	out    io.Writer
	prompt string
	logger *logrus.Logger

	errColor  *color.Color
	headColor *color.Color
}

// StartLoop waits for the client bound to end and runs the GATT REPL until
// the user exits, the input ends, the peer disconnects or ctx is done.
func StartLoop(ctx context.Context, end *ClientEnd, opts *LoopOptions) error {
	if opts == nil {
		opts = DefaultLoopOptions()
	}
	defaults := DefaultLoopOptions()
	in, out, logger := opts.In, opts.Out, opts.Logger
	if in == nil {
		in = defaults.In
	}
	if out == nil {
		out = defaults.Out
	}
	if logger == nil {
		logger = defaults.Logger
	}

	client, err := end.Client(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain GATT client: %w", err)
	}

	r := &repl{
		client:    client,
		table:     newAttributeTable(),
		in:        in,
		out:       out,
		prompt:    opts.Prompt,
		logger:    logger,
		errColor:  color.New(color.FgRed),
		headColor: color.New(color.FgCyan),
	}
	if !opts.Color {
		r.errColor.DisableColor()
		r.headColor.DisableColor()
	}

	return r.run(ctx)
}

func (r *repl) run(ctx context.Context) error {
	// The reader must not outlive the loop.
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	lines, interactive, restore := r.lineSource(readCtx)
	defer restore()

	var disconnected <-chan struct{}
	if dc, ok := r.client.(interface{ Disconnected() <-chan struct{} }); ok {
		disconnected = dc.Disconnected()
	}

	r.logger.WithField("address", addrString(r.client)).Debug("GATT REPL started")

	for {
		if !interactive {
			fmt.Fprint(r.out, r.prompt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-disconnected:
			r.logger.WithField("address", addrString(r.client)).Info("GATT client disconnected")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := r.execute(line); err != nil {
				if errors.Is(err, errExit) {
					return nil
				}
				r.errColor.Fprintf(r.out, "  error: %v\n", err)
			}
		}
	}
}

// lineSource starts a reader goroutine. When In is a terminal it is switched to
// raw mode and read through term.Terminal, which also takes over output.
func (r *repl) lineSource(ctx context.Context) (<-chan string, bool, func()) {
	lines := make(chan string)

	if f, ok := r.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		oldState, err := term.MakeRaw(fd)
		if err == nil {
			t := term.NewTerminal(struct {
				io.Reader
				io.Writer
			}{f, r.out}, r.prompt)
			r.out = t

			groutine.Go(ctx, "gatt-repl-input", func(ctx context.Context) {
				defer close(lines)
				for {
					line, err := t.ReadLine()
					if err != nil {
						return
					}
					select {
					case lines <- line:
					case <-ctx.Done():
						return
					}
				}
			})
			return lines, true, func() { _ = term.Restore(fd, oldState) }
		}
		r.logger.WithError(err).Warn("Failed to switch terminal to raw mode")
	}

	groutine.Go(ctx, "gatt-repl-input", func(ctx context.Context) {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	})
	return lines, false, func() {}
}

func (r *repl) execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := commands[strings.ToLower(fields[0])]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help' for a list of commands", fields[0])
	}
	return cmd.run(r, fields[1:])
}

func (r *repl) cmdHelp(_ []string) error {
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Fprintf(r.out, "  %-42s %s\n", c.usage, c.help)
	}
	return nil
}

func (r *repl) cmdList(_ []string) error {
	if err := r.discover(true); err != nil {
		return err
	}
	if r.table.empty() {
		fmt.Fprintln(r.out, "  no services found")
		return nil
	}

	r.table.forEachService(func(uuid string, svc *ble.Service) {
		r.headColor.Fprintf(r.out, "  service: %s\n", uuid)
		for _, c := range svc.Characteristics {
			fmt.Fprintf(r.out, "    characteristic: %s [%s]\n",
				device.NormalizeUUID(c.UUID.String()), formatProperties(c.Property))
		}
	})
	return nil
}

func (r *repl) cmdRead(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["read"].usage)
	}
	c, err := r.lookup(args[0])
	if err != nil {
		return err
	}

	data, err := r.client.ReadCharacteristic(c)
	if err != nil {
		return fmt.Errorf("failed to read characteristic %s: %w", args[0], err)
	}
	fmt.Fprintf(r.out, "  value (%d bytes): %s\n", len(data), hex.EncodeToString(data))
	return nil
}

func (r *repl) cmdWrite(args []string, noRsp bool) error {
	usage := commands["write"].usage
	if noRsp {
		usage = commands["write-without-response"].usage
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", usage)
	}

	value, err := parseHex(args[1])
	if err != nil {
		return err
	}
	c, err := r.lookup(args[0])
	if err != nil {
		return err
	}

	if err := r.client.WriteCharacteristic(c, value, noRsp); err != nil {
		return fmt.Errorf("failed to write characteristic %s: %w", args[0], err)
	}
	fmt.Fprintf(r.out, "  wrote %d bytes\n", len(value))
	return nil
}

func (r *repl) cmdExit(_ []string) error {
	if err := r.client.CancelConnection(); err != nil {
		r.logger.WithError(err).Warn("Failed to cancel connection")
	}
	return errExit
}

// lookup resolves a characteristic, discovering the profile on first use.
func (r *repl) lookup(uuid string) (*ble.Characteristic, error) {
	if r.table.empty() {
		if err := r.discover(false); err != nil {
			return nil, err
		}
	}
	c, ok := r.table.characteristic(uuid)
	if !ok {
		return nil, fmt.Errorf("characteristic %q not found", uuid)
	}
	return c, nil
}

func (r *repl) discover(force bool) error {
	profile, err := r.client.DiscoverProfile(force)
	if err != nil {
		return fmt.Errorf("failed to discover services: %w", err)
	}
	r.table.load(profile)
	return nil
}

// parseHex accepts "0a0b", "0x0a0b" and "0a 0b".
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.ReplaceAll(s, " ", "")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex value %q: %w", s, err)
	}
	return data, nil
}

func addrString(c Client) string {
	if a := c.Addr(); a != nil {
		return a.String()
	}
	return ""
}
