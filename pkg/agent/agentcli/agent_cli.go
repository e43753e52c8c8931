//go:build linux

package agentcli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neuroplastio/mtouch-agent/internal/simsvc"
	"github.com/neuroplastio/mtouch-agent/internal/touchsvc"
	"github.com/neuroplastio/mtouch-agent/pkg/agent"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "mtouch"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type agentProvider func() (*agent.Agent, error)

func NewRootCmd(configDir string) *cobra.Command {
	cfg := agent.Config{
		DataDir:   filepath.Join(configDir, "data"),
		ConfigDir: configDir,
	}
	rootCmd := &cobra.Command{
		Use:   "mtouch-agent",
		Short: "Multi-touch digitizer agent",
		Long: `mtouch-agent discovers multi-touch digitizers from their HID report
descriptors, negotiates their feature reports and bridges decoded contact
frames to virtual input devices.`,
	}
	var (
		a     *agent.Agent
		aErr  error
		aOnce sync.Once
	)
	provide := agentProvider(func() (*agent.Agent, error) {
		aOnce.Do(func() {
			a, aErr = agent.NewAgent(cfg)
		})
		return a, aErr
	})
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigDir, "config", cfg.ConfigDir, "config directory")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&cfg.JSONLog, "json-log", false, "log as JSON")
	rootCmd.AddCommand(NewRun(provide, &cfg))
	rootCmd.AddCommand(NewList(provide))
	rootCmd.AddCommand(NewDescribe(provide))
	rootCmd.AddCommand(NewMonitor())
	rootCmd.AddCommand(NewSimulate())
	return rootCmd
}

func NewRun(provide agentProvider, cfg *agent.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent",
		Long:  `Run attaches the configured digitizers and keeps them bridged until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := provide()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&cfg.Sim, "sim", false, "start the simulator service")
	return cmd
}

func NewList(provide agentProvider) *cobra.Command {
	var known bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List multi-touch digitizers",
		Long: `List enumerates connected HID devices with their multi-touch
classification. With --known it prints the address book of previously
attached devices instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := provide()
			if err != nil {
				return err
			}
			defer a.Close()
			if known {
				records, err := a.Touch().ListDevices()
				if err != nil {
					return err
				}
				rows := make([]recordRow, 0, len(records))
				for _, rec := range records {
					rows = append(rows, recordRow{
						Address:    rec.Address.String(),
						Name:       rec.Name,
						Type:       rec.Type,
						ContactMax: rec.ContactMax,
						Quirks:     rec.Quirks.String(),
						LastSeenAt: rec.LastSeenAt,
					})
				}
				return writeYAML(cmd.OutOrStdout(), rows)
			}
			return a.RunWith(cmd.Context(), func(ctx context.Context) error {
				devices := a.Touch().ConnectedDevices()
				rows := make([]connectedRow, 0, len(devices))
				for _, dev := range devices {
					rows = append(rows, connectedRow{
						Address:  dev.Address.String(),
						Name:     dev.Name,
						Type:     dev.Type.String(),
						Attached: dev.Attached,
					})
				}
				return writeYAML(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().BoolVar(&known, "known", false, "print the address book instead of live devices")
	return cmd
}

type connectedRow struct {
	Address  string `yaml:"address"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Attached bool   `yaml:"attached"`
}

type recordRow struct {
	Address    string    `yaml:"address"`
	Name       string    `yaml:"name"`
	Type       string    `yaml:"type"`
	ContactMax int       `yaml:"contactMax"`
	Quirks     string    `yaml:"quirks,omitempty"`
	LastSeenAt time.Time `yaml:"lastSeenAt"`
}

func NewDescribe(provide agentProvider) *cobra.Command {
	var (
		fromFile string
		raw      bool
	)
	cmd := &cobra.Command{
		Use:   "describe [address]",
		Short: "Print the discovered schema of a digitizer",
		Long: `Describe runs schema discovery against a device address (e.g.
linux/04f3:2a19:1) or, with --file, against a saved report descriptor in raw
or hex form.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			print := func(desc []byte) error {
				if raw {
					_, err := cmd.OutOrStdout().Write(desc)
					return err
				}
				return describeSchema(cmd.OutOrStdout(), desc)
			}
			if fromFile != "" {
				desc, err := ReadDescriptorFile(fromFile)
				if err != nil {
					return err
				}
				return print(desc)
			}
			if len(args) != 1 {
				return fmt.Errorf("usage: describe <address> (or --file <path>)")
			}
			addr, err := touchsvc.ParseAddress(args[0])
			if err != nil {
				return err
			}
			a, err := provide()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.RunWith(cmd.Context(), func(ctx context.Context) error {
				tr, err := a.Touch().OpenTransport(addr)
				if err != nil {
					return err
				}
				defer tr.Close()
				desc, err := tr.ReportDescriptor()
				if err != nil {
					return err
				}
				return print(desc)
			})
		},
	}
	cmd.Flags().StringVar(&fromFile, "file", "", "read the report descriptor from a file instead of a device")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the raw report descriptor")
	return cmd
}

func NewMonitor() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor <name-or-path>",
		Short: "Print events from a virtual input device",
		Long: `Monitor opens an evdev device by /dev/input path or by name substring
and prints its events until interrupted. Point it at the virtual device the
agent created to watch decoded contacts live.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: monitor <name-or-path>")
			}
			path, err := resolveInputDevice(args[0])
			if err != nil {
				return err
			}
			dev, err := evdev.Open(path)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			go func() {
				// Unblocks ReadOne on interrupt.
				<-ctx.Done()
				dev.Close()
			}()
			name, _ := dev.Name()
			fmt.Fprintf(cmd.OutOrStdout(), "monitoring %s (%s)\n", path, name)
			for {
				event, err := dev.ReadOne()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				printEvent(cmd.OutOrStdout(), event)
			}
		},
	}
}

func resolveInputDevice(arg string) (string, error) {
	if strings.HasPrefix(arg, "/dev/") {
		return arg, nil
	}
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return "", err
	}
	type match struct {
		path string
		name string
	}
	var matches []match
	for _, p := range paths {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(arg)) {
			matches = append(matches, match{p.Path, p.Name})
		}
	}
	switch len(matches) {
	case 1:
		return matches[0].path, nil
	case 0:
		return "", fmt.Errorf("no input device matches %q", arg)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", m.path, m.name))
	}
	return "", fmt.Errorf("%q is ambiguous: %s", arg, strings.Join(names, ", "))
}

func printEvent(w io.Writer, event *evdev.InputEvent) {
	if event.Type == evdev.EV_SYN {
		fmt.Fprintf(w, "-------- %s\n", evdev.CodeName(event.Type, event.Code))
		return
	}
	fmt.Fprintf(w, "%-7s %-22s %d\n",
		evdev.TypeName(event.Type), evdev.CodeName(event.Type, event.Code), event.Value)
}

func NewSimulate() *cobra.Command {
	var (
		devType  string
		contacts int
		settle   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "simulate [gesture]",
		Short: "Create a simulated digitizer and replay a gesture",
		Long: `Simulate creates a uhid-backed digitizer, waits for a running agent to
attach it and replays the named gesture (` + strings.Join(simsvc.GestureNames(), ", ") + `; default tap).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			gesture := "tap"
			if len(args) > 0 {
				gesture = args[0]
			}
			log, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			dev, err := simsvc.NewDevice(ctx, log.Named("sim"), simsvc.DeviceConfig{
				ID:       "cli",
				Type:     devType,
				Contacts: contacts,
			})
			if err != nil {
				return err
			}
			defer dev.Close()
			width, height := dev.Surface()
			frames, err := simsvc.BuildGesture(gesture, width, height)
			if err != nil {
				return err
			}
			// Give a running agent time to claim the fresh hidraw node.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(settle):
			}
			if err := dev.Replay(ctx, frames); err != nil {
				return err
			}
			// Keep the device up long enough for the liftoff to drain.
			select {
			case <-ctx.Done():
			case <-time.After(200 * time.Millisecond):
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&devType, "type", "touchscreen", "device type (touchscreen, touchpad)")
	cmd.Flags().IntVar(&contacts, "contacts", 4, "contact count maximum")
	cmd.Flags().DurationVar(&settle, "settle", 2*time.Second, "wait before replaying so a running agent can attach")
	return cmd
}
