package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/waytablet/internal/config"
	"github.com/bnema/waytablet/internal/httpapi"
	"github.com/bnema/waytablet/internal/ipc"
	"github.com/bnema/waytablet/internal/logger"
	"github.com/bnema/waytablet/internal/metrics"
	"github.com/bnema/waytablet/internal/network"
	"github.com/bnema/waytablet/internal/source"
	"github.com/bnema/waytablet/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const (
	clientShutdownTimeout = 5 * time.Second
	watchReconfigTimeout  = 10 * time.Second
)

var headless bool

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Stream tablet events to the configured destination",
	Long: `Run the tablet client. Events produced by the selected source are queued and
sent as UDP datagrams to client.host:client.port. Editing those keys in the
config file, or running "waytablet reconfigure", moves the stream to a new
destination without restarting.`,
	RunE: runClient,
}

func init() {
	clientCmd.Flags().StringP("host", "H", "", "Destination host name or address")
	clientCmd.Flags().Uint16P("port", "p", config.DefaultPort, "Destination UDP port")
	clientCmd.Flags().StringP("source", "s", "", "Event source: demo, script or stdin")
	clientCmd.Flags().String("script", "", "Script file for the script source")
	clientCmd.Flags().String("metrics", "", "Serve /metrics and /healthz on this address")
	clientCmd.Flags().BoolVar(&headless, "no-tui", false, "Log to the terminal instead of showing the status view")

	// Bind flags to viper
	_ = viper.BindPFlag(config.KeyClientHost, clientCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag(config.KeyClientPort, clientCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("client.source", clientCmd.Flags().Lookup("source"))
	_ = viper.BindPFlag("client.script_path", clientCmd.Flags().Lookup("script"))
	_ = viper.BindPFlag("client.metrics_address", clientCmd.Flags().Lookup("metrics"))
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	src, err := source.New(cfg.Client.Source, cfg.Client.ScriptPath, os.Stdin)
	if err != nil {
		return err
	}
	// the status view needs the terminal's stdin
	useTUI := !headless && src.Name() != source.NameStdin

	if useTUI && cfg.Logging.FileLogging {
		// Bubble Tea owns the terminal, keep log output out of it
		logFile, err := logger.SetupFileLogging("client")
		if err != nil {
			return fmt.Errorf("failed to setup file logging: %w", err)
		}
		defer func() { _ = logFile.Close() }()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	client := network.NewClient(network.Options{
		Destination: func() (string, uint16) {
			d := config.CurrentDestination()
			return d.Host, d.Port
		},
		Metrics: metrics.NewClient(reg),
	})

	// The worker outlives ctx so the final Disconnect is still processed
	go func() {
		if err := client.Run(context.Background()); err != nil {
			logger.Error("Network worker stopped", "error", err)
		}
	}()
	defer shutdownClient(client)

	startAddr, startErr := client.ReconfigureNetworking(ctx)
	if startErr != nil {
		logger.Warn("No destination yet, events are dropped until one is configured", "error", startErr)
	} else {
		logger.Info("Streaming", "destination", startAddr, "source", src.Name())
	}

	ipcServer, err := ipc.NewSocketServer("", ipc.NewClientHandler(client).WithReload(config.Reload))
	if err != nil {
		return err
	}
	if err := ipcServer.Start(); err != nil {
		logger.Warn("Control socket unavailable", "error", err)
	} else {
		defer ipcServer.Stop()
	}

	var program *tea.Program
	g, gctx := errgroup.WithContext(ctx)

	notify := func(ui.ReconfigureResultMsg) {}
	if useTUI {
		model := ui.NewStatusModel(client, src.Name(), Version)
		model.Update(ui.ReconfigureResultMsg{
			Destination: config.CurrentDestination().String(),
			Addr:        startAddr,
			Err:         startErr,
		})
		program = ui.NewProgram(gctx, model)
		notify = func(msg ui.ReconfigureResultMsg) {
			program.Send(msg)
		}
	}

	watcher := config.NewWatcher(destinationChanged(gctx, client, notify))
	g.Go(func() error {
		watcher.Watch(gctx)
		return nil
	})

	if addr := cfg.Client.MetricsAddress; addr != "" {
		router := httpapi.NewRouter(httpapi.Options{
			Registry: reg,
			Status:   clientHealth(client),
		})
		g.Go(func() error { return httpapi.Serve(gctx, addr, router) })
	}

	sourceDone := make(chan error, 1)
	go func() {
		err := src.Run(gctx, client)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		sourceDone <- err
	}()

	g.Go(func() error {
		if program == nil {
			select {
			case err := <-sourceDone:
				if err != nil {
					return fmt.Errorf("%s source: %w", src.Name(), err)
				}
				logger.Info("Source finished", "source", src.Name())
				stop()
			case <-gctx.Done():
			}
			return nil
		}

		go func() {
			select {
			case err := <-sourceDone:
				program.Send(ui.SourceDoneMsg{Err: err})
			case <-gctx.Done():
			}
		}()

		_, err := program.Run()
		stop()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

// destinationChanged returns the config watcher callback. It moves the
// client to the new destination and reports the outcome through notify.
func destinationChanged(ctx context.Context, c ipc.Controller, notify func(ui.ReconfigureResultMsg)) func(config.Destination) {
	return func(d config.Destination) {
		rctx, cancel := context.WithTimeout(ctx, watchReconfigTimeout)
		defer cancel()

		addr, err := c.ReconfigureNetworking(rctx)
		if err != nil {
			logger.Warn("Reconfigure after config change failed", "destination", d, "error", err)
		}
		notify(ui.ReconfigureResultMsg{Destination: d.String(), Addr: addr, Err: err})
	}
}

func clientHealth(c *network.Client) httpapi.StatusFunc {
	return func() map[string]any {
		st := c.Stats()
		dest := ""
		if st.Destination != nil {
			dest = st.Destination.String()
		}
		return map[string]any{
			"state":       st.State.String(),
			"destination": dest,
			"sent":        st.Sent,
			"dropped":     st.Dropped,
			"send_errors": st.SendErrors,
			"queued":      st.Queued,
		}
	}
}

// shutdownClient queues the final Disconnect, closes the queue and waits for
// the worker to drain it.
func shutdownClient(c *network.Client) {
	c.Disconnect()
	c.Close()

	select {
	case <-c.Done():
	case <-time.After(clientShutdownTimeout):
		logger.Warn("Network worker did not stop in time", "queued", c.Stats().Queued)
	}
}
