package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/waytablet/internal/config"
	"github.com/bnema/waytablet/internal/httpapi"
	"github.com/bnema/waytablet/internal/logger"
	"github.com/bnema/waytablet/internal/metrics"
	"github.com/bnema/waytablet/internal/receiver"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var receiveCmd = &cobra.Command{
	Use:     "receive",
	Aliases: []string{"receiver"},
	Short:   "Listen for tablet frames",
	Long: `Listen for tablet frames on UDP. Every frame is logged at debug level. With
--inject the frames drive a virtual pointer through /dev/uinput, and with
--http a live event feed is served on /events next to /metrics and /healthz.`,
	RunE: runReceive,
}

func init() {
	receiveCmd.Flags().StringP("bind", "b", "", "Address to bind the UDP socket to")
	receiveCmd.Flags().Uint16P("port", "p", config.DefaultPort, "UDP port to listen on")
	receiveCmd.Flags().Bool("inject", false, "Replay frames on a virtual pointer (needs /dev/uinput access)")
	receiveCmd.Flags().String("http", "", "Serve /events, /metrics and /healthz on this address")

	_ = viper.BindPFlag("receiver.bind_address", receiveCmd.Flags().Lookup("bind"))
	_ = viper.BindPFlag("receiver.port", receiveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("receiver.inject", receiveCmd.Flags().Lookup("inject"))
	_ = viper.BindPFlag("receiver.http_address", receiveCmd.Flags().Lookup("http"))
}

func runReceive(cmd *cobra.Command, args []string) error {
	cfg := config.Get().Receiver

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.NewReceiver(reg)

	handlers := []receiver.Handler{receiver.NewLogHandler(logger.Logger.WithPrefix("frames"))}
	if cfg.Inject {
		h, err := receiver.NewUInputHandler(cfg.ScreenWidth, cfg.ScreenHeight)
		if err != nil {
			return fmt.Errorf("failed to create virtual pointer: %w", err)
		}
		handlers = append(handlers, h)
		logger.Info("Injecting pointer events", "width", cfg.ScreenWidth, "height", cfg.ScreenHeight)
	}

	var monitor *receiver.Monitor
	if cfg.HTTPAddress != "" {
		monitor = receiver.NewMonitor(m)
		handlers = append(handlers, monitor)
	}

	srv := receiver.NewServer(receiver.Options{
		BindAddress: cfg.BindAddress,
		Port:        cfg.Port,
		Handlers:    handlers,
		Metrics:     m,
	})
	if err := srv.Listen(); err != nil {
		for _, h := range handlers {
			_ = h.Close()
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if monitor != nil {
		router := httpapi.NewRouter(httpapi.Options{
			Registry: reg,
			Status:   receiverHealth(srv, monitor),
			Events:   monitor,
		})
		g.Go(func() error {
			logger.Info("Serving event feed", "address", cfg.HTTPAddress)
			return httpapi.Serve(gctx, cfg.HTTPAddress, router)
		})
	}

	err := g.Wait()
	logger.Info("Receiver stopped", "received", srv.Received(), "invalid", srv.Invalid())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func receiverHealth(srv *receiver.Server, monitor *receiver.Monitor) httpapi.StatusFunc {
	return func() map[string]any {
		status := map[string]any{
			"received": srv.Received(),
			"invalid":  srv.Invalid(),
			"monitors": monitor.ClientCount(),
		}
		if addr := srv.Address(); addr != nil {
			status["address"] = addr.String()
		}
		return status
	}
}
