package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"tradeterm/internal/app"
	"tradeterm/internal/ui"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap failed:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config
	model := ui.New(bootstrap.Feed, bootstrap.Desk, bootstrap.Ledger, cfg.PairList(), cfg.Market.Intervals)
	program := tea.NewProgram(model, tea.WithAltScreen())

	bootstrap.Feed.SetOnUpdate(func() {
		program.Send(ui.FeedUpdated{})
	})

	go bootstrap.Feed.Run(ctx, cfg.DefaultPair(), cfg.Market.DefaultInterval)

	// A termination signal must tear the terminal down the same way a
	// quit key does.
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		slog.Error("terminal program failed", slog.Any("error", err))
	}
	stop()

	bootstrap.Shutdown()
	slog.Info("shutdown complete")
}
