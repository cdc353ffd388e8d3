package main

import (
	"cad-lab/internal"
	"cad-lab/llm"
	"cad-lab/services"
	"cad-lab/sink"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

const exitCommand = "exit"

func main() {
	code, err := run()
	if err != nil {
		slog.Error("Program stopped", "error", err)
	}
	os.Exit(code)
}

// run keeps every defer inside one function so that stores are closed before exiting.
func run() (int, error) {
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := internal.NewApp(ctx, config, log)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = app.Close() }()

	healthCtx, cancelHealth := context.WithCancel(ctx)
	defer cancelHealth()
	go func() { _ = app.Health.Run(healthCtx) }()
	if app.Docs != nil {
		if _, err := app.Docs.Build(ctx, config.DocsDir, app.Splitter()); err != nil {
			log.Warn("Documentation store unavailable, RAG chats will fail", "error", err)
		}
	}

	console := NewConsole(os.Stdin, os.Stdout)
	console.Println("\nLet's create CAD models!")
	console.Println("-------------------")

	keys, err := llm.LoadKeys()
	if err != nil {
		return exitConfig, err
	}
	cfgs, err := chooseModels(ctx, console, llm.DefaultCatalog(), keys)
	if err != nil {
		return finish(err)
	}
	provider, err := llm.NewFromList(cfgs, log)
	if err != nil {
		return exitConfig, err
	}

	chats := app.ChatService(app.Deps(provider, nil, console))
	console.Println("Enter 'exit' to exit the program")
	team, err := chooseTeam(ctx, console, chats.Teams())
	if err != nil {
		return finish(err)
	}

	transcript := sink.NewConsoleSink(os.Stdout, config.Colours)
	if err := promptLoop(ctx, console, chats, team.Name, transcript); err != nil {
		return finish(err)
	}
	return exitOK, nil
}

// promptLoop runs one chat per design problem. Failed chats are reported and
// the loop goes on.
func promptLoop(ctx context.Context, console *Console, chats services.IChatService, team string, transcript *sink.ConsoleSink) error {
	for {
		prompt, err := console.Ask(ctx, "\nEnter your design problem (or 'exit' if you want to exit): ")
		if err != nil {
			return err
		}
		if strings.EqualFold(prompt, exitCommand) {
			console.Println("\nExiting CAD Design Assistant")
			return nil
		}
		if prompt == "" {
			continue
		}

		outcome, err := chats.Run(ctx, team, prompt, transcript)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			console.Println(fmt.Sprintf("An error occurred: %v", err))
			console.Println("Please try again.")
			continue
		}
		console.Println(fmt.Sprintf("Chat ended after %d rounds (%s).", outcome.Result.Rounds, outcome.Result.StopReason))
		if outcome.STLPath != "" {
			console.Println("STL file:", outcome.STLPath)
		}
	}
}

// finish maps an interrupted or closed input to a clean exit.
func finish(err error) (int, error) {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, io.EOF) {
		fmt.Println("\nSession interrupted by user")
		return exitOK, nil
	}
	return exitRuntime, err
}
