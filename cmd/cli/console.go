package main

import (
	"bufio"
	"cad-lab/llm"
	"cad-lab/teams"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type line struct {
	text string
	err  error
}

// Console reads answers line by line. A read can be abandoned through its
// context, the pending line is then handed to the next read.
type Console struct {
	lines chan line
	out   io.Writer
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{lines: make(chan line), out: out}
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			c.lines <- line{text: scanner.Text()}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		c.lines <- line{err: err}
		close(c.lines)
	}()
	return c
}

// Ask prints the prompt and waits for one line. It implements contract.HumanInput.
func (c *Console) Ask(ctx context.Context, prompt string) (string, error) {
	_, _ = fmt.Fprint(c.out, prompt)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(l.text), l.err
	}
}

func (c *Console) Println(a ...any) {
	_, _ = fmt.Fprintln(c.out, a...)
}

// chooseModels asks whether to keep the default configuration, otherwise lets
// the user pick a catalog model and asks for its key when the environment has none.
func chooseModels(ctx context.Context, c *Console, catalog *llm.Catalog, keys llm.Keys) ([]llm.Config, error) {
	for {
		answer, err := c.Ask(ctx, "Do you want to use the default llm configuration? (Y/N): ")
		if err != nil {
			return nil, err
		}
		switch strings.ToUpper(answer) {
		case "", "Y", "YES":
			return llm.DefaultConfigList(keys)
		case "N", "NO":
			return pickModel(ctx, c, catalog, keys)
		default:
			c.Println("Please answer Y or N.")
		}
	}
}

func pickModel(ctx context.Context, c *Console, catalog *llm.Catalog, keys llm.Keys) ([]llm.Config, error) {
	printModels(c.out, catalog.Models())
	var model llm.ModelInfo
	for {
		answer, err := c.Ask(ctx, "Enter the number of the model you want to use: ")
		if err != nil {
			return nil, err
		}
		position, err := strconv.Atoi(answer)
		if err != nil {
			c.Println("Invalid input. Please enter a number.")
			continue
		}
		if model, err = catalog.At(position); err != nil {
			c.Println(err.Error())
			continue
		}
		break
	}

	if _, err := keys.For(model.Vendor); err != nil {
		key, err := c.Ask(ctx, fmt.Sprintf("Enter your %s: ", model.Vendor.KeyEnv()))
		if err != nil {
			return nil, err
		}
		if key == "" {
			return nil, fmt.Errorf("no key given for %s", model.Name)
		}
		_ = os.Setenv(model.Vendor.KeyEnv(), key)
		keys = keys.With(model.Vendor, key)
	}
	cfg, err := llm.Resolve(catalog, model.Name, keys)
	if err != nil {
		return nil, err
	}
	c.Println("Using model", model.Name)
	return []llm.Config{cfg}, nil
}

func printModels(out io.Writer, models []llm.ModelInfo) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Model", "Vendor"})
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for i, m := range models {
		table.Append([]string{strconv.Itoa(i + 1), m.Name, string(m.Vendor)})
	}
	table.Render()
}

// chooseTeam shows the chat menu until a valid entry is picked.
func chooseTeam(ctx context.Context, c *Console, defs []teams.TeamDef) (teams.TeamDef, error) {
	c.Println("Please select one of the agentic chats to create CAD models:")
	lo.ForEach(defs, func(t teams.TeamDef, i int) {
		c.Println(fmt.Sprintf("%d. %s", i+1, t.Title))
	})
	for {
		answer, err := c.Ask(ctx, "Enter the number of your choice: ")
		if err != nil {
			return teams.TeamDef{}, err
		}
		choice, err := strconv.Atoi(answer)
		if err != nil {
			c.Println("Invalid input. Please enter a number.")
			continue
		}
		if choice < 1 || choice > len(defs) {
			c.Println(fmt.Sprintf("Invalid choice. Please enter a number between 1 and %d.", len(defs)))
			continue
		}
		return defs[choice-1], nil
	}
}
