package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/clipvault/core/pkg/clipvault"
)

// repl is the interactive command loop, grounded on the teacher's sloty CLI
// (cmd/sloty/main.go): liner for readline-style input/history, a flat
// command switch, no subcommand framework.
type repl struct {
	client *clipvault.Client
	qc     *clipvault.QueryController
	liner  *liner.State
}

func newREPL(client *clipvault.Client) *repl {
	return &repl{client: client, qc: client.NewQueryController()}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".clipvault_search_history")
}

func (r *repl) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("clipvault-search - interactive clipboard history search")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	defer r.qc.Close()

	for {
		line, err := r.liner.Prompt("clipvault> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "exit" || cmd == "quit" || cmd == "q" {
			fmt.Println("Bye!")

			break
		}

		r.dispatch(cmd, args)
	}

	r.saveHistory()

	return nil
}

func (r *repl) dispatch(cmd string, args []string) {
	switch cmd {
	case "help", "?":
		r.printHelp()
	case "find":
		r.cmdFind(args)
	case "mode":
		r.cmdMode(args)
	case "sort":
		r.cmdSort(args)
	case "more":
		r.cmdMore()
	case "next":
		r.qc.SelectNext()
		r.printSelection()
	case "prev", "previous":
		r.qc.SelectPrevious()
		r.printSelection()
	case "pin":
		r.cmdPin(args, true)
	case "unpin":
		r.cmdPin(args, false)
	case "rm", "delete":
		r.cmdDelete(args)
	case "ls", "list":
		r.printItems()
	case "clear", "cls":
		fmt.Print("\033[H\033[2J")
	default:
		fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
}

func (r *repl) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}

	if f, err := os.Create(path); err == nil {
		_, _ = r.liner.WriteHistory(f)
		f.Close()
	}
}

func (r *repl) completer(line string) []string {
	commands := []string{
		"find", "mode", "sort", "more", "next", "prev", "previous",
		"pin", "unpin", "rm", "delete", "ls", "list", "clear", "cls",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)

	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			completions = append(completions, c)
		}
	}

	return completions
}

func (r *repl) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  find <query...>             Set the search query")
	fmt.Println("  mode <exact|fuzzy|fuzzy_plus|regex>   Set search mode")
	fmt.Println("  sort <recent|relevance>     Set result ordering")
	fmt.Println("  more                        Load the next page")
	fmt.Println("  next / prev                 Move the selection")
	fmt.Println("  pin <n> / unpin <n>         Pin/unpin the nth listed item")
	fmt.Println("  rm <n>                      Delete the nth listed item")
	fmt.Println("  ls                          Reprint the current results")
	fmt.Println("  clear                       Clear the screen")
	fmt.Println("  help                        Show this help")
	fmt.Println("  exit / quit / q             Exit")
}

func (r *repl) cmdFind(args []string) {
	r.qc.SetQuery(strings.Join(args, " "))
	r.printItems()
}

func (r *repl) cmdMode(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: mode <exact|fuzzy|fuzzy_plus|regex>")

		return
	}

	switch args[0] {
	case "exact":
		r.qc.SetMode(clipvault.SearchModeExact)
	case "fuzzy":
		r.qc.SetMode(clipvault.SearchModeFuzzy)
	case "fuzzy_plus":
		r.qc.SetMode(clipvault.SearchModeFuzzyPlus)
	case "regex":
		r.qc.SetMode(clipvault.SearchModeRegex)
	default:
		fmt.Println("unknown mode:", args[0])

		return
	}

	r.printItems()
}

func (r *repl) cmdSort(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: sort <recent|relevance>")

		return
	}

	switch args[0] {
	case "recent":
		r.qc.SetSort(clipvault.SortRecent)
	case "relevance":
		r.qc.SetSort(clipvault.SortRelevance)
	default:
		fmt.Println("unknown sort:", args[0])

		return
	}

	r.printItems()
}

func (r *repl) cmdMore() {
	if err := r.qc.LoadMore(context.Background()); err != nil {
		fmt.Println("error:", err)

		return
	}

	r.printItems()
}

func (r *repl) cmdPin(args []string, pinned bool) {
	rec, ok := r.selectedByIndex(args)
	if !ok {
		return
	}

	if err := r.client.SetPin(context.Background(), rec.ID.String(), pinned); err != nil {
		fmt.Println("error:", err)
	}
}

func (r *repl) cmdDelete(args []string) {
	rec, ok := r.selectedByIndex(args)
	if !ok {
		return
	}

	if err := r.client.Delete(context.Background(), rec.ID.String()); err != nil {
		fmt.Println("error:", err)

		return
	}

	r.printItems()
}

func (r *repl) selectedByIndex(args []string) (clipvault.Record, bool) {
	if len(args) != 1 {
		fmt.Println("usage: <cmd> <n> (see 'ls' for indices)")

		return clipvault.Record{}, false
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("not a number:", args[0])

		return clipvault.Record{}, false
	}

	items := r.qc.State().Items
	if n < 1 || n > len(items) {
		fmt.Println("index out of range:", n)

		return clipvault.Record{}, false
	}

	return items[n-1], true
}

func (r *repl) printItems() {
	st := r.qc.State()

	if st.Loading {
		fmt.Println("(searching...)")
	}

	if len(st.Items) == 0 {
		fmt.Println("(no results)")

		return
	}

	for i, rec := range st.Items {
		marker := " "
		if rec.ID.String() == st.SelectedID {
			marker = "*"
		}

		pin := ""
		if rec.IsPinned {
			pin = " [pinned]"
		}

		fmt.Printf("%s%3d  %s%s\n", marker, i+1, truncate(rec.PlainText, 80), pin)
	}

	if st.CanLoadMore {
		fmt.Println("(more available: 'more')")
	}
}

func (r *repl) printSelection() {
	st := r.qc.State()
	if st.SelectedID == "" {
		fmt.Println("(no selection)")

		return
	}

	for _, rec := range st.Items {
		if rec.ID.String() == st.SelectedID {
			fmt.Println(rec.PlainText)

			return
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
