// rimeshell - interactive shell around the conversion bridge
//
// Typed letters are fed to the composition; commands start with ':'.
//
//	:pick <n>        select candidate n on the current page
//	:next / :prev    flip the candidate page
//	:clear           discard the composition
//	:set <name> <on|off>  toggle an engine option
//	:version         print the engine version
//	:quit            shut down and exit
//
// Without a config file it runs against the built-in scripted engine,
// which needs no remote data.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"rimebridge/internal/bridge"
	"rimebridge/internal/config"
	"rimebridge/internal/logging"
	"rimebridge/internal/rime/rimetest"
	"rimebridge/internal/snapshot"
)

func main() {
	configPath := flag.String("config", "", "options file (TOML)")
	rootDir := flag.String("root", "", "engine storage root (default: temp dir)")
	logLevel := flag.String("log-level", "warn", "log level: debug|info|warn|error")
	asJSON := flag.Bool("json", false, "print states as wire records")
	flag.Parse()

	if err := run(*configPath, *rootDir, *logLevel, *asJSON); err != nil {
		fmt.Fprintln(os.Stderr, "rimeshell:", err)
		os.Exit(1)
	}
}

func run(configPath, rootDir, logLevel string, asJSON bool) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log := logging.New(&logging.Config{Level: level, Component: "rimeshell"})
	logging.SetDefault(log)

	var opts *config.Options
	if configPath != "" {
		opts, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else {
		opts = config.Default()
		opts.SkipFetch = true
		if rootDir == "" {
			rootDir, err = os.MkdirTemp("", "rimeshell-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(rootDir)
		}
		opts.RootDir = rootDir
		if err := deployStubData(opts.SharedDataDir()); err != nil {
			return err
		}
	}
	if rootDir != "" {
		opts.RootDir = rootDir
	}

	br := bridge.New(opts, rimetest.New(), log)
	if err := br.Initialize(context.Background()); err != nil {
		return err
	}
	defer br.Destroy()

	fmt.Printf("engine %s ready; :quit to exit\n", br.GetVersion())

	rl, err := readline.New("rime> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if quit := command(br, line, asJSON); quit {
				return nil
			}
			continue
		}
		st, err := br.ProcessInput(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		printState(st, asJSON)
	}
}

// command dispatches one ':' command; returns true to exit.
func command(br *bridge.Bridge, line string, asJSON bool) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return true
	case ":pick":
		if len(fields) != 2 {
			fmt.Println("usage: :pick <n>")
			return false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Println("usage: :pick <n>")
			return false
		}
		st, err := br.PickCandidate(n)
		showResult(st, err, asJSON)
	case ":next":
		st, err := br.FlipPage(true)
		showResult(st, err, asJSON)
	case ":prev":
		st, err := br.FlipPage(false)
		showResult(st, err, asJSON)
	case ":clear":
		if err := br.ClearInput(); err != nil {
			fmt.Println("error:", err)
		}
	case ":set":
		if len(fields) != 3 {
			fmt.Println("usage: :set <name> <on|off>")
			return false
		}
		if err := br.SetOption(fields[1], fields[2] == "on"); err != nil {
			fmt.Println("error:", err)
		}
	case ":version":
		fmt.Println(br.GetVersion())
	default:
		fmt.Println("unknown command:", fields[0])
	}
	return false
}

func showResult(st snapshot.State, err error, asJSON bool) {
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	printState(st, asJSON)
}

func printState(st snapshot.State, asJSON bool) {
	if asJSON {
		data, err := json.Marshal(st)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	if st.Committed != nil {
		fmt.Printf("commit: %s\n", *st.Committed)
	}
	if !st.Active() {
		return
	}
	fmt.Printf("preedit: %s[%s]%s\n", st.PreeditHead, st.PreeditBody, st.PreeditTail)
	for i, c := range st.Candidates {
		label := strconv.Itoa(i + 1)
		if i < len(st.SelectLabels) && st.SelectLabels[i] != "" {
			label = st.SelectLabels[i]
		}
		marker := " "
		if i == st.HighlightedIndex {
			marker = ">"
		}
		if c.Comment != "" {
			fmt.Printf("%s %s. %s (%s)\n", marker, label, c.Text, c.Comment)
		} else {
			fmt.Printf("%s %s. %s\n", marker, label, c.Text)
		}
	}
	more := ""
	if !st.IsLastPage {
		more = " +"
	}
	fmt.Printf("page %d%s\n", st.PageNo+1, more)
}

// deployStubData writes the minimal shared-data layout the scripted
// engine checks for at init.
func deployStubData(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	body := "schema_list:\n  - schema: luna_pinyin\n"
	return os.WriteFile(filepath.Join(dir, "default.yaml"), []byte(body), 0644)
}
