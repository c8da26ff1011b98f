// Command minisql is the REPL front end for the MiniSQL engine (§6).
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	isatty "github.com/mattn/go-isatty"

	"github.com/minisql/minisql/internal/sql"
	"github.com/minisql/minisql/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := storage.LoadConfig("minisql.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	engine, err := storage.Open(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer engine.Close()

	exec := sql.NewExecutor(engine)
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())

	reader := bufio.NewReader(os.Stdin)
	var buf strings.Builder
	for {
		if interactive {
			if buf.Len() == 0 {
				fmt.Print("minisql> ")
			} else {
				fmt.Print("    ...> ")
			}
		}
		line, err := reader.ReadString('\n')
		buf.WriteString(line)
		if err != nil {
			if err == io.EOF {
				return runBuffered(exec, buf.String(), interactive)
			}
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if !strings.Contains(line, ";") {
			continue
		}
		stmts := sql.SplitStatements(buf.String())
		buf.Reset()
		for _, s := range stmts {
			if shouldExit(exec, s, interactive) {
				return 0
			}
		}
	}
}

func runBuffered(exec *sql.Executor, remainder string, interactive bool) int {
	for _, s := range sql.SplitStatements(remainder) {
		if shouldExit(exec, s, interactive) {
			return 0
		}
	}
	return 0
}

// shouldExit executes one statement and reports whether the REPL should
// terminate (an `exit;`/`quit;` statement, or clean EOF handling upstream).
func shouldExit(exec *sql.Executor, text string, interactive bool) bool {
	start := time.Now()
	stmt, err := sql.NewParser(text).Parse()
	if err != nil {
		fmt.Println(err)
		return false
	}
	if _, ok := stmt.(*sql.Exit); ok {
		return true
	}

	result, err := exec.Execute(stmt, func(path string) error {
		return runScript(exec, path)
	})
	if err != nil {
		fmt.Println(err)
		if storage.IsFatalIO(err) {
			os.Exit(1)
		}
		return false
	}
	printResult(result)

	// Timing lines are suppressed while running under EXECFILE (§6).
	if !exec.InExecFile() {
		fmt.Printf("(%s)\n", time.Since(start))
	}
	return false
}

func runScript(exec *sql.Executor, path string) error {
	script, err := sql.ReadScript(path)
	if err != nil {
		return err
	}
	for _, s := range sql.SplitStatements(script) {
		stmt, err := sql.NewParser(s).Parse()
		if err != nil {
			fmt.Println(err)
			continue
		}
		if _, ok := stmt.(*sql.Exit); ok {
			continue
		}
		result, err := exec.Execute(stmt, func(p string) error { return runScript(exec, p) })
		if err != nil {
			fmt.Println(err)
			if storage.IsFatalIO(err) {
				os.Exit(1)
			}
			continue
		}
		printResult(result)
	}
	return nil
}

func printResult(r *sql.Result) {
	if r == nil {
		return
	}
	if len(r.Columns) > 0 {
		fmt.Println(sql.FormatTable(r))
		return
	}
	if r.Message != "" {
		fmt.Println(r.Message)
	}
}
