// Package runnertest turns a test binary into a scriptable fake device tool.
//
// A test package calls Main from TestMain; commands built with Command then
// re-execute the test binary, which behaves as the requested mode instead
// of running tests.
package runnertest

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"DevPanel/pkg/runner"
)

const envKey = "DEVPANEL_WANT_HELPER_PROCESS"

// Command returns a runner.Command that runs the fake tool in mode
func Command(mode string, args ...string) runner.Command {
	return runner.Command{
		Tool: os.Args[0],
		Args: append([]string{"--", mode}, args...),
		Env:  []string{envKey + "=1"},
	}
}

// Main runs the fake tool and exits when the binary was started by
// Command. It returns immediately in a normal test run.
func Main() {
	if os.Getenv(envKey) != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "no helper mode")
		os.Exit(2)
	}
	os.Exit(run(args[0], args[1:]))
}

func run(mode string, args []string) int {
	switch mode {
	case "echo":
		// one line per argument
		for _, a := range args {
			fmt.Println(a)
		}
		return 0

	case "lines":
		n, _ := strconv.Atoi(arg(args, 0, "3"))
		for i := 1; i <= n; i++ {
			fmt.Printf("line-%d\n", i)
		}
		return 0

	case "exit":
		code, _ := strconv.Atoi(arg(args, 0, "1"))
		for _, a := range args[min(1, len(args)):] {
			fmt.Println(a)
		}
		return code

	case "stderr":
		fmt.Fprintln(os.Stderr, arg(args, 0, "error output"))
		return 0

	case "env":
		fmt.Println(os.Getenv(arg(args, 0, "PATH")))
		return 0

	case "sleep":
		fmt.Println("started")
		time.Sleep(duration(args, 10*time.Second))
		return 0

	case "trap":
		// reports each interrupt, exits shortly after the first one
		sigs := make(chan os.Signal, 4)
		signal.Notify(sigs, os.Interrupt)
		fmt.Println("started")
		deadline := time.After(duration(args, 10*time.Second))
		var exit <-chan time.Time
		for {
			select {
			case <-sigs:
				fmt.Println("interrupted")
				if exit == nil {
					exit = time.After(300 * time.Millisecond)
				}
			case <-exit:
				return 0
			case <-deadline:
				return 0
			}
		}

	case "stubborn":
		signal.Ignore(os.Interrupt)
		fmt.Println("started")
		time.Sleep(duration(args, 10*time.Second))
		return 0
	}
	fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)
	return 2
}

func arg(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}

func duration(args []string, def time.Duration) time.Duration {
	if len(args) == 0 {
		return def
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return def
	}
	return d
}
