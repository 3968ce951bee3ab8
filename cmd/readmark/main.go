// Command readmark manages annotations on saved web snapshots and fixed-layout
// pages from the command line.
//
// Usage:
//
//	readmark import   -source ID -file page.html
//	readmark annotate -source ID -start 10 -end 42 [-kind underline] [-color green] [-note text]
//	readmark mark-page -source ID -page 3 -width 800 -height 1000 -rects '[{"x":100,"y":200,"width":120,"height":20}]'
//	readmark list     -source ID [-page N]
//	readmark apply    -source ID
//	readmark export   -source ID [-domain https://example.com]
//	readmark render   -source ID -page 3 -width 612 -height 792 [-scale 2] [-rotation 90] [-format svg|png] [-out file]
//	readmark delete   -id ANNOTATION_ID | -source ID
//	readmark migrate
//
// Every command accepts -config readmark.yaml.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kittclouds/readmark/internal/config"
	"github.com/kittclouds/readmark/internal/logx"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		logx.Logger().Error("readmark: fatal", "error", err)
		fmt.Fprintln(os.Stderr, "readmark:", err)
		os.Exit(1)
	}
}

const usage = "usage: readmark <import|annotate|mark-page|list|apply|export|render|delete|migrate> [flags]"

var errUsage = errors.New("usage")

type command func(env *env, args []string, stdout io.Writer) error

var commands = map[string]command{
	"import":    runImport,
	"annotate":  runAnnotate,
	"mark-page": runMarkPage,
	"list":      runList,
	"apply":     runApply,
	"export":    runExport,
	"render":    runRender,
	"delete":    runDelete,
	"migrate":   runMigrate,
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errUsage
	}

	configPath, rest := splitConfigFlag(args[1:])
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	logx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logx.ParseLevel(cfg.Log.Level),
	})))

	e, err := openEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	return cmd(e, rest, stdout)
}

// splitConfigFlag pulls -config out of args so each command's flag set only
// sees its own flags.
func splitConfigFlag(args []string) (string, []string) {
	var path string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case (a == "-config" || a == "--config") && i+1 < len(args):
			path = args[i+1]
			i++
		case len(a) > 8 && a[:8] == "-config=":
			path = a[8:]
		case len(a) > 9 && a[:9] == "--config=":
			path = a[9:]
		default:
			rest = append(rest, a)
		}
	}
	return path, rest
}
