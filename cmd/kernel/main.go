package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/heliosproject/helios/kernel/internal/infrastructure/config"
	"github.com/heliosproject/helios/kernel/internal/infrastructure/logging"
	"github.com/heliosproject/helios/kernel/internal/infrastructure/monitoring"
	"github.com/heliosproject/helios/kernel/internal/kernel"
	"github.com/heliosproject/helios/kernel/internal/kernel/provider"
	"github.com/heliosproject/helios/kernel/internal/providers/hostfs"
	"github.com/heliosproject/helios/kernel/internal/server"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (environment variables otherwise)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	metrics := monitoring.NewMetrics()

	files := hostfs.New(cfg.Files.Root, log)
	loader := hostfs.NewLoader(files)

	k := kernel.New(log, kernel.Options{
		Files:   files,
		Factory: loader,
		Metrics: metrics,
		Env:     cfg.Kernel.Env,
	})
	registerPrograms(k)
	k.StartRoot(cfg.Kernel.Init)

	srv := server.New(cfg, log, k, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return k.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal("kernel exited", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// registerPrograms binds program bodies to image names. The init image is a
// minimal line-oriented shell over the console; everything else comes from
// images spawned off the file service.
func registerPrograms(k *kernel.Kernel) {
	k.RegisterProgram("init", initProgram)
	k.RegisterProgram("cat", catProgram)
}

// initProgram echoes console lines and spawns images on "run <path>".
func initProgram(sys *kernel.Syscalls) {
	sys.Send(types.HandleStdout, []byte("init: ready\n"), 0)

	var line []byte
	for {
		chunk, errno := sys.Recv(types.HandleStdin, 256, 0)
		if errno != types.OK {
			sys.Exit(0)
		}
		line = append(line, chunk...)

		for {
			nl := bytes.IndexByte(line, '\n')
			if nl < 0 {
				break
			}
			cmd := string(line[:nl])
			line = line[nl+1:]
			runCommand(sys, cmd)
		}
	}
}

func runCommand(sys *kernel.Syscalls, cmd string) {
	switch {
	case cmd == "":
	case cmd == "exit":
		sys.Exit(0)
	case strings.HasPrefix(cmd, "run "):
		// run <image> [arg]: the argument rides the child's startup channel.
		fields := strings.SplitN(strings.TrimPrefix(cmd, "run "), " ", 2)
		_, child, ch, errno := sys.Spawn(fields[0])
		if errno != types.OK {
			sys.Send(types.HandleStdout, []byte("init: spawn failed: "+errno.String()+"\n"), 0)
			return
		}
		if len(fields) == 2 {
			sys.Send(ch, []byte(fields[1]), 0)
		}
		status := sys.WaitProc(child)
		sys.Send(types.HandleStdout, []byte(fmt.Sprintf("init: %s exited %d\n", fields[0], status)), 0)
		sys.Close(ch)
		sys.Close(child)
	default:
		sys.Send(types.HandleStdout, []byte("init: "+cmd+"\n"), 0)
	}
}

// catProgram streams a file named over the startup channel to stdout.
func catProgram(sys *kernel.Syscalls) {
	path, errno := sys.Recv(types.HandleParentChannel, 256, 0)
	if errno != types.OK {
		sys.Exit(int64(errno))
	}

	h, errno := sys.Open(string(path), provider.OpenRead)
	if errno != types.OK {
		sys.Exit(int64(errno))
	}
	for {
		data, errno := sys.FileRead(h, 512)
		if errno != types.OK {
			sys.Exit(int64(errno))
		}
		if len(data) == 0 {
			break
		}
		sys.Send(types.HandleStdout, data, 0)
	}
	sys.Close(h)
	sys.Exit(0)
}
