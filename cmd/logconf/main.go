package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"starloc/internal/config"
	"starloc/pkg/logconf"
	logx "starloc/pkg/logx"
)

func main() {
	_ = godotenv.Load(".env")

	var (
		name    string
		cfgPath string
		base    string
		watch   bool
		daily   bool
		check   bool
	)
	flag.StringVar(&name, "name", "main", "logger name records are attributed to")
	flag.StringVar(&cfgPath, "config", "", "optional logging config (json or yaml); built-in config if empty")
	flag.StringVar(&base, "base", os.Getenv("STARLOC_BASE"), "base directory; logs go to <base>/log")
	flag.BoolVar(&watch, "watch", false, "reapply the config file when it changes")
	flag.BoolVar(&daily, "daily", false, "roll date-named log files over at midnight")
	flag.BoolVar(&check, "check", false, "validate and print the resolved config as yaml, then exit")
	flag.Parse()

	if err := checkFlags(cfgPath, watch); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	if strings.TrimSpace(base) == "" {
		b, err := logconf.BaseDir()
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		base = b
	}

	var mgr *config.Manager
	if cfgPath != "" {
		mgr = config.NewManager(cfgPath)
		if _, err := mgr.Load(); err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
	}
	build := func(now time.Time) (logconf.Config, error) {
		if mgr == nil {
			return logconf.Build(now, base), nil
		}
		return mgr.Get().Expand(now, base), nil
	}

	cfg, err := build(time.Now())
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if check {
		out, err := config.EncodeYAML(&cfg)
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		_, _ = os.Stdout.Write(out)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := logx.Default()
	defer func() { _ = svc.Close() }()

	log, err := svc.Init(cfg, name)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if daily {
		if err := svc.StartDailyRollover(ctx, build); err != nil {
			log.Error("daily rollover disabled", logx.Err(err))
		}
	}
	if watch {
		mgr.SetLogger(svc.Logger("config"))
		sub := mgr.Subscribe(1)
		defer mgr.Unsubscribe(sub)
		go reapply(ctx, svc, mgr.Get(), sub, build, log)
		go func() { _ = mgr.Watch(ctx) }()
	}

	log.Debug("logging ready",
		logx.String("base", base),
		logx.String("config", cfgPath),
		logx.Bool("watch", watch),
		logx.Bool("daily", daily),
	)

	<-ctx.Done()
	log.Info("shutting down")
}

// checkFlags rejects flag combinations that would be silently ignored.
func checkFlags(cfgPath string, watch bool) error {
	if watch && strings.TrimSpace(cfgPath) == "" {
		return errors.New("-watch needs -config: the built-in config has no file to watch")
	}
	return nil
}

// reapply swaps in every config the manager publishes.
func reapply(ctx context.Context, svc *logx.Service, prev *config.Config, sub <-chan *config.Config, build logx.BuildFunc, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			cfg, err := build(time.Now())
			if err == nil {
				err = svc.Apply(cfg)
			}
			if err != nil {
				log.Error("config reload failed", logx.Err(err))
				continue
			}
			changed, fields := config.SummarizeChange(prev, next)
			prev = next
			log.Info("config reloaded", append(fields, logx.String("changed", strings.Join(changed, ",")))...)
		}
	}
}
