// Command sqlreplayd hosts database connections for sqlreplay clients. In live
// mode it executes against a database/sql driver and records every result; in
// replay mode it serves recorded results only.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/anacrolix/envpprof"
	"github.com/docopt/docopt-go"
	_ "github.com/mattn/go-sqlite3"
	"github.com/op/go-logging"

	"github.com/anacrolix/sqlreplay"
	"github.com/anacrolix/sqlreplay/cache"
	"github.com/anacrolix/sqlreplay/dbsql"
)

var log = logging.MustGetLogger("sqlreplayd")

const doc = `Usage:
  sqlreplayd [options]

Options:
  --config=<path>      YAML config file.
  --addr=<addr>        Listen address.
  --mode=<mode>        live, replay or passthrough.
  --driver=<name>      database/sql driver for live and passthrough modes.
  --conn=<cs>          Default connection string.
  --cache=<kind>       memory, disk or redis.
  --cache-dir=<dir>    Disk cache directory.
  --redis=<addr>       Redis address for the redis cache.
  --log-level=<level>  Log level, such as DEBUG or NOTICE.
`

func stringOpt(opts map[string]interface{}, key string, dest *string) {
	if s, ok := opts[key].(string); ok {
		*dest = s
	}
}

func loadConfig(argv []string) (cfg Config, err error) {
	opts, err := docopt.Parse(doc, argv, true, "", false)
	if err != nil {
		return
	}
	var path string
	stringOpt(opts, "--config", &path)
	cfg, err = LoadConfig(path)
	if err != nil {
		return
	}
	var mode, kind string
	stringOpt(opts, "--addr", &cfg.Addr)
	stringOpt(opts, "--mode", &mode)
	stringOpt(opts, "--driver", &cfg.Driver)
	stringOpt(opts, "--conn", &cfg.ConnectionString)
	stringOpt(opts, "--cache", &kind)
	stringOpt(opts, "--cache-dir", &cfg.Cache.Dir)
	stringOpt(opts, "--redis", &cfg.Cache.Redis.Addr)
	stringOpt(opts, "--log-level", &cfg.LogLevel)
	if mode != "" {
		cfg.Mode = Mode(mode)
	}
	if kind != "" {
		cfg.Cache.Kind = CacheKind(kind)
	}
	err = cfg.Validate()
	return
}

func newBackend(cfg CacheConfig) (cache.Backend, error) {
	switch cfg.Kind {
	case CacheDisk:
		return cache.NewDisk(cfg.Dir, cfg.FolderDepth)
	case CacheRedis:
		return cache.NewRedis(nil, cache.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		return cache.NewMemory(), nil
	}
}

func newDriver(cfg Config, c *cache.Cache) sqlreplay.Driver {
	base := &dbsql.Driver{Name: cfg.Driver}
	if cfg.Driver == "sqlite3" {
		base.Database = func(string) string { return "main" }
	}
	switch cfg.Mode {
	case ModeReplay:
		return sqlreplay.Replaying(c)
	case ModePassthrough:
		return base
	default:
		return sqlreplay.Recording(base, c)
	}
}

func mainErr() error {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}
	if err := sqlreplay.SetupLogging(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.Mode != ModeReplay && !driverRegistered(cfg.Driver) {
		return fmt.Errorf("no database/sql driver %q", cfg.Driver)
	}
	backend, err := newBackend(cfg.Cache)
	if err != nil {
		return err
	}
	if r, ok := backend.(*cache.Redis); ok {
		defer r.Close()
	}
	s := sqlreplay.NewService(newDriver(cfg, cache.New(backend)), sqlreplay.Options{
		DefaultConnectionString: cfg.ConnectionString,
	})
	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return sqlreplay.WithHost(s, l, func(h *sqlreplay.Host) error {
		log.Noticef("serving %s mode on %s with %s cache", cfg.Mode, h.Addr(), cfg.Cache.Kind)
		<-ctx.Done()
		log.Notice("shutting down")
		return nil
	})
}

func driverRegistered(name string) bool {
	for _, d := range sql.Drivers() {
		if d == name {
			return true
		}
	}
	return false
}

func main() {
	if err := mainErr(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
