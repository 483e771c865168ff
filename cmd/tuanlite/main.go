package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Tuanzi-bug/tuanlite"
	"github.com/Tuanzi-bug/tuanlite/index"
	"github.com/Tuanzi-bug/tuanlite/persist"
	"github.com/Tuanzi-bug/tuanlite/redis/config"
	"github.com/Tuanzi-bug/tuanlite/redis/database"
	"github.com/Tuanzi-bug/tuanlite/redis/server"
	"github.com/Tuanzi-bug/tuanlite/tcp"
	"github.com/Tuanzi-bug/tuanlite/utils"
	"github.com/google/uuid"
	"github.com/hdt3213/godis/lib/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		logger.Error(err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		host         = flag.String("host", "", "address to bind, overrides the config file")
		port         = flag.Int("port", 0, "port to listen on, overrides the config file")
		snapshotPath = flag.String("snapshot", "", "snapshot file, overrides dir and dbfilename")
		configFile   = flag.String("config", "", "redis.conf style or yaml config file")
	)
	flag.Parse()

	// 从环境变量中获取配置文件路径
	if *configFile == "" {
		*configFile = os.Getenv("CONFIG")
	}
	if *configFile == "" && utils.FileExists("redis.conf") {
		*configFile = "redis.conf"
	}
	if *configFile != "" {
		if err := config.SetupConfig(*configFile); err != nil {
			return fmt.Errorf("load config %s: %w", *configFile, err)
		}
	}
	props := config.Properties
	if *host != "" {
		props.Bind = *host
	}
	if *port != 0 {
		props.Port = *port
	}
	if *snapshotPath != "" {
		props.Dir = "."
		props.DbFilename = *snapshotPath
	}

	if props.LogDir != "" {
		logName := props.LogName
		if logName == "" {
			logName = "tuanlite"
		}
		logger.Setup(&logger.Settings{
			Path:       props.LogDir,
			Name:       logName,
			Ext:        "log",
			TimeFormat: "2006-01-02",
		})
	}
	logger.Info(fmt.Sprintf("tuanlite starting, run id %s", uuid.NewString()))

	options, err := keySpaceOptions(props)
	if err != nil {
		return err
	}
	db, err := tuanlite.Open(options)
	if err != nil {
		return err
	}

	persister, err := persist.Open(props.SnapshotPath(), persist.Options{
		Format:        props.SnapshotFormat,
		MMapAtStartup: props.MMapAtStartup,
	})
	if err != nil {
		_ = db.Close()
		return err
	}
	defer persister.Close()
	if _, err := persister.Load(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("load snapshot %s: %w", persister.Path(), err)
	}
	db.StartSweeper()

	if props.MetricsBind != "" {
		go serveMetrics(props.MetricsBind)
	}

	return tcp.ListenAndServeWithSignal(&tcp.Config{
		Address:    fmt.Sprintf("%s:%d", props.Bind, props.Port),
		MaxConnect: uint32(max(props.MaxClients, 0)),
		Timeout:    10 * time.Second,
	}, server.MakeHandler(database.MakeDB(db, persister)))
}

func keySpaceOptions(props *config.ServerProperties) (tuanlite.Options, error) {
	options := tuanlite.DefaultOptions
	if props.Shards > 0 {
		options.Shards = props.Shards
	}
	options.IndexType = index.ParseIndexType(props.IndexType)
	if options.IndexType == 0 {
		return options, errors.New("unknown index-type " + props.IndexType)
	}
	if props.Hz > 0 {
		options.SweepInterval = time.Second / time.Duration(props.Hz)
	} else {
		options.SweepInterval = 0
	}
	return options, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listening on " + addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(fmt.Sprintf("metrics server stopped: %v", err))
	}
}
