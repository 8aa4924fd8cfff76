package main

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vango-dev/imclient/internal/config"
	"github.com/vango-dev/imclient/internal/errors"
	"github.com/vango-dev/imclient/pkg/archive"
	"github.com/vango-dev/imclient/pkg/client"
	"github.com/vango-dev/imclient/pkg/network"
	"github.com/vango-dev/imclient/pkg/notice"
	"github.com/vango-dev/imclient/pkg/roaming"
	"github.com/vango-dev/imclient/pkg/store"
	"github.com/vango-dev/imclient/pkg/transport"
)

// app holds everything a command needs, built from imclient.json.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	client   *client.Client
	sink     *notice.ChannelSink
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.WatermarkStore, error) {
	if cfg.Driver == "" {
		return store.NewMemoryStore(), nil
	}
	dialect := store.DialectSQLite
	if cfg.Dialect != "" {
		d, err := store.ParseDialect(cfg.Dialect)
		if err != nil {
			return nil, err
		}
		dialect = d
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	s := store.NewSQLStore(db, store.WithDialect(dialect), store.WithTableName(cfg.Table))
	if err := s.CreateTable(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newDialer(cfg *config.Config, metrics *network.Metrics, logger *slog.Logger) transport.Dialer {
	tc := transport.DefaultConfig()
	tc.DialTimeout = cfg.ConnectTimeout()
	tc.OnDrop = metrics.RecordDropped
	tc.Logger = logger
	if cfg.Server.Transport == "ws" {
		return &transport.WebSocketDialer{URL: cfg.Server.URL, Config: tc}
	}
	return &transport.TCPDialer{Address: cfg.Server.Address, Config: tc}
}

func loadApp(ctx context.Context, dir string, sinkSize int) (*app, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	netMetrics := network.NewMetrics(
		network.WithRegistry(reg),
		network.WithConstLabels(prometheus.Labels{"account": strconv.FormatInt(cfg.Account, 10)}),
	)

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, errors.New("E130").Wrap(err).
			WithSuggestion("Check store.driver and store.dsn in " + config.ConfigFileName)
	}

	nc := network.DefaultConfig()
	nc.SessionID = "imclient"
	nc.ConnectTimeout = cfg.ConnectTimeout()
	nc.RequestTimeout = cfg.RequestTimeout()
	nc.ReconnectDelay = cfg.ReconnectDelay()
	nc.HeartbeatInterval = cfg.HeartbeatInterval()
	nc.Logger = logger
	nc.Metrics = netMetrics

	var sink *notice.ChannelSink
	var eventSink notice.EventSink
	if sinkSize > 0 {
		sink = notice.NewChannelSink(sinkSize)
		eventSink = sink
	}

	c := client.New(newDialer(cfg, netMetrics, logger), &client.Config{
		Account:      cfg.Account,
		Token:        cfg.Token,
		LoadContacts: cfg.Session.LoadContacts,
		Network:      nc,
		Roaming: &roaming.Config{
			PageSize: cfg.History.PageSize,
			Attempts: cfg.History.Attempts,
			Logger:   logger,
			Metrics:  roaming.NewMetrics(reg),
		},
		Store:         st,
		Sink:          eventSink,
		NoticeMetrics: notice.NewMetrics(reg),
		Logger:        logger,
	})

	return &app{cfg: cfg, logger: logger, registry: reg, client: c, sink: sink}, nil
}

// login connects and maps session failures to CLI errors.
func (a *app) login(ctx context.Context) error {
	if err := a.client.Login(ctx); err != nil {
		var rejected *network.RejectedError
		if stderrors.As(err, &rejected) {
			return errors.New("E111").Wrap(err).WithSuggestion("Check account and token in " + config.ConfigFileName)
		}
		return errors.New("E110").Wrap(err).WithSuggestion("Check the server section of " + config.ConfigFileName)
	}
	return nil
}

// archiver returns the configured archive target, or nil when none is set.
func (a *app) archiver() (archive.Archiver, error) {
	ac := a.cfg.Archive
	switch {
	case ac.Bucket != "":
		return archive.NewS3Archiver(newS3Client(ac), ac.Bucket, ac.Prefix), nil
	case ac.Dir != "":
		return archive.NewDiskArchiver(ac.Dir)
	}
	return nil, nil
}

// newS3Client builds a client from the standard AWS environment variables.
func newS3Client(ac config.ArchiveConfig) *s3.Client {
	creds := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, stderrors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	})
	return s3.New(s3.Options{
		Region:       ac.Region,
		Credentials:  aws.NewCredentialsCache(creds),
		BaseEndpoint: endpoint(ac.Endpoint),
		UsePathStyle: ac.Endpoint != "",
	})
}

func endpoint(url string) *string {
	if url == "" {
		return nil
	}
	return aws.String(url)
}

func (a *app) close() {
	if err := a.client.Close(); err != nil {
		a.logger.Warn("close failed", "error", err)
	}
}
