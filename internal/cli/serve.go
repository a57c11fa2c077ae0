package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nacplan/internal/api"
	"github.com/matzehuels/nacplan/pkg/cache"
	"github.com/matzehuels/nacplan/pkg/pipeline"
	"github.com/matzehuels/nacplan/pkg/store"
)

// serveFlags holds the command-line flags for the serve command.
type serveFlags struct {
	addr       string
	policyPath string

	redisURL    string // shared plan cache; empty uses the local file cache
	redisPrefix string
	cacheScope  string // key scope when several deployments share one cache
	noCache     bool

	mongoURI   string // plan store; empty uses a file store
	mongoDB    string
	storeDir   string
	memoryOnly bool
}

// serveCommand creates the serve command for the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the plan API over HTTP",
		Long: `Serve the plan API over HTTP.

Endpoints:
  GET    /healthz
  POST   /v1/plans
  GET    /v1/plans
  GET    /v1/plans/{id}
  DELETE /v1/plans/{id}
  GET    /v1/plans/{id}/artifacts/{format}

Plans are cached in Redis when --redis-url is given and stored in MongoDB when
--mongo-uri is given; otherwise the local cache and plan history are used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVarP(&flags.policyPath, "policy", "p", "", "policy applied to requests without one (TOML)")
	cmd.Flags().StringVar(&flags.redisURL, "redis-url", "", "Redis URL for the plan cache (redis://host:6379/0)")
	cmd.Flags().StringVar(&flags.redisPrefix, "redis-prefix", appName+":", "Redis key prefix")
	cmd.Flags().StringVar(&flags.cacheScope, "cache-scope", "", "extra cache key scope, e.g. a site or tenant name")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&flags.mongoURI, "mongo-uri", "", "MongoDB URI for the plan store")
	cmd.Flags().StringVar(&flags.mongoDB, "mongo-db", store.DefaultMongoDatabase, "MongoDB database")
	cmd.Flags().StringVar(&flags.storeDir, "store-dir", "", "plan store directory (default: the plan history)")
	cmd.Flags().BoolVar(&flags.memoryOnly, "memory", false, "keep plans in memory only")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, flags serveFlags) error {
	pol, source, err := loadPolicy(flags.policyPath)
	if err != nil {
		return err
	}
	if source != "" {
		c.Logger.Info("policy loaded", "file", source)
	}

	planCache, err := c.serveCache(ctx, flags)
	if err != nil {
		return err
	}
	var keyer cache.Keyer
	if flags.cacheScope != "" {
		keyer = cache.NewScopedKeyer(nil, flags.cacheScope+":")
	}
	runner := pipeline.NewRunner(planCache, keyer, c.Logger)
	defer runner.Close()

	st, err := c.serveStore(ctx, flags)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := api.New(runner, st, c.Logger, api.WithPolicy(pol))
	return srv.ListenAndServe(ctx, flags.addr)
}

func (c *CLI) serveCache(ctx context.Context, flags serveFlags) (cache.Cache, error) {
	if flags.noCache {
		return cache.NewNullCache(), nil
	}
	if flags.redisURL == "" {
		return newCache(false)
	}
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: flags.redisURL, Prefix: flags.redisPrefix})
	if err != nil {
		return nil, err
	}
	c.Logger.Info("plan cache", "backend", "redis")
	return rc, nil
}

func (c *CLI) serveStore(ctx context.Context, flags serveFlags) (store.Store, error) {
	switch {
	case flags.mongoURI != "":
		ms, err := store.NewMongoStore(ctx, store.MongoConfig{URI: flags.mongoURI, Database: flags.mongoDB})
		if err != nil {
			return nil, err
		}
		c.Logger.Info("plan store", "backend", "mongodb", "database", flags.mongoDB)
		return ms, nil
	case flags.memoryOnly:
		c.Logger.Info("plan store", "backend", "memory")
		return store.NewMemoryStore(), nil
	}

	dir := flags.storeDir
	if dir == "" {
		var err error
		if dir, err = plansDir(); err != nil {
			return nil, fmt.Errorf("get plans dir: %w", err)
		}
	}
	fs, err := store.NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	c.Logger.Info("plan store", "backend", "file", "dir", fs.Path())
	return fs, nil
}
