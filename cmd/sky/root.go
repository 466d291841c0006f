package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Seann-Moser/sky"
	"github.com/Seann-Moser/sky/oauth/oclient"
	"github.com/Seann-Moser/sky/school"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	storeFile  = "file"
	storeMongo = "mongo"
	storeRedis = "redis"
)

type app struct {
	v      *viper.Viper
	logger *slog.Logger
	client *sky.Client
	school *school.Service

	closers []func(context.Context) error
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func newApp() *app {
	return &app{v: viper.New()}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sky",
		Short:         "Query the Blackbaud SKY API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}

	f := root.PersistentFlags()
	f.String("env-file", ".env", "dotenv file loaded before reading the environment")
	f.String("api-key", "", "subscription key (default $BB_API_KEY)")
	f.String("credentials", "", "application credentials file (default $SKY_CREDENTIALS)")
	f.String("token-path", "", "token file (default $BB_TOKEN_PATH)")
	f.String("token-passphrase", "", "encrypt the token file with this passphrase")
	f.String("store", storeFile, "token store: file, mongo or redis")
	f.String("mongo-uri", "mongodb://localhost:27017", "mongo connection string for --store=mongo")
	f.String("mongo-db", "sky", "mongo database for --store=mongo")
	f.String("redis-addr", "localhost:6379", "redis address for --store=redis")
	f.String("store-key", "default", "record key for mongo and redis stores")
	f.Duration("callback-timeout", 0, "how long to wait for the browser login (default $SKY_CALLBACK_TIMEOUT)")
	f.Bool("no-browser", false, "print the login url instead of opening a browser")
	f.String("qrcode", "", "also write the login url as a QR code png")
	f.StringP("output", "o", formatJSON, "output format: json, csv or text")
	f.String("sqlite", "", "write results into this sqlite database instead of stdout")
	f.String("log-level", "warn", "debug, info, warn or error")

	a.v.SetEnvPrefix("SKY")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlags(f)

	root.AddCommand(
		a.loginCmd(),
		a.getCmd(),
		a.usersCmd(),
		a.levelsCmd(),
		a.sectionsCmd(),
		a.termsCmd(),
		a.enrollmentsCmd(),
		a.summaryCmd(),
		a.advancedListCmd(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	if err := godotenv.Load(a.v.GetString("env-file")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", a.v.GetString("env-file"), err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []sky.Option{sky.WithLogger(a.logger)}
	if s := a.v.GetString("api-key"); s != "" {
		opts = append(opts, sky.WithAPIKey(s))
	}
	if s := a.v.GetString("credentials"); s != "" {
		opts = append(opts, sky.WithCredentialsFile(s))
	}
	if s := a.v.GetString("token-path"); s != "" {
		opts = append(opts, sky.WithTokenPath(s))
	}
	if s := a.v.GetString("token-passphrase"); s != "" {
		opts = append(opts, sky.WithTokenPassphrase(s))
	}
	if d := a.v.GetDuration("callback-timeout"); d > 0 {
		opts = append(opts, sky.WithCallbackTimeout(d))
	}
	if a.v.GetBool("no-browser") {
		opts = append(opts, sky.WithBrowser(nil))
	}
	if s := a.v.GetString("qrcode"); s != "" {
		opts = append(opts, sky.WithQRCode(s))
	}

	store, err := a.tokenStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		opts = append(opts, sky.WithTokenStore(store))
	}

	a.client, err = sky.New(opts...)
	if err != nil {
		return err
	}
	a.school = school.New(a.client, school.WithLogger(a.logger))
	return nil
}

// tokenStore returns nil for the file store so the client builds it from
// its own configuration.
func (a *app) tokenStore(ctx context.Context) (oclient.TokenStore, error) {
	key := a.v.GetString("store-key")
	switch kind := a.v.GetString("store"); kind {
	case storeFile, "":
		return nil, nil
	case storeMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		mc, err := mongo.Connect(connectCtx, options.Client().ApplyURI(a.v.GetString("mongo-uri")))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		a.closers = append(a.closers, mc.Disconnect)
		return oclient.NewMongoTokenStore(mc.Database(a.v.GetString("mongo-db")), key), nil
	case storeRedis:
		rdb := redis.NewClient(&redis.Options{Addr: a.v.GetString("redis-addr")})
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		return oclient.NewRedisTokenStore(rdb, key, 0), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
}

func (a *app) close(ctx context.Context) error {
	var first error
	for _, c := range a.closers {
		if err := c(ctx); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *app) output() output {
	return output{
		format: a.v.GetString("output"),
		sqlite: a.v.GetString("sqlite"),
	}
}
