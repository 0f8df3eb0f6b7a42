package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/auth"
	"github.com/MarcoPoloResearchLab/cookbook/internal/config"
	"github.com/MarcoPoloResearchLab/cookbook/internal/database"
	"github.com/MarcoPoloResearchLab/cookbook/internal/labels"
	"github.com/MarcoPoloResearchLab/cookbook/internal/logging"
	"github.com/MarcoPoloResearchLab/cookbook/internal/recipes"
	"github.com/MarcoPoloResearchLab/cookbook/internal/search"
	"github.com/MarcoPoloResearchLab/cookbook/internal/server"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cookbook-api",
		Short: "Cookbook recipe-sharing backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("search-path", defaults.GetString("search.path"), "Search index directory (empty keeps it in memory)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("cookie-name", defaults.GetString("session.cookie_name"), "Session cookie name")
	cmd.PersistentFlags().Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session lifetime in minutes")
	cmd.PersistentFlags().Bool("secure-cookie", defaults.GetBool("session.secure_cookie"), "Mark the session cookie Secure")
	cmd.PersistentFlags().String("admin-username", defaults.GetString("admin.username"), "Username granted the administrator role")
	cmd.PersistentFlags().Int("rate-per-minute", defaults.GetInt("ratelimit.per_minute"), "Mutating requests per minute per client")
	cmd.PersistentFlags().Int("rate-burst", defaults.GetInt("ratelimit.burst"), "Burst of mutating requests per client")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "search.path", "search-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "session.cookie_name", "cookie-name")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "session.secure_cookie", "secure-cookie")
	bindFlag(cmd, "admin.username", "admin-username")
	bindFlag(cmd, "ratelimit.per_minute", "rate-per-minute")
	bindFlag(cmd, "ratelimit.burst", "rate-burst")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, appConfig.AdminUsername, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	index, err := search.Open(search.Options{Path: appConfig.SearchPath, Logger: logger})
	if err != nil {
		return err
	}
	defer index.Close()

	dispatcher := server.NewActivityDispatcher()

	userService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
		Activity: dispatcher,
	})
	if err != nil {
		return err
	}
	labelService, err := labels.NewService(labels.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	recipeService, err := recipes.NewService(recipes.ServiceConfig{
		Database: db,
		Index:    index,
		Labels:   labelService,
		Follows:  userService,
		Activity: dispatcher,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if err := recipeService.Reindex(ctx); err != nil {
		return err
	}

	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		TokenTTL:      appConfig.SessionTTL,
	})
	if err != nil {
		return err
	}
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Recipes:          recipeService,
		Users:            userService,
		Labels:           labelService,
		SessionIssuer:    issuer,
		SessionValidator: validator,
		Activity:         dispatcher,
		Logger:           logger,
		AdminUsername:    appConfig.AdminUsername,
		RatePerMinute:    appConfig.RatePerMinute,
		RateBurst:        appConfig.RateBurst,
		SecureCookies:    appConfig.SessionSecureCookie,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)

	// Request contexts end with the group so open activity streams let shutdown finish.
	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return groupCtx
		},
	}
	group.Go(func() error {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
