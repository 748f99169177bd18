package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rthompson/todosync/internal/cache"
	"github.com/rthompson/todosync/internal/engine"
	"github.com/rthompson/todosync/internal/remote"
	"github.com/rthompson/todosync/internal/store"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tds",
	Short: "Offline-first task sync for Microsoft To Do",
	Long: `tds keeps a local working set of tasks synchronized with Microsoft To Do.

Mutations apply locally first and are pushed to the remote service in the
background of the command; when the push fails the local state rolls back
(for edits) or is retained for retry (for creates). A full refresh merges
remote state without discarding unsynced local work.

Configuration lives in ~/.config/todosync/config.yaml and can be
overridden with TDS_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/todosync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging to stderr")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(importantCmd)
	rootCmd.AddCommand(mydayCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(listsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TDS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("cache_path", filepath.Join(configDir(), "cache.db"))
	viper.SetDefault("graph.base_url", remote.DefaultBaseURL)
	viper.SetDefault("graph.tenant", "common")
	viper.SetDefault("graph.token_file", filepath.Join(configDir(), "token.json"))
	viper.SetDefault("sync.interval", "5m")
	viper.SetDefault("dashboard.port", 8484)
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)

	// Missing config file is fine: defaults plus env cover first run.
	_ = viper.ReadInConfig()
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".todosync"
	}
	return filepath.Join(home, ".config", "todosync")
}

// app bundles the pieces every command needs: the local store seeded
// from the offline snapshot, the sync engine, and the snapshot cache.
type app struct {
	store  *store.Store
	cache  *cache.Cache
	engine *engine.Engine
	logger *log.Logger
}

func newApp() (*app, error) {
	logger := newLogger()

	snap, err := cache.Open(viper.GetString("cache_path"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	st := store.New()
	ctx := context.Background()
	containers, tasks, err := snap.LoadSnapshot(ctx)
	if err != nil {
		snap.Close()
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if len(containers) > 0 {
		if err := st.Replace(containers, tasks); err != nil {
			snap.Close()
			return nil, fmt.Errorf("snapshot is inconsistent: %w", err)
		}
	}

	adapter := remote.NewGraph(newCredentials(), &http.Client{Timeout: 30 * time.Second})
	if base := viper.GetString("graph.base_url"); base != "" {
		adapter.SetBaseURL(base)
	}

	return &app{
		store:  st,
		cache:  snap,
		engine: engine.New(st, adapter, logger),
		logger: logger,
	}, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Printf("Warning: failed to close cache: %v", err)
	}
}

// persist saves the current working set to the offline snapshot.
func (a *app) persist(ctx context.Context) {
	if err := a.cache.SaveSnapshot(ctx, a.engine.Containers(), a.engine.Tasks()); err != nil {
		a.logger.Printf("Warning: failed to save snapshot: %v", err)
	}
}

func newCredentials() remote.CredentialProvider {
	if tok := viper.GetString("graph.access_token"); tok != "" {
		return remote.StaticToken(tok)
	}

	tokenFile := viper.GetString("graph.token_file")
	tok, err := remote.LoadToken(tokenFile)
	if err != nil {
		// No stored token: every remote call will surface an auth error
		// telling the user to authenticate.
		return remote.StaticToken("")
	}
	cfg := remote.OAuthConfig(
		viper.GetString("graph.client_id"),
		viper.GetString("graph.tenant"),
	)
	return remote.NewOAuthProvider(cfg, tok, tokenFile)
}

func newLogger() *log.Logger {
	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	if logFile := viper.GetString("log.file"); logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    viper.GetInt("log.max_size_mb"),
			MaxBackups: viper.GetInt("log.max_backups"),
			Compress:   true,
		}
		if verbose {
			w = io.MultiWriter(os.Stderr, rotating)
		} else {
			w = rotating
		}
	}
	return log.New(w, "[tds] ", log.LstdFlags)
}

// resolveTask finds the single task whose local ID starts with prefix.
func resolveTask(a *app, prefix string) (string, error) {
	var match string
	for _, t := range a.engine.Tasks() {
		if strings.HasPrefix(t.LocalID, prefix) {
			if match != "" {
				return "", fmt.Errorf("task ID %q is ambiguous", prefix)
			}
			match = t.LocalID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no task matches ID %q", prefix)
	}
	return match, nil
}

// resolveContainer finds a container by name (exact, case-insensitive)
// or local ID prefix.
func resolveContainer(a *app, ref string) (string, error) {
	var match string
	for _, c := range a.engine.Containers() {
		if strings.EqualFold(c.Name, ref) || strings.HasPrefix(c.LocalID, ref) {
			if match != "" && match != c.LocalID {
				return "", fmt.Errorf("list %q is ambiguous", ref)
			}
			match = c.LocalID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no list matches %q", ref)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
