package command

import (
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/livectl/internal/config"
	"github.com/nextlevelbuilder/livectl/internal/credential"
	"github.com/nextlevelbuilder/livectl/internal/identity"
	"github.com/nextlevelbuilder/livectl/internal/live"
	"github.com/nextlevelbuilder/livectl/internal/platform"
	"github.com/nextlevelbuilder/livectl/internal/request"
	"github.com/nextlevelbuilder/livectl/internal/session"
)

// Runtime assembles the whole core from config: identity pool, executor,
// platform client, credential store, session manager, broadcast controller,
// and the command router over them.
type Runtime struct {
	Router   *Router
	Sessions *session.Manager
	Rooms    *live.Controller

	pool    *identity.Pool
	exec    *request.Executor
	client  *platform.Client
	watcher *config.Watcher
}

// NewRuntime builds the core. watchPath, when non-empty, enables config hot
// reload for the classification tables and retry policy.
func NewRuntime(cfg *config.Config, watchPath string) (*Runtime, error) {
	pool := identity.NewPool(cfg.Identity.UserAgents)
	exec := request.New(pool, cfg.Classifier(), cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)

	eps := platform.DefaultEndpoints()
	if cfg.Endpoints.Passport != "" {
		eps.Passport = cfg.Endpoints.Passport
	}
	if cfg.Endpoints.LiveAPI != "" {
		eps.LiveAPI = cfg.Endpoints.LiveAPI
	}
	if cfg.Endpoints.MainAPI != "" {
		eps.MainAPI = cfg.Endpoints.MainAPI
	}
	client := platform.New(exec, cfg.Policy(), eps)

	credPath, err := cfg.CredentialPath()
	if err != nil {
		return nil, fmt.Errorf("resolve credential path: %w", err)
	}
	var store credential.Store = credential.NewFileStore(credPath)
	if cfg.Storage.UseKeyring {
		store = credential.NewKeyringStore(credential.NewFileStore(credPath))
	}

	sessions := session.NewManager(client, store, cfg.RefreshLead())
	rooms := live.NewController(client, sessions, live.NewAreaTable())

	rt := &Runtime{
		Sessions: sessions,
		Rooms:    rooms,
		pool:     pool,
		exec:     exec,
		client:   client,
	}
	rt.Router = NewRouter(sessions, rooms)

	if watchPath != "" {
		watcher, err := config.NewWatcher(watchPath)
		if err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		} else {
			watcher.OnChange(rt.applyConfig)
			if err := watcher.Start(); err != nil {
				slog.Debug("config watch skipped", "error", err)
				watcher.Stop() // release the inotify descriptor
			} else {
				rt.watcher = watcher
			}
		}
	}

	return rt, nil
}

// Close stops the config watcher.
func (rt *Runtime) Close() {
	if rt.watcher != nil {
		rt.watcher.Stop()
	}
}

// applyConfig pushes reloaded classification tables, retry policy, and the
// identity pool into the running executor and client.
func (rt *Runtime) applyConfig(cfg *config.Config) {
	rt.exec.SetClassifier(cfg.Classifier())
	rt.client.SetPolicy(cfg.Policy())
	rt.pool.Replace(cfg.Identity.UserAgents)
}
