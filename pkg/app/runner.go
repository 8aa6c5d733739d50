package app

import (
	"fmt"
	"os"
	"time"

	"github.com/argus-mc/argus/pkg/audit"
	"github.com/argus-mc/argus/pkg/core"
	"github.com/argus-mc/argus/pkg/discord"
	"github.com/argus-mc/argus/pkg/log"
	"github.com/argus-mc/argus/pkg/mojang"
	"github.com/argus-mc/argus/pkg/settings"
	"github.com/argus-mc/argus/pkg/storage"
	"github.com/argus-mc/argus/pkg/store"
	"github.com/argus-mc/argus/pkg/task"
	"github.com/argus-mc/argus/pkg/token"
	"github.com/argus-mc/argus/pkg/util"
)

const (
	// TokenEnv is the environment variable holding the bot token. It takes
	// precedence over the botToken config field.
	TokenEnv = "ARGUS_BOT_TOKEN"

	// LogDirEnv overrides the log directory (default "logs").
	LogDirEnv = "ARGUS_LOG_DIR"

	// AuditDBEnv overrides the audit archive location.
	AuditDBEnv = "ARGUS_AUDIT_DB_PATH"

	defaultLogDir      = "logs"
	defaultAuditDBPath = "config/argus_audit.db"

	maintenanceInterval = 5 * time.Minute
	shutdownFlushWait   = 5 * time.Second
)

// Run bootstraps the whole service and blocks until an interrupt.
//
// Startup order matters: logger first so everything after can log, then
// settings and the cache snapshot, then the durable audit archive, and the
// Discord bridge last. A missing bot token or guild id is not an error; the
// decision engine runs on cached state until configuration arrives.
func Run() error {
	started := time.Now()

	logDir := os.Getenv(LogDirEnv)
	if logDir == "" {
		logDir = defaultLogDir
	}
	if err := log.SetupLogger(logDir); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	defer log.Close()

	log.Info(log.Application, "Starting argus...")

	st := settings.NewManager(settings.ResolveConfigPath())
	db := store.NewStore()
	tokens := token.NewService()
	aud := audit.NewLogger()
	resolver := mojang.NewResolver()

	c := core.New(st, db, tokens, aud, resolver)
	if err := c.Initialize(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	// Environment token wins over the config field and never touches the file.
	if envToken, err := util.LoadEnvWithLocalBinFallback(TokenEnv); err == nil && envToken != "" {
		st.OverrideBotToken(envToken)
	} else if st.Current().BotToken == "" {
		log.Infof(log.Application, "No bot token in %s or config; Discord bridge will stay offline", TokenEnv)
	}

	dbPath := os.Getenv(AuditDBEnv)
	if dbPath == "" {
		dbPath = defaultAuditDBPath
	}
	archive := storage.NewAuditArchive(dbPath)
	if err := archive.Init(); err != nil {
		return fmt.Errorf("initialize audit archive: %w", err)
	}
	defer archive.Close()

	bridge := discord.NewBridge(st, c)
	c.SetBridge(bridge)

	// Every audit entry lands in the archive; the Discord embed is best-effort.
	aud.SetDispatcher(func(e audit.Entry) {
		if err := archive.Append(e); err != nil {
			log.Errorf("audit archive append failed: %v", err)
		}
		bridge.DispatchAudit(e)
	})

	if err := c.StartDiscord(); err != nil {
		log.Errorf("Discord startup failed (continuing on cached state): %v", err)
	}

	stopMaintenance := task.ScheduleEvery(maintenanceInterval, "maintenance", func() {
		tokens.ListActive() // sweeps expired link tokens
		db.FlushSaves(time.Second)
	})
	defer stopMaintenance()

	log.Infof(log.Application, "argus initialized in %s", time.Since(started).Round(time.Millisecond))

	util.WaitForInterrupt()
	log.Info(log.Application, "Stopping argus...")

	if !c.FlushSaves(shutdownFlushWait) {
		log.Error("cache save did not finish before shutdown deadline")
	}
	if err := c.StopDiscord(); err != nil {
		log.Errorf("Discord shutdown: %v", err)
	}
	return nil
}
