package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/config"
	"github.com/dinoarena/server/internal/core/ecs"
	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/core/timer"
	"github.com/dinoarena/server/internal/data"
	"github.com/dinoarena/server/internal/handler"
	"github.com/dinoarena/server/internal/health"
	"github.com/dinoarena/server/internal/journal"
	gonet "github.com/dinoarena/server/internal/net"
	"github.com/dinoarena/server/internal/net/packet"
	"github.com/dinoarena/server/internal/observer"
	"github.com/dinoarena/server/internal/persist"
	"github.com/dinoarena/server/internal/scripting"
	"github.com/dinoarena/server/internal/system"
	"github.com/dinoarena/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/width"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             Dino Arena  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        dinosaur vs operator · host        \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mServer:\033[0m %s\n\n", serverName)
}

// displayWidth counts wide runes as two columns.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func printSection(title string) {
	lineLen := 46 - displayWidth(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - displayWidth(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 3. Load unit table, arena and balance scripts
	printSection("Data")
	units, err := data.LoadUnitTable(cfg.Data.UnitsFile)
	if err != nil {
		return fmt.Errorf("load units: %w", err)
	}
	printStat("Unit templates", units.Count())
	arena, err := data.LoadArena(cfg.Data.ArenaFile)
	if err != nil {
		return fmt.Errorf("load arena: %w", err)
	}
	if err := arena.Check(units); err != nil {
		return fmt.Errorf("arena: %w", err)
	}
	printStat("Structures", len(arena.Structures))
	printStat("Camps", len(arena.Camps))
	engine, err := scripting.NewEngine(cfg.Data.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	printOK("Balance scripts loaded")
	fmt.Println()

	// 4. World, prefabs and death rules
	clock := tick.NewClock(cfg.Network.TickRate)
	w := world.New(authority.Host, clock, cfg.Gameplay.GridCellSize, log)
	prefabs, err := world.NewPrefabs(units, cfg.Network.TickRate, authority.Host)
	if err != nil {
		return err
	}
	res := health.NewResolver(w, exclusions(units, cfg.Gameplay), log)
	setDeathPolicies(res, prefabs)

	dronePolicy, err := timer.ParsePolicy(cfg.Gameplay.DroneCooldownPolicy)
	if err != nil {
		return fmt.Errorf("drone_cooldown_policy: %w", err)
	}
	campPolicy, err := timer.ParsePolicy(cfg.Gameplay.CampRespawnPolicy)
	if err != nil {
		return fmt.Errorf("camp_respawn_policy: %w", err)
	}

	// 5. Command channel and gameplay systems
	ch := command.NewChannel(authority.Host, w.Auth, w, clock, log)
	bounds := cfg.Gameplay.ArenaHalfSize

	match, err := system.NewMatchSystem(w, prefabs, res, ch, system.MatchOptions{
		Arena:        arena,
		MaxOperators: cfg.Session.MaxOperators,
		MaxDinosaurs: cfg.Session.MaxDinosaurs,
		DroneSlots:   cfg.Gameplay.DroneSlots,
	}, log)
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}
	dino, err := system.NewDinoSystem(w, res, ch, bounds, log)
	if err != nil {
		return fmt.Errorf("dino: %w", err)
	}
	operator, err := system.NewOperatorSystem(w, prefabs, ch, system.OperatorOptions{
		Launch:        arena.DroneLaunch,
		SpawnCooldown: cfg.Gameplay.DroneSpawnCooldown,
		Policy:        dronePolicy,
		Bounds:        bounds,
	}, log)
	if err != nil {
		return fmt.Errorf("operator: %w", err)
	}
	camps := system.NewCampSystem(w, res, prefabs, campPolicy, cfg.Gameplay.CampRespawn, log)

	// 6. Match store
	printSection("Storage")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := persist.Open(ctx, cfg.Database, log)
	switch {
	case errors.Is(err, persist.ErrDisabled):
		store = nil
		printOK("Match store disabled")
	case err != nil:
		return fmt.Errorf("database: %w", err)
	default:
		defer store.Close()
		printOK(fmt.Sprintf("Match store ready (%s)", cfg.Database.Driver))
	}
	persistence := system.NewPersistenceSystem(match, store, cfg.Server.Name,
		int(clock.TicksFor(cfg.Gameplay.MatchSaveInterval)), log)

	// 7. Replication endpoints
	sessions := gonet.NewSessionStore()
	hub := handler.NewHub(w, sessions, log)
	ch.SetDeliverer(hub, hub)
	ch.AddRecorder(hub)
	repl := system.NewReplicationSystem(w, system.NewHostView(w, log), hub)

	var journalSys *system.JournalSystem
	if cfg.Journal.Enabled {
		j, err := journal.Create(cfg.Journal.Dir, match.ID(), log)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		ch.AddRecorder(j)
		repl.AddRecorder(j)
		journalSys = system.NewJournalSystem(j, match, log)
		defer journalSys.Close()
		printOK(fmt.Sprintf("Journal %s", j.Path()))
	}

	var obs *observer.Server
	if cfg.Observer.Enabled {
		obsHub := observer.NewHub(log)
		repl.AddEndpoint(obsHub)
		obs = observer.NewServer(obsHub, store, observer.Options{
			MatchID:    match.ID(),
			SendBuffer: cfg.Observer.SendBuffer,
		}, log)
		if err := obs.Start(cfg.Observer.BindAddress); err != nil {
			return fmt.Errorf("observer: %w", err)
		}
		printOK(fmt.Sprintf("Observer on %s", obs.Addr()))
	}
	fmt.Println()

	// 8. Packet handlers and network server
	deps := &handler.Deps{
		Config:   cfg,
		Log:      log,
		World:    w,
		Channel:  ch,
		Match:    match,
		Sessions: sessions,
		Hub:      hub,
	}
	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, deps)

	netServer, err := gonet.NewServer(cfg.Network.BindAddress, gonet.SessionOptions{
		InSize:           cfg.Network.InQueueSize,
		OutSize:          cfg.Network.OutQueueSize,
		PacketsPerSecond: float64(cfg.Network.PacketsPerSecond),
		Burst:            cfg.Network.PacketBurst,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()

	// 9. Create systems and register with runner
	runner := coresys.NewRunner(clock)
	runner.Register(system.NewInputSystem(netServer, pktReg, sessions, ch, cfg.Network.MaxPacketsPerTick,
		func(s *gonet.Session) { handler.HandleDisconnect(s, deps) }, log))
	runner.Register(system.NewEventSystem(w))
	runner.Register(dino)
	runner.Register(operator)
	runner.Register(system.NewEnemySystem(w))
	runner.Register(system.NewTurretSystem(w, prefabs, log))
	runner.Register(system.NewProjectileSystem(w, res, prefabs, bounds, log))
	runner.Register(system.NewLevelingSystem(w, res, engine, log))
	runner.Register(system.NewCorpseSystem(res))
	runner.Register(camps)
	runner.Register(match)
	runner.Register(repl)
	runner.Register(persistence)
	if journalSys != nil {
		runner.Register(journalSys)
	}
	runner.Register(system.NewCleanupSystem(w))

	if err := match.Start(); err != nil {
		return fmt.Errorf("start match: %w", err)
	}
	if err := camps.Populate(arena.Camps); err != nil {
		return fmt.Errorf("populate camps: %w", err)
	}

	// 10. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("Ready")
	printReady(fmt.Sprintf("Listening on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("Game loop running (tick: %s)", cfg.Network.TickRate))
	printReady(fmt.Sprintf("Match %s", match.ID()))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			persistence.Flush()
			netServer.Shutdown()
			if obs != nil {
				sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := obs.Shutdown(sctx); err != nil {
					log.Warn("observer shutdown", zap.Error(err))
				}
				scancel()
			}
			log.Info("server stopped")
			return nil
		}
	}
}

// exclusions builds the damage rules from config plus the immunities the
// unit table declares.
func exclusions(units *data.UnitTable, cfg config.GameplayConfig) *health.Exclusions {
	excl := health.NewExclusions(cfg.SelfDamage, cfg.SameKindDamage)
	for _, kind := range units.Kinds() {
		for _, victim := range units.Get(kind).Immune {
			excl.Exclude(ecs.Kind(kind), ecs.Kind(victim))
		}
	}
	return excl
}

// setDeathPolicies: enemies leave a corpse for their death delay, avatars
// and structures stay until the match decides, everything else despawns.
func setDeathPolicies(res *health.Resolver, prefabs *world.Prefabs) {
	for _, kind := range []ecs.Kind{world.KindAnkylo, world.KindPteranodon} {
		if t := prefabs.Template(kind); t != nil {
			res.SetKindPolicy(kind, health.After(prefabs.Ticks(t.DeathDelay)))
		}
	}
	for _, kind := range []ecs.Kind{world.KindDinosaur, world.KindTurret, world.KindHQ} {
		res.SetKindPolicy(kind, health.Hold())
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
