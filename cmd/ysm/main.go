package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/stripfi/ysm/internal/adapter"
	"github.com/stripfi/ysm/internal/basepool"
	"github.com/stripfi/ysm/internal/config"
	"github.com/stripfi/ysm/internal/engine"
	"github.com/stripfi/ysm/internal/fixedmath"
	"github.com/stripfi/ysm/internal/logger"
	"github.com/stripfi/ysm/internal/pool"
	"github.com/stripfi/ysm/internal/state"
	"github.com/stripfi/ysm/internal/tranche"
	"github.com/stripfi/ysm/internal/web"
)

// main is the entry point for the yield stripping engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("YSM Core Starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize Database Connection
	if err := state.InitDB(cfg.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Engine Parameters
	engineParams, err := state.LoadActiveEngineParameters(cfg.ConfigName)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active engine parameters, using defaults and saving.")
		defaults := cfg.Engine
		if _, err := state.SaveEngineParameters(defaults, cfg.ConfigName, 1, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default engine parameters.")
		}
		engineParams = &defaults
	}
	log.Info().Msg("Engine parameters loaded successfully.")

	eng := engine.New(*engineParams, engine.WithPersistence())

	// --- 2. Series and Pool Setup (with Safety Switch) ---
	ysmMode := os.Getenv("YSM_MODE")
	if ysmMode == "sim" {
		log.Info().Msg("Initializing YSM in SIMULATION mode with an in-memory yield source.")
		if err := setupSimulation(eng); err != nil {
			log.Fatal().Err(err).Msg("Failed to set up simulation series and pool")
		}
	} else {
		log.Fatal().Msg("YSM_MODE is not set to 'sim'. Live yield source integrations are configured per deployment; halting to prevent accidental execution.")
	}

	// --- 3. Start Web Server ---
	webServer := web.NewWebServer(cfg.WebPort, eng)
	go func() {
		log.Info().Str("port", cfg.WebPort).Str("url", "http://localhost:"+cfg.WebPort).Msg("Starting YSM API server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Settlement Daemon ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Dur("interval", engineParams.SnapshotInterval).Msg("Starting settlement daemon")
	eng.RunLoop(ctx)

	log.Info().Msg("YSM Core shut down.")
}

// setupSimulation wires a demo series and rate market against in-memory
// venues so the full API surface is exercisable without external systems.
func setupSimulation(eng *engine.Engine) error {
	mock, err := adapter.NewMock(fixedmath.Wad)
	if err != nil {
		return err
	}

	maturity := time.Now().Add(90 * 24 * time.Hour)
	if _, err := eng.CreateSeries(tranche.Config{
		Underlying:         "WETH",
		Target:             "stETH",
		UnderlyingDecimals: 18,
		Maturity:           maturity,
		TiltBps:            0,
		IssuanceFeeBps:     100,
		Adapter:            mock,
	}); err != nil {
		return err
	}

	sim, err := basepool.NewSim(3, 10)
	if err != nil {
		return err
	}
	if _, err := eng.AttachPool(pool.Config{
		Base:                 sim,
		ScalarRoot:           sdkmath.NewInt(76).Mul(fixedmath.Wad),
		LnFeeRateRoot:        sdkmath.NewInt(995_000_000_000_000),
		ProtocolFeeBps:       8000,
		Maturity:             maturity,
		InitialLnImpliedRate: sdkmath.NewInt(50_000_000_000_000_000),
	}); err != nil {
		return err
	}
	return nil
}
