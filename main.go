package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"cartelera/api"
	"cartelera/config"
	"cartelera/handlers"
	"cartelera/models"
	"cartelera/services/browse"
	"cartelera/services/catalog"
	"cartelera/services/identity"
	"cartelera/services/profiles"
	"cartelera/services/qr"
	"cartelera/utils"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🎬 Cartelera starting...")

	configPath := os.Getenv("CARTELERA_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Generate and persist the auth secret on first start
	if settings.Auth.Enabled && settings.Auth.Secret == "" {
		secret, err := utils.GenerateSecret()
		if err != nil {
			log.Fatalf("failed to generate auth secret: %v", err)
		}
		settings.Auth.Secret = secret
		if err := cfgManager.Save(settings); err != nil {
			log.Fatalf("failed to persist auth secret: %v", err)
		}
		fmt.Println("🔑 Generated session signing secret.")
	}

	catalogClient := catalog.NewClient(settings.Catalog.TMDBAPIKey, settings.Catalog.Language, nil)
	qrClient := qr.NewClient(settings.QR.Endpoint, settings.QR.Size, nil)

	profilesService, err := profiles.NewService(settings.Cache.Directory)
	if err != nil {
		log.Fatalf("failed to initialise profiles: %v", err)
	}
	defer profilesService.Close()

	var identityService *identity.Service
	if settings.Auth.Enabled {
		if err := os.MkdirAll(settings.Auth.AvatarDir, 0o755); err != nil {
			log.Fatalf("failed to create avatar dir: %v", err)
		}
		identityService, err = identity.NewService(settings.Auth, profilesService)
		if err != nil {
			log.Fatalf("failed to initialise identity: %v", err)
		}
		identityService.Subscribe(func(s models.Session) {
			if s.SignedIn() {
				log.Printf("[identity] session change: %s role=%s", s.UserID, s.Role)
			} else {
				log.Printf("[identity] session change: signed out")
			}
		})
	} else {
		fmt.Println("⚠️  Auth disabled: all requests are treated as guest.")
	}

	registry := browse.NewRegistry(
		catalogClient,
		qrAdapter{qrClient},
		settings.Browse.DetailURL,
		time.Duration(settings.Browse.SessionTTLMinutes)*time.Minute,
	)
	registry.Start(context.Background())
	defer registry.Stop()

	browseHandler := handlers.NewBrowseHandler(registry)
	catalogHandler := handlers.NewCatalogHandler(catalogClient, settings.Browse.EmbedBaseURL)
	authHandler := handlers.NewAuthHandler(nil, profilesService)
	if identityService != nil {
		authHandler = handlers.NewAuthHandler(identityService, profilesService)
	}
	imageHandler := handlers.NewImageHandler(afero.NewOsFs(), settings.Cache.Directory)

	r := utils.NewRouter()

	var trace func(http.Handler) http.Handler
	if identityService != nil {
		trace = identityService.Trace
		authRoutes, avatarRoutes := identityService.Handlers()
		r.PathPrefix("/auth").Handler(authRoutes)
		r.PathPrefix("/avatar").Handler(avatarRoutes)
	}

	api.Register(r, browseHandler, catalogHandler, authHandler, imageHandler, trace)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}

// qrAdapter narrows the qr client to the controller's QRPayload interface.
type qrAdapter struct {
	client *qr.Client
}

func (a qrAdapter) Generate(ctx context.Context, target string) (browse.QRPayload, error) {
	payload, err := a.client.Generate(ctx, target)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
