// Package server is the HTTP application: routing, page rendering, and the
// wiring between ingestion, detection, and publication.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/julienschmidt/httprouter"
	"github.com/sightd/sightd/server/auth"
	"github.com/sightd/sightd/server/ingest"
	"github.com/sightd/sightd/server/nn"
	"github.com/sightd/sightd/server/pipeline"
	"github.com/sightd/sightd/server/videojob"
	"gorm.io/gorm"
)

// IdentityAPIKeyEnv is the environment variable holding the identity
// provider's API key. Loaded from .env in main via godotenv.
const IdentityAPIKeyEnv = "SIGHTD_IDENTITY_API_KEY"

type Server struct {
	HotReloadWWW bool
	Log          logs.Log
	DB           *gorm.DB

	cfg        *Config
	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	auth       *auth.Server
	ingestor   *ingest.Ingestor
	pipeline   *pipeline.Pipeline
	videoJobs  *videojob.Manager
	sweeper    *ingest.Sweeper
	detector   nn.ObjectDetector
}

func NewServer(configFile string) (*Server, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	logger, err := logs.NewLog()
	if err != nil {
		return nil, err
	}
	detector, err := nn.NewOnnxDetector(logger, cfg.NN.Model, cfg.NN.Sessions)
	if err != nil {
		return nil, err
	}
	provider := auth.NewGoogleIdentityClient(logger, os.Getenv(IdentityAPIKeyEnv), cfg.Identity.BaseURL)
	return newServer(logger, cfg, detector, provider)
}

// newServer does the wiring that is common between production and tests.
// Tests inject a scripted detector and a fake identity provider.
func newServer(logger logs.Log, cfg *Config, detector nn.ObjectDetector, provider auth.IdentityProvider) (*Server, error) {
	db, err := openDB(logger, cfg.DB)
	if err != nil {
		return nil, err
	}
	ingestor, err := ingest.NewIngestor(logger, cfg.Storage.Uploads, cfg.MaxUploadSizeMB*1024*1024)
	if err != nil {
		return nil, err
	}
	filter := nn.NewRelevanceFilter(cfg.NN.Classes, cfg.NN.MinConfidence)
	pipe, err := pipeline.New(logger, detector, filter, cfg.Storage.Runs, cfg.Storage.Public)
	if err != nil {
		return nil, err
	}
	s := &Server{
		Log:       logger,
		DB:        db,
		cfg:       cfg,
		auth:      auth.NewServer(db, logger, provider),
		ingestor:  ingestor,
		pipeline:  pipe,
		videoJobs: videojob.NewManager(logger, db, pipe, cfg.Video.Workers, cfg.Video.FPS),
		detector:  detector,
	}
	s.sweeper = ingest.NewSweeper(logger, []string{cfg.Storage.Uploads, cfg.Storage.Runs}, time.Duration(cfg.Retention.MaxAgeHours)*time.Hour)
	s.sweeper.Start()
	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. Shutting down", sig.String())
			s.Shutdown()
		} else {
			// Shutdown() was called by something other than ourselves
			s.Log.Infof("signalIn closed")
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}
	s.sweeper.Stop()
	s.videoJobs.Close()
	s.detector.Close()
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.Log.Warnf("Shutdown complete, with error: %v", err)
			s.Log.Close()
			return
		}
	}
	s.Log.Infof("Shutdown complete")
	s.Log.Close()
}
