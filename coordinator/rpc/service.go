// Package rpc exposes the coordinator's authenticated control endpoints for
// contribution verification and circuit finalization.
package rpc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cryptocole01/p0tion/coordinator/finalization"
	"github.com/cryptocole01/p0tion/coordinator/verification"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "rpc")

const (
	verifyContributionPath = "/p0tion/v1/verify-contribution"
	finalizeCircuitPath    = "/p0tion/v1/finalize-circuit"
)

// Config parameters for setting up the RPC service.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	// JwtSecretPath is the file holding the hex encoded HMAC secret that
	// signs coordinator API tokens. The file is watched for rotation.
	JwtSecretPath string
	Verifier      *verification.Verifier
	Finalizer     *finalization.Finalizer
}

// Service serves the coordinator control API over HTTP JSON.
type Service struct {
	cfg          *Config
	ctx          context.Context
	cancel       context.CancelFunc
	router       *mux.Router
	server       *http.Server
	startFailure error

	secretLock sync.RWMutex
	jwtSecret  []byte
}

// NewService loads the signing secret, wires the routes and returns the
// service ready to start.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	secret, err := ReadJwtSecretFromFile(cfg.JwtSecretPath)
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "could not load JWT secret from %s", cfg.JwtSecretPath)
	}
	s.jwtSecret = secret

	s.router = mux.NewRouter()
	s.router.Use(s.authMiddleware)
	s.router.HandleFunc(verifyContributionPath, s.VerifyContribution).Methods(http.MethodPost)
	s.router.HandleFunc(finalizeCircuitPath, s.FinalizeCircuit).Methods(http.MethodPost)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.corsMiddleware(s.router),
	}
	return s, nil
}

// Start serves the API and begins watching the secret file for rotation.
func (s *Service) Start() {
	go s.watchSecretFile()
	go func() {
		log.WithField("address", s.server.Addr).Info("Starting coordinator RPC server")
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("Could not start RPC server")
			s.startFailure = err
			return
		}
	}()
}

// Status of the RPC service. Returns an error if the server failed to start.
func (s *Service) Status() error {
	if s.startFailure != nil {
		return s.startFailure
	}
	return nil
}

// Stop the service with a graceful shutdown.
func (s *Service) Stop() error {
	if s.server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(s.ctx, 2*time.Second)
		defer shutdownCancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warn("Existing connections terminated")
			} else {
				log.WithError(err).Error("Could not gracefully shut down server")
			}
		}
	}
	s.cancel()
	return nil
}

func (s *Service) corsMiddleware(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
		MaxAge:           600,
		AllowedHeaders:   []string{"*"},
	})
	return c.Handler(h)
}
