package rpc

import (
	"context"
	"encoding/hex"
	"net/http"
	"os"
	"strings"

	"github.com/cryptocole01/p0tion/network/httputil"
	"github.com/fsnotify/fsnotify"
	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

// jwtSecretLength is the required byte length of the HMAC signing secret.
const jwtSecretLength = 32

// Token roles. The role claim decides which endpoints a bearer may call.
const (
	RoleParticipant = "participant"
	RoleCoordinator = "coordinator"
)

// authClaims are the claims carried by coordinator API tokens. The registered
// subject is the participant identity.
type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type claimsContextKey struct{}

// ReadJwtSecretFromFile reads a hex encoded 256 bit HMAC secret, with or
// without a 0x prefix, from the given file.
func ReadJwtSecretFromFile(path string) ([]byte, error) {
	enc, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	strData := strings.TrimPrefix(strings.TrimSpace(string(enc)), "0x")
	secret, err := hex.DecodeString(strData)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode JWT secret")
	}
	if len(secret) != jwtSecretLength {
		return nil, errors.Errorf("JWT secret is %d bytes, expected %d", len(secret), jwtSecretLength)
	}
	return secret, nil
}

// secret returns the current signing secret. The file watcher may swap it at
// any time.
func (s *Service) secret() []byte {
	s.secretLock.RLock()
	defer s.secretLock.RUnlock()
	return s.jwtSecret
}

func (s *Service) setSecret(secret []byte) {
	s.secretLock.Lock()
	s.jwtSecret = secret
	s.secretLock.Unlock()
}

// watchSecretFile reloads the signing secret whenever its file changes, so
// tokens can be rotated without restarting the coordinator.
func (s *Service) watchSecretFile() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Error("Could not initialize file watcher")
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.WithError(err).Error("Could not close file watcher")
		}
	}()
	if err := watcher.Add(s.cfg.JwtSecretPath); err != nil {
		log.WithError(err).Errorf("Could not add file %s to file watcher", s.cfg.JwtSecretPath)
		return
	}
	for {
		select {
		case event := <-watcher.Events:
			if event.Op.String() == "REMOVE" {
				log.Error("JWT secret file was removed, keeping the previous secret")
				continue
			}
			secret, err := ReadJwtSecretFromFile(s.cfg.JwtSecretPath)
			if err != nil {
				log.WithError(err).Errorf("Could not reload JWT secret from %s", s.cfg.JwtSecretPath)
				continue
			}
			s.setSecret(secret)
			log.Info("Reloaded JWT secret after file change")
		case err := <-watcher.Errors:
			log.WithError(err).Errorf("Could not watch for file changes for: %s", s.cfg.JwtSecretPath)
		case <-s.ctx.Done():
			return
		}
	}
}

// authMiddleware enforces bearer token authentication on every route. The
// validated claims ride on the request context.
func (s *Service) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqToken := r.Header.Get("Authorization")
		if reqToken == "" {
			httputil.HandleError(w, "unauthorized: no Authorization header passed", http.StatusUnauthorized)
			return
		}
		tokenParts := strings.Split(reqToken, "Bearer ")
		if len(tokenParts) != 2 {
			httputil.HandleError(w, "invalid token format", http.StatusBadRequest)
			return
		}
		claims := &authClaims{}
		if _, err := jwt.ParseWithClaims(tokenParts[1], claims, s.validateJWT); err != nil {
			httputil.HandleError(w, "forbidden: could not parse JWT token: "+err.Error(), http.StatusForbidden)
			return
		}
		if claims.Subject == "" {
			httputil.HandleError(w, "unauthorized: token carries no subject", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsContextKey{}, claims)))
	})
}

// validateJWT accepts only HMAC signed tokens.
func (s *Service) validateJWT(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected JWT signing method: %v", token.Header["alg"])
	}
	return s.secret(), nil
}

// claimsFrom returns the validated claims of the request.
func claimsFrom(r *http.Request) *authClaims {
	claims, ok := r.Context().Value(claimsContextKey{}).(*authClaims)
	if !ok {
		return &authClaims{}
	}
	return claims
}
