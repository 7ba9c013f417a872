package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/spf13/viper"
	"github.com/vantutran2k1/rsql/pkg/logger"
)

type Permission string

const (
	PermissionCompile Permission = "compile"
	PermissionFilters Permission = "filters"
)

var (
	ErrMissingKey    = errors.New("api key not found")
	ErrInvalidHeader = errors.New("invalid Authorization header format")
)

type KeyConfig struct {
	Name        string   `mapstructure:"name"`
	Key         string   `mapstructure:"key"`
	Permissions []string `mapstructure:"permissions"`
}

type apiKey struct {
	name        string
	permissions map[Permission]bool
}

type Authenticator struct {
	keys map[string]apiKey
}

func NewAuthenticator(v *viper.Viper) (*Authenticator, error) {
	var keys []KeyConfig
	if err := v.UnmarshalKey("auth.keys", &keys); err != nil {
		return nil, err
	}
	return FromKeys(keys), nil
}

// FromKeys skips entries with an empty key.
func FromKeys(keys []KeyConfig) *Authenticator {
	a := &Authenticator{keys: make(map[string]apiKey, len(keys))}
	for _, cfg := range keys {
		if cfg.Key == "" {
			continue
		}
		perms := make(map[Permission]bool, len(cfg.Permissions))
		for _, p := range cfg.Permissions {
			perms[Permission(p)] = true
		}
		a.keys[cfg.Key] = apiKey{name: cfg.Name, permissions: perms}
		logger.Info("loaded auth key", "name", cfg.Name, "permissions", cfg.Permissions)
	}
	return a
}

// RequireAuth stores the key name under logger.KeyNameKey on success.
func (a *Authenticator) RequireAuth(required Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := extractKey(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			k, ok := a.keys[key]
			if !ok {
				logger.WarnContext(r.Context(), "rejected unknown api key")
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}

			if !k.permissions[required] {
				http.Error(w, "forbidden: key does not have required '"+string(required)+"' permission", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), logger.KeyNameKey, k.name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyName returns the name of the key that authenticated ctx.
func KeyName(ctx context.Context) string {
	name, _ := ctx.Value(logger.KeyNameKey).(string)
	return name
}

func extractKey(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1], nil
		}
		return "", ErrInvalidHeader
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, nil
	}

	return "", ErrMissingKey
}
