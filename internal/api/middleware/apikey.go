package middleware

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// APIKey is a long-lived credential for unattended callers (automation
// scripts pushing schedule changes, monitoring pollers) that should not
// have to carry a short-lived JWT.
type APIKey struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	KeyHash     string    `json:"key_hash"`
	Prefix      string    `json:"prefix"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
	Active      bool      `json:"active"`
}

// APIKeyStore holds issued API keys in memory, indexed by key hash.
type APIKeyStore struct {
	keys map[string]*APIKey
	mu   sync.RWMutex
}

// NewAPIKeyStore creates an empty APIKeyStore.
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{
		keys: make(map[string]*APIKey),
	}
}

// GenerateAPIKey mints a new key and returns its plaintext (shown once) and record.
func (s *APIKeyStore) GenerateAPIKey(name string, permissions []string, expiresIn time.Duration) (string, *APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", nil, err
	}
	key := "nds_" + hex.EncodeToString(keyBytes)

	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])

	apiKey := &APIKey{
		ID:          generateID(),
		Name:        name,
		KeyHash:     keyHash,
		Prefix:      key[:12],
		Permissions: permissions,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(expiresIn),
		Active:      true,
	}

	s.keys[keyHash] = apiKey

	return key, apiKey, nil
}

// ValidateAPIKey checks a presented key against the store.
func (s *APIKeyStore) ValidateAPIKey(key string) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])

	apiKey, exists := s.keys[keyHash]
	if !exists {
		return nil, fmt.Errorf("invalid API key")
	}

	if !apiKey.Active {
		return nil, fmt.Errorf("API key is inactive")
	}

	if time.Now().After(apiKey.ExpiresAt) {
		return nil, fmt.Errorf("API key has expired")
	}

	apiKey.LastUsedAt = time.Now()

	return apiKey, nil
}

// RevokeAPIKey marks a key inactive. The record is kept for audit purposes.
func (s *APIKeyStore) RevokeAPIKey(keyHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	apiKey, exists := s.keys[keyHash]
	if !exists {
		return fmt.Errorf("API key not found")
	}

	apiKey.Active = false
	return nil
}

// ListAPIKeys returns all known keys, active or not.
func (s *APIKeyStore) ListAPIKeys() []*APIKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]*APIKey, 0, len(s.keys))
	for _, key := range s.keys {
		keys = append(keys, key)
	}
	return keys
}

// APIKeyMiddleware authenticates a request using X-API-Key (or an
// api_key query parameter) against the given store.
func APIKeyMiddleware(store *APIKeyStore, requiredPermissions []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing API key",
			})
		}

		key, err := store.ValidateAPIKey(apiKey)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		if !hasAny(key.Permissions, requiredPermissions) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Insufficient permissions",
			})
		}

		c.Locals("api_key_id", key.ID)
		c.Locals("api_key_name", key.Name)
		c.Locals("api_key_permissions", key.Permissions)

		return c.Next()
	}
}

// CombinedAuthMiddleware accepts either an API key carrying one of
// requiredPermissions, or a JWT bearer token carrying one of
// jwtConfig.AllowedRoles. Used for operator routes that unattended
// automation (an API key) and interactive operators (a JWT) both need
// to reach, with each credential kind authorized on its own terms.
func CombinedAuthMiddleware(jwtConfig JWTConfig, apiKeyStore *APIKeyStore, requiredPermissions []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, skipPath := range jwtConfig.SkipPaths {
			if strings.HasPrefix(path, skipPath) {
				return c.Next()
			}
		}

		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		if apiKey != "" {
			key, err := apiKeyStore.ValidateAPIKey(apiKey)
			if err == nil && hasAny(key.Permissions, requiredPermissions) {
				c.Locals("auth_type", "api_key")
				c.Locals("api_key_id", key.ID)
				c.Locals("api_key_name", key.Name)
				c.Locals("api_key_permissions", key.Permissions)
				return c.Next()
			}
		}

		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString != authHeader {
				claims, err := ValidateToken(tokenString, jwtConfig)
				if err == nil && hasAny(claims.Roles, jwtConfig.AllowedRoles) {
					c.Locals("auth_type", "jwt")
					c.Locals("user_id", claims.UserID)
					c.Locals("username", claims.Username)
					c.Locals("roles", claims.Roles)
					return c.Next()
				}
			}
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}
}

// hasAny reports whether have and want share an element, or either side
// carries the "*" wildcard. An empty want always passes.
func hasAny(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, h := range have {
		if h == "*" {
			return true
		}
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
