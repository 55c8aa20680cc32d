package config

import "errors"

// Configuration errors
var (
	// ErrNoProviders indicates the manifest defines no completion sources
	ErrNoProviders = errors.New("at least one provider is required")

	// ErrDuplicateProvider indicates two providers share a name
	ErrDuplicateProvider = errors.New("duplicate provider name")

	// ErrUnknownProvider indicates an archetype references an undefined provider
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptyArchetype indicates an archetype has no name or no providers
	ErrEmptyArchetype = errors.New("archetype needs a name and at least one provider")

	// ErrUnknownDefaultArchetype indicates default_archetype is not defined
	ErrUnknownDefaultArchetype = errors.New("default archetype is not defined")

	// ErrInvalidPort indicates the port number is out of valid range
	ErrInvalidPort = errors.New("port must be between 1 and 65535")

	// ErrInvalidCredentials indicates an unknown credential backend
	ErrInvalidCredentials = errors.New("credentials must be one of: env, redis, memory")

	// ErrRedisRequired indicates a feature needs redis.url
	ErrRedisRequired = errors.New("redis.url is required")
)
