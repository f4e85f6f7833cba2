package config

import "time"

// RegistryConfig controls the per-client session store registry.
type RegistryConfig struct {
	// IdleTTL is how long a client's store may go unused before it is closed.
	IdleTTL time.Duration `env:"IDLE_TTL" envDefault:"30m"`
	// SweepInterval is how often idle stores are swept.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	// NotificationCapacity bounds each client's flash notification queue.
	NotificationCapacity int `env:"NOTIFICATION_CAPACITY" envDefault:"20"`
	// ProfileCacheTTL expires the persisted profile slot. 0 keeps it until sign-out.
	ProfileCacheTTL time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"0s"`
}

// Sanitize applies guardrails to registry configuration values.
func (r *RegistryConfig) Sanitize() {
	if r.IdleTTL <= 0 {
		r.IdleTTL = 30 * time.Minute
	}
	if r.SweepInterval <= 0 || r.SweepInterval > r.IdleTTL {
		r.SweepInterval = min(time.Minute, r.IdleTTL)
	}
	if r.NotificationCapacity <= 0 {
		r.NotificationCapacity = 20
	}
	if r.ProfileCacheTTL < 0 {
		r.ProfileCacheTTL = 0
	}
}
