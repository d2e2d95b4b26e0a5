package classify

// Policy is the declarative classification table.
type Policy struct {
	// Preserve lists exact keys kept across a migration (auth token, user
	// object, preferences, onboarding flag, profile identifiers).
	Preserve []string `yaml:"preserve" json:"preserve"`

	// Reserved lists keys managed outside feature code. They are never
	// purged and never snapshot. The version marker keys and the migration
	// lock are always reserved whether listed or not.
	Reserved []string `yaml:"reserved,omitempty" json:"reserved,omitempty"`

	// Purge describes cached or temporary domain data.
	Purge PurgeRules `yaml:"purge" json:"purge"`

	// SessionKeep lists case-insensitive substrings of session-scoped keys
	// that survive a migration. Everything else in session scope is
	// dropped.
	SessionKeep []string `yaml:"session_keep,omitempty" json:"session_keep,omitempty"`

	// Caches selects named content caches holding dynamic responses.
	Caches CacheRules `yaml:"caches,omitempty" json:"caches,omitempty"`
}

// PurgeRules match keys of cached API responses and temporary data.
type PurgeRules struct {
	Exact    []string `yaml:"exact,omitempty" json:"exact,omitempty"`
	Contains []string `yaml:"contains,omitempty" json:"contains,omitempty"`
	Prefixes []string `yaml:"prefixes,omitempty" json:"prefixes,omitempty"`
}

// CacheRules match named content cache identifiers, case-insensitively.
// Caches matching neither list are treated as static assets.
type CacheRules struct {
	Contains []string `yaml:"contains,omitempty" json:"contains,omitempty"`
	Prefixes []string `yaml:"prefixes,omitempty" json:"prefixes,omitempty"`
}

// DefaultPolicy returns the built-in table for the fitness client.
func DefaultPolicy() Policy {
	return Policy{
		Preserve: []string{
			"token",
			"auth_token",
			"refresh_token",
			"user",
			"user_id",
			"profile_id",
			"language",
			"theme",
			"onboarding_completed",
		},
		Purge: PurgeRules{
			Exact: []string{
				"cached_recipes",
				"cached_articles",
				"cached_workouts",
				"cached_videos",
				"daily_summary",
				"challenges",
				"appointments",
				"notifications_read",
			},
			Contains: []string{
				"cached_",
				"_cache",
				"recipe_",
				"workout_",
				"article_",
				"video_",
				"_daily_",
				"_weekly_",
				"summary_",
			},
			Prefixes: []string{
				"temp_",
				"tmp_",
				"cache:",
			},
		},
		SessionKeep: []string{"auth", "token", "session", "user"},
		Caches: CacheRules{
			Contains: []string{"api", "dynamic", "runtime"},
			Prefixes: []string{"workbox-"},
		},
	}
}

// withDefaults fills the optional sections a policy file may omit.
func withDefaults(p Policy) Policy {
	def := DefaultPolicy()
	if len(p.SessionKeep) == 0 {
		p.SessionKeep = def.SessionKeep
	}
	if len(p.Caches.Contains) == 0 && len(p.Caches.Prefixes) == 0 {
		p.Caches = def.Caches
	}
	return p
}
