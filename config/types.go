package config

import "time"

type AppConfig struct {
	DBDriver     string        `yaml:"db_driver" env:"SAFESHIELD_DB_DRIVER" env-default:"sqlite"`
	DBURL        string        `yaml:"db_url" env:"SAFESHIELD_DB_URL" env-default:""`
	DBPath       string        `yaml:"db_path" env:"SAFESHIELD_DB_PATH" env-default:"data/safeshield.db"`
	ListenAddr   string        `yaml:"listen_addr" env:"SAFESHIELD_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	SessionTTL   time.Duration `yaml:"session_ttl" env:"SAFESHIELD_SESSION_TTL" env-default:"3h"`
	AppEnv       string        `yaml:"app_env" env:"SAFESHIELD_APP_ENV"`
	CSRFKey      string        `yaml:"csrf_key" env:"SAFESHIELD_CSRF_KEY"`
	Pepper       string        `yaml:"pepper" env:"SAFESHIELD_PEPPER"`
	StoreTimeout time.Duration `yaml:"store_timeout" env:"SAFESHIELD_STORE_TIMEOUT" env-default:"10s"`

	Bootstrap     BootstrapConfig     `yaml:"bootstrap"`
	Incidents     IncidentsConfig     `yaml:"incidents"`
	Evidence      EvidenceConfig      `yaml:"evidence"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// EffectiveSessionTTL guards against zero/negative TTLs from bad config.
func (c *AppConfig) EffectiveSessionTTL() time.Duration {
	if c == nil || c.SessionTTL <= 0 {
		return 3 * time.Hour
	}
	return c.SessionTTL
}

// EffectiveStoreTimeout bounds every persistence and evidence call.
func (c *AppConfig) EffectiveStoreTimeout() time.Duration {
	if c == nil || c.StoreTimeout <= 0 {
		return 10 * time.Second
	}
	return c.StoreTimeout
}

type BootstrapConfig struct {
	AdminUsername string `yaml:"admin_username" env:"SAFESHIELD_ADMIN_USERNAME" env-default:"admin"`
	AdminPassword string `yaml:"admin_password" env:"SAFESHIELD_ADMIN_PASSWORD" env-default:""`
}

type IncidentsConfig struct {
	RegNoFormat string `yaml:"reg_no_format" env:"SAFESHIELD_INCIDENTS_REG_NO_FORMAT" env-default:"INC-{year}-{seq:05}"`
}

type EvidenceConfig struct {
	StorageDir     string `yaml:"storage_dir" env:"SAFESHIELD_EVIDENCE_STORAGE_DIR" env-default:"data/evidence"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"SAFESHIELD_EVIDENCE_MAX_UPLOAD_BYTES" env-default:"26214400"`
}

type NotificationsConfig struct {
	Enabled        bool   `yaml:"enabled" env:"SAFESHIELD_NOTIFICATIONS_ENABLED" env-default:"true"`
	DigestSchedule string `yaml:"digest_schedule" env:"SAFESHIELD_NOTIFICATIONS_DIGEST_SCHEDULE" env-default:"0 8 * * *"`
	StaleStepHours int    `yaml:"stale_step_hours" env:"SAFESHIELD_NOTIFICATIONS_STALE_STEP_HOURS" env-default:"24"`
	RetentionDays  int    `yaml:"retention_days" env:"SAFESHIELD_NOTIFICATIONS_RETENTION_DAYS" env-default:"90"`
}
