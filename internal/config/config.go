// Package config implements the recognised configuration keys of
// spec.md §6, following the teacher's cmd/config.go convention: one
// struct-of-structs read with encoding/json, ConfigDuration for
// human-readable durations, and a ConfigSecret type that can load its
// value from a file instead of embedding it directly.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"
)

// Config is the root configuration object for the pkd binary. No
// defaults are applied here; SetDefaults below fills in the handful of
// values spec.md documents as having defaults.
type Config struct {
	DBDialect string `json:"db-dialect"`
	DBHost    string `json:"db-host"`
	DBPort    int    `json:"db-port"`
	DBName    string `json:"db-name"`
	DBUser    string `json:"db-user"`
	DBPass    ConfigSecret `json:"db-password"`

	DirectoryHost         string       `json:"directory-host"`
	DirectoryPort         int          `json:"directory-port"`
	DirectoryBindDN       string       `json:"directory-bind-dn"`
	DirectoryBindPassword ConfigSecret `json:"directory-bind-password"`
	DirectoryBaseDN       string       `json:"directory-base-dn"`

	ServerPort    int    `json:"server-port"`
	DebugAddr     string `json:"debug-addr"`
	WorkerThreads int    `json:"worker-threads"`
	MaxBodyMB     int    `json:"max-body-mb"`

	ShutdownTimeoutSeconds ConfigDuration `json:"shutdown-timeout-seconds"`

	SchedulerReconcileHour      int  `json:"scheduler-reconcile-hour"`
	SchedulerEnabled            bool `json:"scheduler-enabled"`
	SchedulerRevalidateOnSync   bool `json:"scheduler-revalidate-on-sync"`

	PoolDBMin                 int            `json:"pool-db-min"`
	PoolDBMax                 int            `json:"pool-db-max"`
	PoolDirectoryMin          int            `json:"pool-directory-min"`
	PoolDirectoryMax          int            `json:"pool-directory-max"`
	PoolAcquireTimeoutSeconds ConfigDuration `json:"pool-acquire-timeout-seconds"`
}

// DialectA and DialectB name the two database dialects spec.md §3/§9
// abstracts over. They correspond to the teacher's mysql and postgres
// gorp dialects respectively.
const (
	DialectA = "A" // lowercase identifiers, native boolean, LIMIT/OFFSET, JSON column type
	DialectB = "B" // uppercase identifiers, numeric boolean, OFFSET...FETCH, textual empty-as-null
)

// SetDefaults fills in the defaults spec.md documents: pool sizing
// (min=5,max=20 for dialect A; min=2,max=10 for dialect B),
// acquire-timeout (5s), and worker threads (a value in [4,16]).
func (c *Config) SetDefaults() {
	if c.PoolDBMin == 0 && c.PoolDBMax == 0 {
		if c.DBDialect == DialectB {
			c.PoolDBMin, c.PoolDBMax = 2, 10
		} else {
			c.PoolDBMin, c.PoolDBMax = 5, 20
		}
	}
	if c.PoolDirectoryMin == 0 && c.PoolDirectoryMax == 0 {
		c.PoolDirectoryMin, c.PoolDirectoryMax = 2, 10
	}
	if c.PoolAcquireTimeoutSeconds.Duration == 0 {
		c.PoolAcquireTimeoutSeconds = ConfigDuration{5 * time.Second}
	}
	if c.WorkerThreads == 0 {
		c.WorkerThreads = 8
	}
	if c.MaxBodyMB == 0 {
		c.MaxBodyMB = 64
	}
	if c.ShutdownTimeoutSeconds.Duration == 0 {
		c.ShutdownTimeoutSeconds = ConfigDuration{10 * time.Second}
	}
	if c.DebugAddr == "" {
		c.DebugAddr = "localhost:8001"
	}
}

// Load reads and unmarshals a JSON configuration file, following the
// teacher's cmd.ReadConfigFile convention.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.SetDefaults()
	return &c, nil
}

// ConfigDuration is an alias for time.Duration that (de)serializes to
// a human string ("5s", "24h") instead of an integer count of
// nanoseconds. Grounded verbatim on the teacher's cmd/config.go type of
// the same name.
type ConfigDuration struct {
	time.Duration
}

var errDurationMustBeString = errors.New("cannot JSON unmarshal something other than a string into a ConfigDuration")

func (d *ConfigDuration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return errDurationMustBeString
		}
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

func (d ConfigDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// ConfigSecret represents a string-valued config field that may be
// given directly, or as "secret:<path>" to load the value from a file
// with trailing newlines trimmed. Grounded verbatim on the teacher's
// cmd/config.go ConfigSecret.
type ConfigSecret string

var errSecretMustBeString = errors.New("cannot JSON unmarshal something other than a string into a ConfigSecret")

const secretPrefix = "secret:"

func (d *ConfigSecret) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return errSecretMustBeString
		}
		return err
	}
	if !strings.HasPrefix(s, secretPrefix) {
		*d = ConfigSecret(s)
		return nil
	}
	contents, err := os.ReadFile(s[len(secretPrefix):])
	if err != nil {
		return err
	}
	*d = ConfigSecret(strings.TrimRight(string(contents), "\n"))
	return nil
}

func (d ConfigSecret) String() string {
	return string(d)
}
