package distioconfig

import "time"

// ControllerConfig holds controller defaults loadable from the environment.
// controller.New does not read it; a caller passes its values as options.
type ControllerConfig struct {
	RequestTimeout time.Duration `env:"DISTIO_REQUEST_TIMEOUT" envDefault:"0"`
	CloseTimeout   time.Duration `env:"DISTIO_CLOSE_TIMEOUT" envDefault:"10s"`
	CatchAll       bool          `env:"DISTIO_CATCH_ALL" envDefault:"false"`
	LogJSON        bool          `env:"DISTIO_LOG_JSON" envDefault:"false"`
	LogLevel       string        `env:"DISTIO_LOG_LEVEL" envDefault:"info"`
}

// ProxyConfig holds the startup configuration for the proxy server binary.
type ProxyConfig struct {
	Port                int           `env:"DISTIO_PROXY_PORT" envDefault:"7531"`
	Root                string        `env:"DISTIO_PROXY_ROOT" envDefault:"."`
	MaxConcurrentSlaves int           `env:"DISTIO_MAX_CONCURRENT_SLAVES" envDefault:"0"`
	KillSlavesAfter     time.Duration `env:"DISTIO_KILL_SLAVES_AFTER" envDefault:"0"`
	AuthorizedIPs       []string      `env:"DISTIO_AUTHORIZED_IPS" envSeparator:","`
	BasicAuthUser       string        `env:"DISTIO_BASIC_AUTH_USER"`
	BasicAuthPass       string        `env:"DISTIO_BASIC_AUTH_PASS"`
	Passphrase          string        `env:"DISTIO_PASSPHRASE"`
	LogJSON             bool          `env:"DISTIO_LOG_JSON" envDefault:"true"`
	LogLevel            string        `env:"DISTIO_LOG_LEVEL" envDefault:"info"`
}
