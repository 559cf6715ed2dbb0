// Package distioconfig provides type-safe environment variable loading for
// the controller and proxy binaries, built on caarlos0/env for struct
// parsing and joho/godotenv for optional .env autoloading.
//
//	type ProxyConfig struct {
//		Port                int           `env:"DISTIO_PROXY_PORT" envDefault:"7531"`
//		MaxConcurrentSlaves int           `env:"DISTIO_MAX_CONCURRENT_SLAVES" envDefault:"0"`
//		KillSlavesAfter     time.Duration `env:"DISTIO_KILL_SLAVES_AFTER" envDefault:"0"`
//	}
//
//	var cfg ProxyConfig
//	distioconfig.MustLoad(&cfg)
package distioconfig
