package redisstorage

// Config stores the redis connection configs
type Config struct {
	// If this is true, will use ClusterClient
	IsClusterMode bool `mapstructure:"IsClusterMode"`

	// Host:Port address
	Addrs []string `mapstructure:"Addrs"`

	// Username for ACL
	Username string `mapstructure:"Username"`

	// Password for ACL
	Password string `mapstructure:"Password"`

	// DB index
	DB int `mapstructure:"DB"`

	// KeyPrefix is prepended to every key. Keep a hash tag in it, e.g. "{xcall}:",
	// so that a batch lands in a single cluster slot.
	KeyPrefix string `mapstructure:"KeyPrefix"`
}
