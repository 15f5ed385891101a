package metrics

// Config of the prometheus endpoint
type Config struct {
	// Enabled starts the http server, collectors are no-ops otherwise
	Enabled bool   `mapstructure:"Enabled"`
	Port    string `mapstructure:"Port"`
	// Endpoint is the path served, /metrics when empty
	Endpoint string `mapstructure:"Endpoint"`
	// Env labels every series, e.g. local or testnet
	Env string `mapstructure:"Env"`
}
