package pgstorage

import (
	"fmt"
	"net/url"
)

// Config addresses the postgres database holding the chain state
type Config struct {
	Name     string `mapstructure:"Name"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`

	// MaxConns caps the pool, zero keeps the pgx default
	MaxConns int `mapstructure:"MaxConns"`
}

// URL returns the connection string of the database
func (c Config) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.Name,
	}
	if c.MaxConns > 0 {
		u.RawQuery = fmt.Sprintf("pool_max_conns=%d", c.MaxConns)
	}
	return u.String()
}
