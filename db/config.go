package db

import (
	"github.com/0xPolygonHermez/zkevm-xcall/db/pgstorage"
	"github.com/0xPolygonHermez/zkevm-xcall/redisstorage"
)

// Config selects and configures the storage backend
type Config struct {
	// Database type: memory, goleveldb, postgres or redis
	Database string `mapstructure:"Database"`

	// Database name. For goleveldb it is the name of the database directory
	Name string `mapstructure:"Name"`

	// Dir is the parent directory of a goleveldb database
	Dir string `mapstructure:"Dir"`

	// User name
	User string `mapstructure:"User"`

	// Password of the user
	Password string `mapstructure:"Password"`

	// Host address
	Host string `mapstructure:"Host"`

	// Port Number
	Port string `mapstructure:"Port"`

	// MaxConns is the maximum number of connections in the pool.
	MaxConns int `mapstructure:"MaxConns"`

	// Redis holds the redis connection when Database is redis
	Redis redisstorage.Config `mapstructure:"Redis"`
}

func (c Config) postgres() pgstorage.Config {
	return pgstorage.Config{
		Name:     c.Name,
		User:     c.User,
		Password: c.Password,
		Host:     c.Host,
		Port:     c.Port,
		MaxConns: c.MaxConns,
	}
}
