// Package config handles application settings, loaded from environment
// variables (optionally populated from a .env file in main).
package config

import (
	"errors"
	"os"
)

// Config holds the backend connection settings. Only the connection
// string of the selected backend needs to be set.
type Config struct {
	SQLConnString   string
	MongoConnString string
}

func Load() *Config {
	return &Config{
		SQLConnString:   os.Getenv("SQL_CONNECTION_STRING"),
		MongoConnString: os.Getenv("MONGO_CONNECTION_STRING"),
	}
}

// RequireSQL returns the SQL Server connection string or an error when it
// is not configured.
func (c *Config) RequireSQL() (string, error) {
	if c.SQLConnString == "" {
		return "", errors.New("SQL_CONNECTION_STRING environment variable not set")
	}
	return c.SQLConnString, nil
}

// RequireMongo returns the MongoDB connection string or an error when it
// is not configured.
func (c *Config) RequireMongo() (string, error) {
	if c.MongoConnString == "" {
		return "", errors.New("MONGO_CONNECTION_STRING environment variable not set")
	}
	return c.MongoConnString, nil
}
