package models

import (
	"path"

	"github.com/kardianos/osext"
)

const (
	// DriverSQLite selects the SQLite database inside the data directory
	DriverSQLite = "sqlite"
	// DriverPostgres selects a PostgreSQL server
	DriverPostgres = "postgres"

	// FolderBackendNone disables remote folders completely
	FolderBackendNone = "none"
	// FolderBackendMinio stores folders in a MinIO bucket
	FolderBackendMinio = "minio"
	// FolderBackendS3 stores folders in an S3 (or S3 compatible) bucket using the AWS SDK
	FolderBackendS3 = "s3"
)

// AppConfig is the application's main configuration structure
type AppConfig struct {
	// The directory where Stagehand stores all of its local data - defaults to the /data subdirectory of the folder,
	// the Stagehand executable resides in
	DataDir string `json:"dataDir" validate:"required"`
	// The credentials for the default user account that is created on startup
	DefaultUser *DefaultUserConfig `json:"defaultUser" validate:"required"`
	// The IP address to listen at - including the port number
	ListenAddress string `json:"listenAddress" validate:"required"`
	// Minimum level of the log entries written (debug, info, warning, error)
	LogLevel string `json:"logLevel"`
	// Where the performance records are stored
	Database DatabaseConfig `json:"database"`
	// Where the folders for performance material are created
	Folders FolderConfig `json:"folders"`
}

// The DefaultUserConfig struct configures the default user that can log in
type DefaultUserConfig struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// DatabaseConfig selects and configures the record store
type DatabaseConfig struct {
	Driver string `json:"driver" validate:"oneof=sqlite postgres"`
	// Connection settings - only used by the postgres driver
	Host           string `json:"host" validate:"required_if=Driver postgres"`
	Port           int    `json:"port"`
	Name           string `json:"name" validate:"required_if=Driver postgres"`
	User           string `json:"user" validate:"required_if=Driver postgres"`
	Password       string `json:"password"`
	SSLMode        string `json:"sslMode"`
	MaxConnections int    `json:"maxConnections"`
	// Use an IAM auth token (Aurora DSQL) instead of the password
	IAMAuth bool `json:"iamAuth"`
	// AWS region used for generating the IAM auth token
	Region string `json:"region" validate:"required_if=IAMAuth true"`
}

// FolderConfig configures the remote folder service
type FolderConfig struct {
	Backend   string `json:"backend" validate:"oneof=none minio s3"`
	Endpoint  string `json:"endpoint" validate:"required_if=Backend minio"`
	AccessKey string `json:"accessKey" validate:"required_if=Backend minio"`
	SecretKey string `json:"secretKey" validate:"required_if=Backend minio"`
	Bucket    string `json:"bucket" validate:"required_unless=Backend none"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"useSSL"`
	// Key prefix all performance folders are created below
	Parent string `json:"parent"`
	// Delete a freshly created folder again when storing the performance fails
	CleanupOnFailedInsert bool `json:"cleanupOnFailedInsert"`
}

// GetDefaultConfig returns the default configuration values for the application
func GetDefaultConfig() (*AppConfig, error) {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		return nil, err
	}
	return &AppConfig{
		DataDir: path.Join(execDir, "data"),
		DefaultUser: &DefaultUserConfig{
			Name:     "admin",
			Password: "changeme",
		},
		ListenAddress: ":3000",
		LogLevel:      "info",
		Database: DatabaseConfig{
			Driver:         DriverSQLite,
			Port:           5432,
			SSLMode:        "disable",
			MaxConnections: 10,
		},
		Folders: FolderConfig{
			Backend: FolderBackendNone,
			Parent:  "performances",
		},
	}, nil
}
