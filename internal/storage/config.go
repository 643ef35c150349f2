package storage

import "fmt"

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

// Validate reports missing connection settings.
func (c *MinIOConfig) Validate() error {
	if c == nil || c.Endpoint == "" {
		return fmt.Errorf("minio endpoint missing")
	}
	if c.Bucket == "" {
		return fmt.Errorf("minio bucket missing")
	}
	return nil
}
