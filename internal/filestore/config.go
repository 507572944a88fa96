package filestore

import "github.com/koustreak/ffiload/internal/errs"

// Provider names a file store backend.
type Provider string

const (
	// ProviderLocal serves a directory tree; buckets are subdirectories.
	ProviderLocal Provider = "local"
	// ProviderMinIO serves a MinIO or other S3-compatible server.
	ProviderMinIO Provider = "minio"
)

// Config selects a provider and carries the settings it needs. Root is read
// by the local provider only; the remaining fields by MinIO only.
type Config struct {
	Provider Provider

	// Root is the base directory of the local provider. The empty bucket is
	// Root itself.
	Root string

	// Endpoint is host:port, e.g. "localhost:9000".
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// DefaultConfig returns a MinIO config without TLS.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// LocalConfig returns a config for the directory provider rooted at root.
func LocalConfig(root string) *Config {
	return &Config{Provider: ProviderLocal, Root: root}
}

// Validate reports settings the selected provider cannot start with.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.Root == "" {
			return errs.New(errs.ErrKindInvalidInput, "local file store needs a root directory")
		}
	case ProviderMinIO:
		if c.Endpoint == "" {
			return errs.New(errs.ErrKindInvalidInput, "minio file store needs an endpoint")
		}
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported file store provider %q", c.Provider)
	}
	return nil
}
