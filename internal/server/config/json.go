package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/accountkeeper/internal/flagx"
	"github.com/dmitrijs2005/accountkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "2m" and integer nanoseconds are accepted. Absent keys keep the value
// already in Config.
type JsonConfig struct {
	EndpointAddrHTTP     *string         `json:"endpoint_addr_http"`
	MetricsAddr          *string         `json:"metrics_addr"`
	DatabaseDSN          *string         `json:"database_dsn"`
	BcryptCost           *int            `json:"bcrypt_cost"`
	VerificationTokenTTL *timex.Duration `json:"verification_token_ttl"`
	VerificationBaseURL  *string         `json:"verification_base_url"`
	NotifyTimeout        *timex.Duration `json:"notify_timeout"`
	MaxUploadSize        *int64          `json:"max_upload_size"`
	S3RootUser           *string         `json:"s3_root_user"`
	S3RootPassword       *string         `json:"s3_root_password"`
	S3Bucket             *string         `json:"s3_bucket"`
	S3Region             *string         `json:"s3_region"`
	S3BaseEndpoint       *string         `json:"s3_base_endpoint"`
	SNSTopicARN          *string         `json:"sns_topic_arn"`
	SNSBaseEndpoint      *string         `json:"sns_base_endpoint"`
	LogLevel             *string         `json:"log_level"`
	LogFile              *string         `json:"log_file"`
}

// parseJson loads the file named by -c/-config, if any, into config.
// An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	path := flagx.ConfigFilePath()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.VerificationTokenTTL != nil {
		config.VerificationTokenTTL = c.VerificationTokenTTL.Duration
	}
	setString(&config.VerificationBaseURL, c.VerificationBaseURL)
	if c.NotifyTimeout != nil {
		config.NotifyTimeout = c.NotifyTimeout.Duration
	}
	if c.MaxUploadSize != nil {
		config.MaxUploadSize = *c.MaxUploadSize
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.SNSTopicARN, c.SNSTopicARN)
	setString(&config.SNSBaseEndpoint, c.SNSBaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFile, c.LogFile)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
