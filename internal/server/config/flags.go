package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/accountkeeper/internal/flagx"
)

var serverFlags = []string{"-a", "-m", "-d", "-k", "-t", "-l", "-u", "-p", "-b", "-g", "-e", "-n", "-v", "-f"}

// parseFlags populates Config from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g. ":8080")
//	-m string     metrics bind address, empty disables
//	-d string     PostgreSQL DSN
//	-k int        bcrypt cost
//	-t duration   verification token validity (e.g. "2m")
//	-l string     base URL used in verification links
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket name
//	-g string     S3 region
//	-e string     S3 base endpoint
//	-n string     SNS topic ARN for verification notifications
//	-v string     log level
//	-f string     additional log file
//
// os.Args is filtered through flagx.FilterArgs first so -c/-config and
// test-runner flags do not make parsing fail.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port for metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.BcryptCost, "k", config.BcryptCost, "bcrypt cost")
	fs.DurationVar(&config.VerificationTokenTTL, "t", config.VerificationTokenTTL, "verification token validity")
	fs.StringVar(&config.VerificationBaseURL, "l", config.VerificationBaseURL, "verification link base URL")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.SNSTopicARN, "n", config.SNSTopicARN, "SNS topic ARN")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")
	fs.StringVar(&config.LogFile, "f", config.LogFile, "log file")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
