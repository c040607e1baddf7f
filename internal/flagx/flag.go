// Package flagx lets several components parse their own subset of os.Args
// without tripping over each other's flags.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in allowedFlags, together with their
// values.
//
// Supported formats:
//  1. Flag and value as separate arguments: -a :8080
//  2. Flag and value joined with '=':       -a=:8080
//
// A following argument that starts with "-" is never taken as a value, so
// "-a -d dsn" keeps "-a" alone.
//
// Parameters:
//
//	args         the command-line arguments (usually os.Args[1:])
//	allowedFlags flag names to keep, e.g. []string{"-a", "-d"}
//
// Returns the allowed flags and their values in their original order. The
// result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	// set of allowed names
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "-flag=value": keep or drop as a whole
		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		// "-flag value": the value travels with the flag
		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigFilePath extracts the JSON config file path given with -c or -config.
//
// Only these two flags are parsed; every other argument is ignored, so the
// server flag set can parse os.Args independently.
//
// If neither flag is present, an empty string is returned.
func ConfigFilePath() string {
	var path string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(args)

	return path
}
