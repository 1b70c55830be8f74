package config

import (
	"flag"
	"os"

	"github.com/dkravets/keychat/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-d string   database DSN (SQLite path or postgres:// URL)
//	-k string   content encryption passphrase
//	-t string   callback verification token
//	-e string   callback EncodingAESKey
//
// The function first filters os.Args to only the flags it recognizes
// using flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k", "-t", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.EncryptKey, "k", config.EncryptKey, "content encryption passphrase")
	fs.StringVar(&config.WeComToken, "t", config.WeComToken, "callback verification token")
	fs.StringVar(&config.WeComAESKey, "e", config.WeComAESKey, "callback EncodingAESKey")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
