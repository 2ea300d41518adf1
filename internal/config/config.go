// Package config resolves the settings of the fiatshamir command. Settings are layered: defaults,
// then an optional JSON file named by -c, then command-line flags. Later layers win.
package config

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/fiatshamir"
)

type Config struct {
	// ModulusFile holds N as raw little-endian bytes.
	ModulusFile string `json:"modulus_file"`
	// UsersFile is the bolt database of registered users.
	UsersFile string `json:"users_file"`
	// Listen is the address the verifier listens on.
	Listen string `json:"listen"`
	// Server is the verifier address provers connect to.
	Server    string   `json:"server"`
	PrimeBits int      `json:"prime_bits"`
	Rounds    int      `json:"rounds"`
	Hash      string   `json:"hash"`
	LogLevel  string   `json:"log_level"`
	Timeout   Duration `json:"timeout"`
}

// Duration is a time.Duration that reads from JSON either as a string like "30s" or as a number
// of nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.ModulusFile = "nfile.dat"
	c.UsersFile = "users.db"
	c.Listen = "127.0.0.1:7650"
	c.Server = "127.0.0.1:7650"
	c.PrimeBits = fiatshamir.DefaultPrimeBits
	c.Rounds = fiatshamir.DefaultRounds
	c.Hash = fiatshamir.DefaultHashFunction.Name()
	c.LogLevel = logrus.InfoLevel.String()
	c.Timeout = Duration(30 * time.Second)
}

// LoadFile overlays c with the fields present in the JSON file at path. Unknown fields are an
// error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapPrefix(err, "reading configuration", 0)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err = dec.Decode(c); err != nil {
		return errors.WrapPrefix(err, "parsing "+path, 0)
	}
	return nil
}

func (c *Config) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.ModulusFile, "modulus", c.ModulusFile, "file holding the modulus N")
	fs.StringVar(&c.UsersFile, "users", c.UsersFile, "user database")
	fs.StringVar(&c.Listen, "listen", c.Listen, "address the verifier listens on")
	fs.StringVar(&c.Server, "server", c.Server, "address of the verifier")
	fs.IntVar(&c.PrimeBits, "bits", c.PrimeBits, "size in bits of each prime factor of a new modulus")
	fs.IntVar(&c.Rounds, "rounds", c.Rounds, "protocol rounds per session")
	fs.StringVar(&c.Hash, "hash", c.Hash, "password hash: sha2-512, sha3-512 or blake2b-512")
	fs.StringVar(&c.LogLevel, "log", c.LogLevel, "log level")
	fs.Var((*durationFlag)(&c.Timeout), "timeout", "network timeout")
}

type durationFlag Duration

func (d *durationFlag) String() string { return time.Duration(*d).String() }

func (d *durationFlag) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = durationFlag(v)
	return nil
}

// Load resolves the configuration from defaults, the JSON file named by -c in args, and the flags
// in args. It returns the arguments left after the flags.
func Load(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	fs := flag.NewFlagSet("fiatshamir", flag.ContinueOnError)
	// consumed by configPath; registered so that Parse accepts them
	fs.String("c", "", "JSON configuration file")
	fs.String("config", "", "JSON configuration file")
	cfg.bind(fs)

	if p := configPath(args); p != "" {
		if err := cfg.LoadFile(p); err != nil {
			return nil, nil, err
		}
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}

// configPath finds the value of -c (or -config) in args, in any of the forms "-c file",
// "-c=file", "--c file" and "--config=file".
func configPath(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return ""
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || (name != "c" && name != "config") {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

var ErrInvalid = errors.New("invalid configuration")

func (c *Config) Validate() error {
	if err := c.Parameters().Validate(); err != nil {
		return errors.WrapPrefix(ErrInvalid, err.Error(), 0)
	}
	if _, err := c.HashFunction(); err != nil {
		return errors.WrapPrefix(ErrInvalid, err.Error(), 0)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.WrapPrefix(ErrInvalid, err.Error(), 0)
	}
	if c.Timeout <= 0 {
		return errors.WrapPrefix(ErrInvalid, "timeout must be positive", 0)
	}
	return nil
}

// Parameters returns the protocol parameters for the configured sizes.
func (c *Config) Parameters() *fiatshamir.Parameters {
	params := fiatshamir.MakeParameters(c.PrimeBits)
	params.Rounds = c.Rounds
	return params
}

func (c *Config) HashFunction() (fiatshamir.HashFunction, error) {
	return fiatshamir.HashFunctionByName(c.Hash)
}

func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
