package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Read configuration information from a file.
 *
 * Description:	One YAML document:
 *
 *		log:
 *		  level: info
 *		  file: /var/log/soundmodem.log
 *		metrics:
 *		  listen: ":9110"
 *		channels:
 *		  - name: vhf
 *		    mode: "sbc:afsk1200"
 *		    input_device: "USB Audio"
 *		    ptt:
 *		      serial: /dev/ttyUSB0
 *		    tx_input: /run/soundmodem/vhf.tx
 *		    rx_output: /run/soundmodem/vhf.rx
 *
 *		Anything left out gets the default below.  Command line
 *		options are applied on top by the caller.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrBadConfig = errors.New("bad configuration")

const DEFAULT_FRAGMENTS = 4
const MIN_FRAGMENTS = 2
const DEFAULT_FRAGMENT_MS = 10
const MAX_FRAGMENT_MS = 1000

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables
	Path   string `yaml:"path"`
}

type ChannelConfig struct {
	Name         string    `yaml:"name"`
	Mode         string    `yaml:"mode"`
	Backend      string    `yaml:"backend"`
	InputDevice  string    `yaml:"input_device"`
	OutputDevice string    `yaml:"output_device"`
	Fragments    int       `yaml:"fragments"`
	FragmentMS   int       `yaml:"fragment_ms"`
	DiagCapacity int       `yaml:"diag_capacity"`
	PTT          PTTConfig `yaml:"ptt"`
	TxInput      string    `yaml:"tx_input"`
	RxOutput     string    `yaml:"rx_output"`
}

type Config struct {
	Log      LogConfig       `yaml:"log"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Channels []ChannelConfig `yaml:"channels"`
}

var config_search_locations = []string{
	"soundmodem.yaml",
	"/usr/local/etc/soundmodem.yaml",
	"/etc/soundmodem.yaml",
}

/*------------------------------------------------------------------
 *
 * Name:	LoadConfig
 *
 * Purpose:	Read and check the configuration file.
 *
 * Inputs:	path	- File name.  Empty to try the usual places.
 *
 *----------------------------------------------------------------*/

func LoadConfig(path string) (*Config, error) {
	var locations = config_search_locations
	if path != "" {
		locations = []string{path}
	}

	for _, location := range locations {
		var f, err = os.Open(location)
		if err != nil {
			if path == "" && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		defer f.Close()

		smlog.Info("Reading config file", "file", location)
		return ParseConfig(f)
	}

	return nil, fmt.Errorf("%w: no config file in %v", ErrBadConfig, locations)
}

func ParseConfig(r io.Reader) (*Config, error) {
	var data, err = io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var c Config
	var dec = yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrBadConfig, err)
	}

	c.applyDefaults()

	if err = c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	for i := range c.Channels {
		c.Channels[i].applyDefaults(i)
	}
}

func (cc *ChannelConfig) applyDefaults(index int) {
	if cc.Name == "" {
		cc.Name = fmt.Sprintf("ch%d", index)
	}
	if cc.Backend == "" {
		cc.Backend = "portaudio"
	}
	if cc.Fragments == 0 {
		cc.Fragments = DEFAULT_FRAGMENTS
	}
	if cc.FragmentMS == 0 {
		cc.FragmentMS = DEFAULT_FRAGMENT_MS
	}
	if cc.DiagCapacity == 0 {
		cc.DiagCapacity = DEFAULT_DIAG_CAPACITY
	}
}

func (cc *ChannelConfig) validate() error {
	if cc.Fragments < MIN_FRAGMENTS {
		return fmt.Errorf("%w: channel %s: fragments %d, need at least %d", ErrBadConfig, cc.Name, cc.Fragments, MIN_FRAGMENTS)
	}
	if cc.FragmentMS < 1 || cc.FragmentMS > MAX_FRAGMENT_MS {
		return fmt.Errorf("%w: channel %s: fragment_ms %d", ErrBadConfig, cc.Name, cc.FragmentMS)
	}
	if cc.DiagCapacity < 2 {
		return fmt.Errorf("%w: channel %s: diag_capacity %d", ErrBadConfig, cc.Name, cc.DiagCapacity)
	}
	if cc.Backend != "portaudio" && cc.Backend != "sim" {
		return fmt.Errorf("%w: channel %s: backend %q", ErrBadConfig, cc.Name, cc.Backend)
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := log_level_ok(c.Log.Level); err != nil {
		return err
	}

	var seen = make(map[string]bool)
	for i := range c.Channels {
		var cc = &c.Channels[i]
		if seen[cc.Name] {
			return fmt.Errorf("%w: duplicate channel name %q", ErrBadConfig, cc.Name)
		}
		seen[cc.Name] = true

		if cc.Mode == "" {
			return fmt.Errorf("%w: channel %s has no mode", ErrBadConfig, cc.Name)
		}
		if _, err := parse_mode(cc.Mode); err != nil {
			return fmt.Errorf("%w: channel %s: %w", ErrBadConfig, cc.Name, err)
		}
		if err := cc.validate(); err != nil {
			return err
		}
	}
	return nil
}
