// Package config loads the server's YAML configuration file, overlaying
// it onto a defaults struct the way the teacher's LoadLoginServer does
// (spec.md §6 / SPEC_FULL.md §0).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openpso/server/internal/constants"
)

// Port binds one listening port to a client version and server behavior
// (spec.md §1/§6: each port serves exactly one version).
type Port struct {
	Port     int    `yaml:"port"`
	Version  string `yaml:"version"`  // one of constants.Version's String() names
	Behavior string `yaml:"behavior"` // "login", "lobby", "proxy", ...
}

// InformationMenuEntry is one [title, short-desc, long-text] triple from
// spec.md §6's "InformationMenuContents".
type InformationMenuEntry struct {
	Title     string `yaml:"title"`
	ShortDesc string `yaml:"short_desc"`
	LongText  string `yaml:"long_text"`
}

// Config is the full server configuration, field-for-field translatable
// from the original JSON config's keys (SPEC_FULL.md §6).
type Config struct {
	ServerName string `yaml:"server_name"`

	CommonItemDropRatesEnemy []uint32  `yaml:"common_item_drop_rates_enemy"`
	CommonItemDropRatesBox   []uint32  `yaml:"common_item_drop_rates_box"`
	CommonUnitTypes          [][]uint8 `yaml:"common_unit_types"`

	InformationMenu []InformationMenuEntry `yaml:"information_menu"`

	// Threads is parsed from the config file, but no package reads it:
	// each listener runs one accept goroutine plus one goroutine per
	// connection whatever its value, and 0 is not mapped to runtime.NumCPU.
	Threads int `yaml:"threads"`

	LocalAddress    string `yaml:"local_address"`
	ExternalAddress string `yaml:"external_address"`

	RunDNSServer        bool `yaml:"run_dns_server"`
	RunInteractiveShell bool `yaml:"run_interactive_shell"`

	LicenseFilePath string `yaml:"license_file_path"`
	QuestDirectory  string `yaml:"quest_directory"`

	// BBKeyFilePaths lists server key files for Blue Burst's per-patch
	// client key tables (spec.md §4B: "the server may hold several").
	BBKeyFilePaths []string `yaml:"bb_key_file_paths"`

	Ports []Port `yaml:"ports"`

	LogLevel string `yaml:"log_level"`
}

// Default returns a Config with sensible defaults (spec.md §6's defaults:
// RunDNSServer true, Threads 0, a standard six-port layout covering every
// client dialect).
func Default() Config {
	return Config{
		ServerName:          "Unnamed PSO Server",
		Threads:             0,
		LocalAddress:        "127.0.0.1",
		ExternalAddress:     "127.0.0.1",
		RunDNSServer:        true,
		RunInteractiveShell: isTTYAttached(),
		LicenseFilePath:     "system/licenses.dat",
		QuestDirectory:      "system/quests",
		LogLevel:            "info",
		Ports: []Port{
			{Port: 9000, Version: constants.VersionDCv1.String(), Behavior: "login"},
			{Port: 9100, Version: constants.VersionDCv2.String(), Behavior: "login"},
			{Port: 9200, Version: constants.VersionPC.String(), Behavior: "login"},
			{Port: 9300, Version: constants.VersionGC.String(), Behavior: "login"},
			{Port: 9400, Version: constants.VersionEp3.String(), Behavior: "login"},
			{Port: 12000, Version: constants.VersionBB.String(), Behavior: "login"},
		},
	}
}

// Load reads a YAML config file, overlaying it onto Default(). A missing
// file yields the defaults unchanged (spec.md §6's loader has no
// mandatory-file requirement).
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
