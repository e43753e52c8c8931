package agent

import "path/filepath"

// Config points the agent at its directories. The user-driven config files
// live in ConfigDir and are reloaded live; DataDir holds the device address
// book.
type Config struct {
	DataDir   string `json:"dataDir"`
	ConfigDir string `json:"configDir"`
	LogLevel  string `json:"logLevel"`
	JSONLog   bool   `json:"jsonLog"`
	Sim       bool   `json:"sim"`
}

func (c Config) TouchConfig() string {
	return filepath.Join(c.ConfigDir, "touch.yml")
}

func (c Config) SimConfig() string {
	return filepath.Join(c.ConfigDir, "sim.yml")
}
