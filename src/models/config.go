package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	LogLevel   string            `yaml:"log_level"`
	GrpcHost   string            `yaml:"grpc_host"`
	GrpcPort   int               `yaml:"grpc_port"`
	Simulation MSimulationConfig `yaml:"simulation"`
	Network    MNetworkConfig    `yaml:"network"`
	Storage    MStorageConfig    `yaml:"storage"`
}

type MSimulationConfig struct {
	BaseURL          string  `yaml:"base_url"`
	SpawnRate        float64 `yaml:"spawn_rate"`
	Mode             string  `yaml:"mode"`
	CadenceMillis    int     `yaml:"cadence_ms"`
	HistoryCapacity  int     `yaml:"history_capacity"`
	AutoStart        bool    `yaml:"auto_start"`
	AutoRetrySeconds int     `yaml:"auto_retry_seconds"` // 0 = manual retry only
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // none, sqlite, postgres
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	UserAgent      string   `yaml:"user_agent"`
}
