package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvPort            = "PORT"
	EnvModelPath       = "MODEL_PATH"
	EnvDataPath        = "DATA_PATH"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "LOG_FORMAT"
	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
	EnvServerURL       = "LOAN_PREDICTOR_URL"
)

// Configuration defaults
const (
	DefaultPort            = 8000
	DefaultModelPath       = "models/random_forest_model.json"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultReadTimeout     = "10s"
	DefaultWriteTimeout    = "10s"
	DefaultShutdownTimeout = "10s"
	DefaultServerURL       = "http://localhost:8000"
)

// Log formats
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)
