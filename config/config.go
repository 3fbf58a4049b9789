package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	defaultOllamaURL      = "http://localhost:11434/api/generate"
	defaultOllamaModel    = "llama3"
	defaultOllamaTimeout  = 60 * time.Second
	defaultHost           = "0.0.0.0"
	defaultPort           = "5010"
	defaultSearchMaxFiles = 5
	defaultWorkerPoolSize = 4
	defaultJobDBPath      = "./data/jobs.db"
)

type Config struct {
	config *viper.Viper
}

func Load() (*Config, error) {

	env := os.Getenv(keyEnv)
	if len(env) == 0 {
		env = envLocal
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

func (c *Config) GetOllamaURL() string {
	url := c.config.GetString("OLLAMA_URL")
	if len(url) == 0 {
		url = c.config.GetString("ollama.url")
	}
	if len(url) == 0 {
		url = defaultOllamaURL
	}

	return url
}

func (c *Config) GetOllamaModel() string {
	model := c.config.GetString("OLLAMA_MODEL")
	if len(model) == 0 {
		model = c.config.GetString("ollama.model")
	}
	if len(model) == 0 {
		model = defaultOllamaModel
	}

	return model
}

func (c *Config) GetOllamaTimeout() time.Duration {
	seconds := c.config.GetInt("OLLAMA_TIMEOUT")
	if seconds == 0 {
		seconds = c.config.GetInt("ollama.timeout_seconds")
	}
	if seconds == 0 {
		return defaultOllamaTimeout
	}

	return time.Duration(seconds) * time.Second
}

func (c *Config) GetWorkflowURL() string {
	url := c.config.GetString("TEAMS_WORKFLOW_URL")
	if len(url) == 0 {
		url = c.config.GetString("teams.workflow_url")
	}

	return url
}

func (c *Config) GetOutgoingToken() string {
	token := c.config.GetString("TEAMS_OUTGOING_TOKEN")
	if len(token) == 0 {
		token = c.config.GetString("teams.outgoing_token")
	}

	return token
}

func (c *Config) GetHost() string {
	host := c.config.GetString("HOST")
	if len(host) == 0 {
		host = c.config.GetString("server.host")
	}
	if len(host) == 0 {
		host = defaultHost
	}

	return host
}

func (c *Config) GetPort() string {
	port := c.config.GetString("PORT")
	if len(port) == 0 {
		port = c.config.GetString("server.port")
	}
	if len(port) == 0 {
		port = defaultPort
	}

	return port
}

func (c *Config) IsDebug() bool {
	return c.config.GetBool("DEBUG") || c.config.GetBool("server.debug")
}

func (c *Config) SkipVerification() bool {
	return c.config.GetBool("SKIP_VERIFICATION") || c.config.GetBool("teams.skip_verification")
}

func (c *Config) IsSearchEnabled() bool {
	return c.config.GetBool("SEARCH_ENABLED") || c.config.GetBool("search.enabled")
}

func (c *Config) GetSearchDir() string {
	dir := c.config.GetString("SEARCH_DIR")
	if len(dir) == 0 {
		dir = c.config.GetString("search.dir")
	}

	return dir
}

func (c *Config) GetSearchFileTypes() []string {
	fileTypes := c.config.GetString("SEARCH_FILE_TYPES")
	if len(fileTypes) == 0 {
		fileTypes = c.config.GetString("search.file_types")
	}

	return parseFileTypes(fileTypes)
}

func (c *Config) GetSearchMaxFiles() int {
	maxFiles := c.config.GetInt("SEARCH_MAX_FILES")
	if maxFiles == 0 {
		maxFiles = c.config.GetInt("search.max_files")
	}
	if maxFiles == 0 {
		maxFiles = defaultSearchMaxFiles
	}

	return maxFiles
}

func (c *Config) IsDateStrict() bool {
	return c.config.GetBool("DATE_STRICT") || c.config.GetBool("search.date_strict")
}

func (c *Config) GetWorkerPoolSize() int {
	size := c.config.GetInt("WORKER_POOL_SIZE")
	if size == 0 {
		size = c.config.GetInt("server.worker_pool_size")
	}
	if size == 0 {
		size = defaultWorkerPoolSize
	}

	return size
}

func (c *Config) GetJobDBPath() string {
	jobDBPath := c.config.GetString("JOB_DB_PATH")
	if len(jobDBPath) == 0 {
		jobDBPath = c.config.GetString("database.job_db_path")
	}
	if len(jobDBPath) == 0 {
		jobDBPath = defaultJobDBPath
	}

	return jobDBPath
}

// parseFileTypes turns a comma-separated extension list into normalized
// extensions with a leading dot ("pdf, .docx" -> [".pdf", ".docx"]).
func parseFileTypes(fileTypes string) []string {
	if len(fileTypes) == 0 {
		return nil
	}

	var valid []string
	for _, fileType := range strings.Split(fileTypes, ",") {
		fileType = strings.TrimSpace(fileType)
		if len(fileType) == 0 {
			continue
		}
		if !strings.HasPrefix(fileType, ".") {
			fileType = "." + fileType
		}
		valid = append(valid, strings.ToLower(fileType))
	}

	return valid
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
