package configmgr

// Config - config interface.
type Config interface {
	GetServiceName() string
	GetVersion() string
	GetEnvironment() string
	GetLoggingConfig() *LoggingConfig
	GetDatabases() map[string]*DatabaseConfig
	GetSubatomicConfig() *SubatomicConfig
	IsLocalEnvironment() bool
}

// BaseConfig - app config struct.
// This struct represents the base configuration for the application and is expected to be in the following YAML format:
/*
name: "TestApp"
environment: "development"
version: "1.0"
logging:
  level: "debug"
databases:
  default:
    host: localhost
    port: 5432
    name: app
    user: postgres
    password: password
    maxConn: 2
    localEnv: true
  other:
    host: localhost
    port: 5432
    name: app_other
    user: postgres
    password: password
    maxConn: 1
    localEnv: true
subatomic:
  after_commit_needs_transaction: true
  run_after_commit_callbacks_in_tests: true
  catch_unhandled_after_commit_callbacks_in_tests: true
  raise_if_pending_testcase_on_commit_on_enter: true
*/
type BaseConfig struct {
	Name        string                     `mapstructure:"name"`
	Environment string                     `mapstructure:"environment"`
	Version     string                     `mapstructure:"version"`
	Logging     *LoggingConfig             `mapstructure:"logging"`
	Databases   map[string]*DatabaseConfig `mapstructure:"databases"`
	Subatomic   *SubatomicConfig           `mapstructure:"subatomic"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig - connection settings of one database alias.
type DatabaseConfig struct {
	Host                string `mapstructure:"host"`
	Port                int32  `mapstructure:"port"`
	Name                string `mapstructure:"name"`
	User                string `mapstructure:"user"`
	Password            string `mapstructure:"password"`
	MaxConn             int32  `mapstructure:"maxConn"`
	LocalEnv            bool   `mapstructure:"localEnv"`
	VpcDirectConnection bool   `mapstructure:"vpcDirectConnection"`
}

// SubatomicConfig - behavioural toggles of the transaction scope manager.
// Every toggle defaults to true, see defaultSubatomicValues.
type SubatomicConfig struct {
	AfterCommitNeedsTransaction               bool `mapstructure:"after_commit_needs_transaction"`
	RunAfterCommitCallbacksInTests            bool `mapstructure:"run_after_commit_callbacks_in_tests"`
	CatchUnhandledAfterCommitCallbacksInTests bool `mapstructure:"catch_unhandled_after_commit_callbacks_in_tests"`
	RaiseIfPendingTestcaseOnCommitOnEnter     bool `mapstructure:"raise_if_pending_testcase_on_commit_on_enter"`
}

func (cfg BaseConfig) GetServiceName() string {
	return cfg.Name
}

func (cfg BaseConfig) GetVersion() string {
	return cfg.Version
}

func (cfg BaseConfig) GetEnvironment() string {
	return cfg.Environment
}

func (cfg BaseConfig) IsLocalEnvironment() bool {
	return checkIfLocalEnv(cfg.Environment)
}

func (cfg BaseConfig) GetLoggingConfig() *LoggingConfig {
	if cfg.Logging == nil {
		return &LoggingConfig{Level: "info"}
	}

	return cfg.Logging
}

func (cfg BaseConfig) GetDatabases() map[string]*DatabaseConfig {
	return cfg.Databases
}

func (cfg BaseConfig) GetSubatomicConfig() *SubatomicConfig {
	if cfg.Subatomic == nil {
		return &SubatomicConfig{
			AfterCommitNeedsTransaction:               true,
			RunAfterCommitCallbacksInTests:            true,
			CatchUnhandledAfterCommitCallbacksInTests: true,
			RaiseIfPendingTestcaseOnCommitOnEnter:     true,
		}
	}

	return cfg.Subatomic
}
