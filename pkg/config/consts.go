package config

// EnvPrefix namespaces default envconfig lookups; the struct tags carry the
// fully qualified names.
const EnvPrefix = "carebridge"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "CAREBRIDGE_DB_DSN"
	EnvDBHost = "CAREBRIDGE_DB_HOST"
	EnvDBUser = "CAREBRIDGE_DB_USER"
	EnvDBName = "CAREBRIDGE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
