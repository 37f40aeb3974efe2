package common

const (
	WorkingEnvironment      = "WORKING_ENVIRONMENT"
	MongoDbConnectionString = "MongoDbConnectionString"
	GinMode                 = "GIN_MODE"
	RedisHost               = "REDIS_HOST"
	RedisPort               = "REDIS_PORT"
	SponsorPrivateKey       = "SPONSOR_PRIVATE_KEY"
)

// OrganizationHeader carries the caller's organization id on every swap call.
const OrganizationHeader = "organizationId"

// Context keys set by the request middlewares.
const (
	InputEntityKey    = "iEntity"
	OrganizationIDKey = "organizationId"
)
