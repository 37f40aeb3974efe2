package common

import (
	"go.mongodb.org/mongo-driver/mongo"
)

type Database struct {
	Transitions *mongo.Collection
}

type ENVConfigs struct {
	WorkingEnvironment      string
	GinMode                 string
	SponsorPrivateKey       string
	MongoDbConnectionString string
	RedisHost               string
	RedisPort               string
}

type Exception struct {
	Code      int                    `json:"code"`
	ErrorType string                 `json:"type"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

type ApiError struct {
	Status bool         `json:"status"`
	Err    ErrorDetails `json:"error"`
}

type ErrorDetails struct {
	Type    string                 `json:"type"`
	Message interface{}            `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type ApiSuccess struct {
	Status bool        `json:"status"`
	Result interface{} `json:"result"`
}
