package common

import (
	"os"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mr-tron/base58"
	log "github.com/sirupsen/logrus"
)

// validateBase58 accepts public keys (32 bytes) and signatures (64 bytes).
func validateBase58(fl validator.FieldLevel) bool {
	raw, err := base58.Decode(fl.Field().String())
	if err != nil {
		return false
	}
	return len(raw) == 32 || len(raw) == 64
}

func SetupCustomValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("base58", validateBase58)
		if err != nil {
			ForceExit("Failed to init custom validator")
		}
	}
}

func ForceExit(v interface{}) {
	log.Error(v)
	os.Exit(1)
}
