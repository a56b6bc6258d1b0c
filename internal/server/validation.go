package server

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ToropovAlexei/autosales-sub001/internal/store"
)

// registerValidations adds custom binding tags to gin's validator engine.
// The "trc20" tag rejects malformed Tron wallet addresses at bind time,
// before the request reaches a service.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("trc20", func(fl validator.FieldLevel) bool {
		return store.ValidTRC20Address(fl.Field().String())
	})
}
