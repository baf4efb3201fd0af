// Package handler holds request parsing helpers shared by the resource handlers.
package handler

import (
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/dental-api/pkg/errors"
	"github.com/jwalitptl/dental-api/pkg/validator"
)

var bindingOnce sync.Once

// ConfigureBinding makes gin report request fields by their json names.
func ConfigureBinding() {
	bindingOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*playground.Validate); ok {
			validator.Configure(v)
		}
	})
}

// ParseID reads a UUID path parameter.
func ParseID(c *gin.Context, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, errors.InvalidArgumentf("invalid %s: %q", param, c.Param(param))
	}
	return id, nil
}

// BindJSON decodes and validates the request body.
func BindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return validator.Translate(err)
	}
	return nil
}

// QueryInt returns nil when key is absent.
func QueryInt(c *gin.Context, key string) (*int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.InvalidArgumentf("%s must be an integer", key)
	}
	return &v, nil
}

// QueryBool returns nil when key is absent.
func QueryBool(c *gin.Context, key string) (*bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.InvalidArgumentf("%s must be true or false", key)
	}
	return &v, nil
}

// QueryUUID returns nil when key is absent.
func QueryUUID(c *gin.Context, key string) (*uuid.UUID, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.InvalidArgumentf("%s must be a valid UUID", key)
	}
	return &v, nil
}
