package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"bizrent_ledger/internal/ledger"
)

// Response is the envelope of every successful API call
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func respond(c echo.Context, code int, data interface{}, message string) error {
	return c.JSON(code, Response{Success: true, Data: data, Message: message})
}

func ok(c echo.Context, data interface{}) error {
	return respond(c, http.StatusOK, data, "")
}

// paramID reads a positive numeric path parameter
func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, &ledger.ValidationError{Field: name, Message: "invalid " + name}
	}
	return uint(id), nil
}

// bindAndValidate decodes the request body into dest and runs the registered validator
func bindAndValidate(c echo.Context, dest interface{}) error {
	if err := c.Bind(dest); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return err
		}
		return &ledger.ValidationError{Field: "body", Message: "invalid request body"}
	}
	return c.Validate(dest)
}
