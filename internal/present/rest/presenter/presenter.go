package presenter

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.Info("Bad request", slog.String("error", msg), slog.String("path", c.Path()))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func Unauthorized(c echo.Context, msg string) error {
	slog.Info("Unauthorized", slog.String("error", msg), slog.String("path", c.Path()))
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func InternalError(c echo.Context, err error) error {
	slog.Error("Internal error", slog.String("error", err.Error()), slog.String("path", c.Path()))
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}
