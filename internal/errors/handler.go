package errors

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// ExitFailure is the process status for any failed run. Error categories are
// reported in logs, not as distinct exit codes.
const ExitFailure = 1

// Handler turns a terminal error into a one-line report and an exit status.
type Handler struct {
	logger *logrus.Logger
	out    io.Writer
}

// NewHandler creates a new error handler writing user-facing lines to out.
func NewHandler(logger *logrus.Logger, out io.Writer) *Handler {
	return &Handler{
		logger: logger,
		out:    out,
	}
}

// Handle reports err and returns the exit status; nil maps to 0.
func (h *Handler) Handle(err error) int {
	if err == nil {
		return 0
	}

	appErr, ok := GetAppError(err)
	if !ok {
		appErr = &AppError{Type: ErrorTypeInternal, Message: err.Error()}
	}

	if h.logger != nil {
		h.logger.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			"location":   appErr.Location,
			"details":    appErr.Details,
		}).WithError(err).Debug("Run failed")
	}

	fmt.Fprintf(h.out, "Error: %s\n", err.Error())
	return ExitFailure
}
