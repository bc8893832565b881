package gitlab

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	glapi "gitlab.com/gitlab-org/api/client-go"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
)

// classify maps a client-go failure to an importer error kind.
func classify(op string, resp *glapi.Response, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return importer.DataShape(op, err)
	}

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	var errResp *glapi.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		status = errResp.Response.StatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return importer.Authorization(op, err)
	case http.StatusNotFound:
		return importer.NotFound(op, err)
	default:
		return importer.Transport(op, err)
	}
}

// graphqlErrors classifies the errors array of a 200 GraphQL response.
func graphqlErrors(op string, messages []string) error {
	err := fmt.Errorf("graphql: %s", strings.Join(messages, "; "))
	for _, m := range messages {
		lower := strings.ToLower(m)
		if strings.Contains(lower, "permission") || strings.Contains(lower, "unauthorized") {
			return importer.Authorization(op, err)
		}
	}
	return importer.Transport(op, err)
}

func dataShape(op, msg string) error {
	return importer.DataShape(op, errors.New(msg))
}
