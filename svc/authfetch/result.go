package authfetch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// Result is a fully read server response.
type Result struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r Result) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// ErrorMessage returns the server's {error} text or a generic status message.
func (r Result) ErrorMessage() string {
	return ErrorMessage(r.Body, r.Status)
}

// ReadResult reads and closes resp.Body. A non-empty body that is not JSON
// yields ErrInvalidJSON along with the result; an empty body is accepted.
func ReadResult(resp *http.Response) (Result, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Status: resp.StatusCode}, err
	}
	res := Result{Status: resp.StatusCode, Body: body}
	if len(bytes.TrimSpace(body)) > 0 && !gjson.ValidBytes(body) {
		return res, ErrInvalidJSON
	}
	return res, nil
}

// ErrorMessage extracts a non-empty "error" field from a JSON body, falling
// back to "Server error (<status>)".
func ErrorMessage(body []byte, status int) string {
	msg := gjson.GetBytes(body, "error")
	switch msg.Type {
	case gjson.Null, gjson.False:
	default:
		if s := msg.String(); s != "" {
			return s
		}
	}
	return fmt.Sprintf("Server error (%d)", status)
}
