package apperr

import (
	"errors"
	"net/http"
)

// ErrorInfo is the "error" object of the client-facing wire format.
type ErrorInfo struct {
	Code        string              `json:"code"`
	Message     string              `json:"message"`
	Details     map[string]any      `json:"details,omitempty"`
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
}

// MigrationInfo is attached to the wire payload when the response was
// produced under a deprecated API version.
type MigrationInfo struct {
	MigrationGuideURL  string `json:"migration_guide_url,omitempty"`
	RecommendedVersion string `json:"recommended_version,omitempty"`
	DeprecationMessage string `json:"deprecation_message,omitempty"`
	SunsetDate         string `json:"sunset_date,omitempty"`
}

// Response is the full wire envelope: {error:{...}, api_version,
// migration_info?}.
type Response struct {
	Error         ErrorInfo      `json:"error"`
	APIVersion    string         `json:"api_version,omitempty"`
	MigrationInfo *MigrationInfo `json:"migration_info,omitempty"`
}

// Builder composes a Response fluently.
type Builder struct {
	resp Response
}

func NewBuilder(code, message string) *Builder {
	return &Builder{resp: Response{Error: ErrorInfo{Code: code, Message: message}}}
}

func (b *Builder) WithDetails(d map[string]any) *Builder {
	b.resp.Error.Details = d
	return b
}

func (b *Builder) WithFieldErrors(fe map[string][]string) *Builder {
	b.resp.Error.FieldErrors = fe
	return b
}

func (b *Builder) WithAPIVersion(v string) *Builder {
	b.resp.APIVersion = v
	return b
}

func (b *Builder) WithMigration(m *MigrationInfo) *Builder {
	b.resp.MigrationInfo = m
	return b
}

func (b *Builder) Build() Response { return b.resp }

// ToResponse converts any error into the wire envelope plus the HTTP
// status it should be served with.
func ToResponse(err error, apiVersion string) (Response, int) {
	status := StatusCode(err)
	code := "INTERNAL_ERROR"
	var fieldErrors map[string][]string

	var ae Error
	if errors.As(err, &ae) {
		code = ae.Code()
	}
	var re *RequestError
	if errors.As(err, &re) {
		fieldErrors = re.FieldErrors
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		// never leak internal detail to the client
		message = "an internal error occurred"
	}

	return Response{
		Error: ErrorInfo{
			Code:        code,
			Message:     message,
			FieldErrors: fieldErrors,
		},
		APIVersion: apiVersion,
	}, status
}
