// Package app provides the HTTP request/response context: the framework-
// native value type request handlers receive in place of a bare
// http.ResponseWriter/*http.Request pair.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"reflect"
	"sync"

	"github.com/nodalis/framework/req"
	"github.com/nodalis/framework/shared"
)

// Context represents an HTTP request context that provides access to
// request/response data, application services, and response generation
// utilities. It is the single value every Handler in the middleware
// pipeline and router receives.
type Context interface {
	GetSetter
	HttpProvider
	// App returns the application instance
	App() App
	// Next proceeds to the next middleware or handler in the chain
	Next() error
}

// GetSetter provides key-value storage for request-scoped data, the
// substrate State[T] extractors read from.
type GetSetter interface {
	Get(key string) any
	Set(key string, value any)
}

type RequestGetSetter interface {
	Request() *http.Request
	SetRequest(r *http.Request)
}

type HeaderGetSetter interface {
	Header(key string) string
	SetHeader(key string, value string) HeaderGetSetter
}

type RequestResponseResolver interface {
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
	SetResponseWriter(w http.ResponseWriter)
	RequestContext() context.Context
}

type RequestBodyValidator interface {
	Validate(body req.Validator) error
	Validator() *Validator
}

type InputDecoder interface {
	ParseInput(inputStruct any) error
	Input(inputStruct any) any
	DecodeJSON(v interface{}) error
}

type BodyParser interface {
	Body() (map[string][]string, error)
	Form() (map[string][]string, error)
	FormFile(key string) (multipart.File, *multipart.FileHeader, error)
	HasFile(key string) bool
	HasMultiPartRequest() bool
	HasFormDataRequest() bool
	HasFormURLEncodedRequest() bool
	HasJSONRequest() bool
}

type AcceptHeaderResolver interface {
	WantsJSON() bool
	WantsHTML() bool
	WantsXML() bool
}

type CookieGetSetter interface {
	Cookie(name string) *http.Cookie
	SetCookie(cookie *http.Cookie) CookieGetSetter
}

type ErrorProvider interface {
	Error(status int, err error) error
	ValidationError(err error) error
	InternalServerError(err error) error
	NotFound(err error) error
	BadRequest(err error) error
	Unauthorized(err error) error
	Forbidden(err error) error
	NoContent() error
}

type HttpResponder interface {
	JSON(body M) error
	Text(body []byte) error
	HTML(body []byte) error
	Redirect(url string) error
	Back() error
}

// PathQueryResolver gives the generic Query[T]/Path[T] extractors a
// string-valued source to parse, independent of the concrete Context
// implementation.
type PathQueryResolver interface {
	Param(key string) string
	Query(key string) string
}

type HttpProvider interface {
	InputDecoder
	BodyParser
	RequestBodyValidator
	HeaderGetSetter
	AcceptHeaderResolver
	RequestGetSetter
	RequestResponseResolver
	CookieGetSetter
	HttpResponder
	ErrorProvider
	PathQueryResolver
	InputResolver
	IsReading() bool
	Status() int
	SetStatus(code int) HttpResponder
	WriteStatus(code int) HttpResponder
	Referer() string
}

// ctx is the concrete Context realization: one instance per in-flight
// request, threaded through the middleware pipeline via Next().
type ctx struct {
	sync.Mutex
	app     App
	request *http.Request
	writer  http.ResponseWriter
	status  int

	handlers []Handler
	index    int
}

// NewContext builds a Context around a request/response pair and an
// explicit handler chain, for use outside the router (custom entrypoints,
// middleware unit tests) where constructing a full httpRouter dispatch
// isn't warranted.
func NewContext(a App, w http.ResponseWriter, r *http.Request, handlers ...Handler) Context {
	return &ctx{app: a, writer: w, request: r, handlers: handlers, index: -1}
}

func (c *ctx) Next() error {
	c.index++
	if c.index < len(c.handlers) {
		return c.handlers[c.index](c)
	}
	return nil
}

func (c *ctx) WriteStatus(code int) HttpResponder {
	c.SetStatus(code)
	c.writer.WriteHeader(code)
	return c
}

func (c *ctx) SetCookie(cookie *http.Cookie) CookieGetSetter {
	http.SetCookie(c.writer, cookie)
	return c
}

func (c *ctx) Cookie(name string) *http.Cookie {
	cookie, err := c.request.Cookie(name)
	if err != nil {
		return nil
	}
	return cookie
}

func (c *ctx) Validator() *Validator {
	return NewValidator(c.app)
}

func (c *ctx) Validate(body req.Validator) error {
	if reflect.ValueOf(body).Kind() != reflect.Ptr {
		return errors.New("body must be a pointer")
	}
	if err := c.ParseInput(body); err != nil {
		return err
	}
	return body.Validate()
}

func (c *ctx) ParseInput(inputStruct any) error {
	return req.ParseInput(c, inputStruct)
}

func (c *ctx) Input(inputStruct any) any {
	if err := req.In(c, inputStruct); err != nil {
		return nil
	}
	return c.Get(HTTPInKey)
}

func (c *ctx) SetInput(inputStruct any) error {
	return req.In(c, inputStruct)
}

func (c *ctx) GetInput() any {
	return c.Get(HTTPInKey)
}

func (c *ctx) App() App {
	return c.app
}

func (c *ctx) Request() *http.Request {
	return c.request
}

func (c *ctx) ResponseWriter() http.ResponseWriter {
	return c.writer
}

// SetResponseWriter swaps the context's writer, letting a middleware wrap
// it (e.g. to record the response for caching) for the rest of the chain.
func (c *ctx) SetResponseWriter(w http.ResponseWriter) {
	c.Lock()
	defer c.Unlock()
	c.writer = w
}

func (c *ctx) RequestContext() context.Context {
	return c.request.Context()
}

func (c *ctx) SetStatus(code int) HttpResponder {
	c.status = code
	return c
}

func (c *ctx) Status() int {
	return c.status
}

func (c *ctx) Header(key string) string {
	return c.request.Header.Get(key)
}

func (c *ctx) SetHeader(key string, value string) HeaderGetSetter {
	c.writer.Header().Add(key, value)
	return c
}

func (c *ctx) WantsJSON() bool {
	return req.WantsJSON(c.request)
}

func (c *ctx) WantsHTML() bool {
	return req.WantsHTML(c.request)
}

func (c *ctx) WantsXML() bool {
	return req.WantsXML(c.request)
}

func (c *ctx) JSON(body M) error {
	response, err := json.Marshal(body)
	if err != nil {
		return err
	}
	c.writer.Header().Set("content-type", "application/json")
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.writer.WriteHeader(c.status)
	_, err = c.writer.Write(response)
	return err
}

func (c *ctx) Text(body []byte) error {
	c.writer.Header().Set("content-type", "text/plain")
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.writer.WriteHeader(c.status)
	_, err := c.writer.Write(body)
	return err
}

func (c *ctx) HTML(body []byte) error {
	c.writer.Header().Set("content-type", "text/html")
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.writer.WriteHeader(c.status)
	_, err := c.writer.Write(body)
	return err
}

func (c *ctx) Redirect(url string) error {
	c.writer.Header().Set("Location", url)
	if c.status == 0 {
		c.status = http.StatusFound
	}
	c.WriteStatus(c.status)
	return nil
}

func (c *ctx) Back() error {
	return c.Redirect(c.Referer())
}

func (c *ctx) Referer() string {
	return c.request.Referer()
}

func (c *ctx) HasMultiPartRequest() bool {
	return req.HasMultiPart(c.request)
}

func (c *ctx) HasFormDataRequest() bool {
	return req.HasFormData(c.request)
}

func (c *ctx) HasFormURLEncodedRequest() bool {
	return req.HasFormUrlEncoded(c.request)
}

func (c *ctx) HasJSONRequest() bool {
	return req.HasJSON(c.request)
}

func (c *ctx) IsReading() bool {
	return c.request.Method == http.MethodGet || c.request.Method == http.MethodHead || c.request.Method == http.MethodOptions
}

func (c *ctx) Param(key string) string {
	return c.Request().PathValue(key)
}

func (c *ctx) Query(key string) string {
	return c.request.URL.Query().Get(key)
}

func (c *ctx) Form() (map[string][]string, error) {
	if c.request.Form != nil {
		return c.request.Form, nil
	}

	var err error
	if c.HasMultiPartRequest() {
		err = c.request.ParseMultipartForm(32 << 20)
	}
	if c.HasFormURLEncodedRequest() {
		err = c.request.ParseForm()
	}
	if err != nil {
		return nil, err
	}
	return c.request.Form, nil
}

func (c *ctx) Body() (map[string][]string, error) {
	if c.request.Form != nil {
		return c.request.Form, nil
	}
	if err := c.request.ParseForm(); err != nil {
		return nil, err
	}
	return c.request.Form, nil
}

func (c *ctx) FormFile(key string) (multipart.File, *multipart.FileHeader, error) {
	if file, _, err := c.request.FormFile(key); file != nil && err == nil {
		return c.request.FormFile(key)
	}
	if err := c.request.ParseMultipartForm(32 << 20); err != nil {
		return nil, nil, err
	}
	return c.request.FormFile(key)
}

func (c *ctx) HasFile(key string) bool {
	_, _, err := c.request.FormFile(key)
	return err == nil
}

func (c *ctx) SetRequest(r *http.Request) {
	c.Lock()
	defer c.Unlock()
	c.request = r
}

func (c *ctx) Set(key string, value interface{}) {
	c.Lock()
	defer c.Unlock()
	c.request = c.request.WithContext(context.WithValue(c.request.Context(), key, value))
}

func (c *ctx) Get(key string) any {
	c.Lock()
	defer c.Unlock()
	return c.request.Context().Value(key)
}

func (c *ctx) Error(status int, err error) error {
	if c.WantsJSON() {
		return c.SetStatus(status).JSON(M{"message": err.Error()})
	}
	c.writer.WriteHeader(status)
	if _, e := c.writer.Write([]byte(err.Error())); e != nil {
		return err
	}
	return nil
}

func (c *ctx) ValidationError(err error) error {
	var fieldErrs shared.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return c.Error(http.StatusInternalServerError, err)
	}
	return c.SetStatus(http.StatusUnprocessableEntity).JSON(M{"errors": fieldErrs})
}

func (c *ctx) InternalServerError(err error) error {
	return c.Error(http.StatusInternalServerError, err)
}

func (c *ctx) NotFound(err error) error {
	return c.Error(http.StatusNotFound, err)
}

func (c *ctx) BadRequest(err error) error {
	return c.Error(http.StatusBadRequest, err)
}

func (c *ctx) Unauthorized(err error) error {
	return c.Error(http.StatusUnauthorized, err)
}

func (c *ctx) Forbidden(err error) error {
	return c.Error(http.StatusForbidden, err)
}

func (c *ctx) NoContent() error {
	c.writer.WriteHeader(http.StatusNoContent)
	return nil
}

func (c *ctx) DecodeJSON(v interface{}) error {
	return req.DecodeJSONBody(c.writer, c.request, v)
}
