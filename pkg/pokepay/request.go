package pokepay

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
)

// Params are the named arguments of one operation. Path parameters are
// substituted into the path template; the rest become body fields.
type Params map[string]any

// Request describes one partner call
type Request struct {
	Operation string
	Path      string
	Method    Method
	Body      map[string]any
	Shape     *Shape
}

// Operation is one row of the declarative operation table
type Operation struct {
	Name         string
	PathTemplate string
	Method       Method
	// Required lists body params that must be present; path params are
	// always required
	Required []string
	Shape    *Shape
}

var pathParamPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// PathParams returns the placeholder names in the path template, in order
func (op Operation) PathParams() []string {
	var names []string
	for _, m := range pathParamPattern.FindAllStringSubmatch(op.PathTemplate, -1) {
		names = append(names, m[1])
	}
	return names
}

// Build expands the path template and collects the body fields
func (op Operation) Build(params Params) (*Request, error) {
	if !op.Method.Valid() {
		return nil, &ParamError{Operation: op.Name, Reason: fmt.Sprintf("unsupported method %q", op.Method)}
	}

	body := make(map[string]any, len(params))
	for k, v := range params {
		body[k] = v
	}

	var missing string
	path := pathParamPattern.ReplaceAllStringFunc(op.PathTemplate, func(placeholder string) string {
		name := placeholder[1 : len(placeholder)-1]
		v, ok := body[name]
		if !ok || v == nil {
			if missing == "" {
				missing = name
			}
			return placeholder
		}
		delete(body, name)
		return url.PathEscape(fmt.Sprint(v))
	})
	if missing != "" {
		return nil, &ParamError{Operation: op.Name, Param: missing, Reason: "is required"}
	}

	for _, name := range op.Required {
		if v, ok := body[name]; !ok || v == nil {
			return nil, &ParamError{Operation: op.Name, Param: name, Reason: "is required"}
		}
	}

	return &Request{
		Operation: op.Name,
		Path:      path,
		Method:    op.Method,
		Body:      body,
		Shape:     op.Shape,
	}, nil
}

// NewRequest builds a request for a named operation from the table
func NewRequest(name string, params Params) (*Request, error) {
	op, ok := LookupOperation(name)
	if !ok {
		return nil, &ParamError{Operation: name, Reason: "unknown operation", Err: ErrUnknownOperation}
	}
	return op.Build(params)
}

// NewRawRequest builds a request for an endpoint outside the table. A nil
// shape passes every reply field through.
func NewRawRequest(method Method, path string, body map[string]any, shape *Shape) (*Request, error) {
	if !method.Valid() {
		return nil, &ParamError{Operation: path, Reason: fmt.Sprintf("unsupported method %q", method)}
	}
	if body == nil {
		body = map[string]any{}
	}
	return &Request{
		Operation: string(method) + " " + path,
		Path:      path,
		Method:    method,
		Body:      body,
		Shape:     shape,
	}, nil
}

// LookupOperation finds an operation by name
func LookupOperation(name string) (Operation, bool) {
	op, ok := operationTable[name]
	return op, ok
}

// Operations returns the operation table sorted by name
func Operations() []Operation {
	ops := make([]Operation, 0, len(operationTable))
	for _, op := range operationTable {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Name < ops[j].Name
	})
	return ops
}
