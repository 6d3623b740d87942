package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexbotov/pokepay-go/internal/output"
	"github.com/alexbotov/pokepay-go/pkg/pokepay"
)

func newEchoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "echo [message]",
		Short: "Send a message to the echo endpoint",
		Long:  "Send a message to the echo endpoint to check credentials and connectivity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := "hello"
			if len(args) == 1 {
				message = args[0]
			}
			return a.send(cmd, func(c *pokepay.Client) (*pokepay.Response, error) {
				return c.Echo(cmd.Context(), message)
			}, false)
		},
	}
}

func newCallCmd(a *app) *cobra.Command {
	var data string
	var full bool

	cmd := &cobra.Command{
		Use:   "call <operation> [key=value...]",
		Short: "Call a named partner API operation",
		Long: `Call a named partner API operation.

Parameters are key=value pairs. Values that parse as JSON (numbers,
booleans, null, arrays, objects) are sent as such; anything else is a
string. Quote a value to force a string, e.g. code='"007"'.
--data supplies a JSON object that key=value pairs override.

Run "pokepay operations" for the list of operations.`,
		Example: `  pokepay call GetShop shop_id=8b9ef3f5-...
  pokepay call ListTransactionsV2 per_page=10 start=2024-01-01T00:00:00+09:00`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(data, args[1:])
			if err != nil {
				return err
			}
			req, err := pokepay.NewRequest(args[0], params)
			if err != nil {
				return err
			}
			return a.send(cmd, func(c *pokepay.Client) (*pokepay.Response, error) {
				return c.Send(cmd.Context(), req)
			}, full)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "JSON object of parameters")
	cmd.Flags().BoolVar(&full, "full", false, "print the whole reply instead of the projected fields")
	return cmd
}

func newRequestCmd(a *app) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "request <METHOD> <path> [key=value...]",
		Short: "Send an envelope to an arbitrary path",
		Long:  "Send an envelope to a path that has no named operation. The whole reply is printed.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(data, args[2:])
			if err != nil {
				return err
			}
			path := args[1]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			req, err := pokepay.NewRawRequest(pokepay.Method(strings.ToUpper(args[0])), path, params, nil)
			if err != nil {
				return err
			}
			return a.send(cmd, func(c *pokepay.Client) (*pokepay.Response, error) {
				return c.Send(cmd.Context(), req)
			}, true)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "JSON object of parameters")
	return cmd
}

func newOperationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the named partner API operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type view struct {
				Name     string   `json:"name" yaml:"name"`
				Method   string   `json:"method" yaml:"method"`
				Path     string   `json:"path" yaml:"path"`
				Required []string `json:"required,omitempty" yaml:"required,omitempty"`
				Shape    string   `json:"shape" yaml:"shape"`
			}

			ops := pokepay.Operations()
			views := make([]view, 0, len(ops))
			for _, op := range ops {
				v := view{Name: op.Name, Method: string(op.Method), Path: op.PathTemplate, Required: op.Required}
				if op.Shape != nil {
					v.Shape = op.Shape.Name
				}
				views = append(views, v)
			}

			return output.Render(a.outputFormat, views, func() *output.Table {
				table := output.NewTable([]string{"Operation", "Method", "Path", "Required", "Shape"})
				for _, v := range views {
					table.AddRow([]string{v.Name, v.Method, v.Path, strings.Join(v.Required, ","), v.Shape})
				}
				return table
			})
		},
	}
}

// send runs call with a client from the active profile and prints the
// result. Non-2xx results are printed and then returned as errors.
func (a *app) send(cmd *cobra.Command, call func(*pokepay.Client) (*pokepay.Response, error), full bool) error {
	client, cleanup, err := a.newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := call(client)
	if err != nil {
		var shapeErr *pokepay.ShapeError
		if errors.As(err, &shapeErr) && resp != nil {
			output.Warn("%v", err)
			if renderErr := a.render(resp.Data); renderErr != nil {
				return renderErr
			}
		}
		return err
	}

	if !resp.Decoded {
		output.Warn("%s returned HTTP %d", resp.Operation, resp.StatusCode)
		if err := a.render(rawBody(resp.Body)); err != nil {
			return err
		}
		return resp.Err()
	}

	if full || resp.Fields == nil {
		return a.render(resp.Data)
	}
	return a.render(resp.Fields)
}

func (a *app) render(v any) error {
	m, isMap := v.(map[string]any)
	if !isMap {
		return output.Render(a.outputFormat, v, nil)
	}
	return output.Render(a.outputFormat, m, func() *output.Table {
		return fieldTable(m)
	})
}

// fieldTable lists a reply object as sorted key/value rows
func fieldTable(m map[string]any) *output.Table {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := output.NewTable([]string{"Field", "Value"})
	for _, k := range keys {
		table.AddRow([]string{k, cell(m[k])})
	}
	return table
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// rawBody decodes an error body as JSON when it is JSON, otherwise keeps it
// as text
func rawBody(body []byte) any {
	var v any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return string(body)
	}
	return v
}

// parseParams merges a JSON object with key=value arguments
func parseParams(data string, args []string) (pokepay.Params, error) {
	params := pokepay.Params{}
	if data != "" {
		dec := json.NewDecoder(strings.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&params); err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
	}

	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (want key=value)", arg)
		}
		params[key] = parseValue(raw)
	}
	return params, nil
}

func parseValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}
