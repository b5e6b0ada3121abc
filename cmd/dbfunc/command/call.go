package command

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/repository"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

var (
	callSchema     string
	callReturnType string
	callParams     []string
	callIntLists   []string
)

var callCmd = &cobra.Command{
	Use:   "call <function>",
	Short: "Execute one stored function and print its result as JSON",
	Example: `  dbfunc call fn_get_line --schema sales --return cursor --param p_name=A
  dbfunc call fn_get_lines --schema sales --return cursor --int-list p_ids=sales.int_list:1,2`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVarP(&callSchema, "schema", "s", "", "schema of the function")
	callCmd.Flags().StringVarP(&callReturnType, "return", "r", "text", "return type: text, cursor, number, integer, decimal")
	callCmd.Flags().StringArrayVarP(&callParams, "param", "p", nil, "named parameter, key=value")
	callCmd.Flags().StringArrayVar(&callIntLists, "int-list", nil, "integer collection parameter, key=[schema.]type:v1,v2")
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	call, err := buildCall(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	provider := newProvider(ctx, cfg.Database)
	defer provider.Close(ctx, false)

	result, err := repository.New(provider).Exec(ctx, call)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !result.OK() {
		return fmt.Errorf("function %s failed", call.QualifiedName())
	}

	return nil
}

func buildCall(function string) (repository.Call, error) {
	rt, err := dbx.ParseReturnType(callReturnType)
	if err != nil {
		return repository.Call{}, err
	}

	call := repository.Call{
		Function:   function,
		Schema:     callSchema,
		ReturnType: rt,
		Params:     make(map[string]any, len(callParams)),
	}

	for _, p := range callParams {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return repository.Call{}, fmt.Errorf("invalid --param %q, expected key=value", p)
		}

		call.Params[key] = parseParamValue(value)
	}

	for _, l := range callIntLists {
		param, err := parseIntList(l)
		if err != nil {
			return repository.Call{}, err
		}

		call.CustomParams = append(call.CustomParams, param)
	}

	return call, nil
}

// parseParamValue - integers and decimals are bound as numbers, everything else as text.
func parseParamValue(value string) any {
	if i, err := cast.ToInt64E(value); err == nil && !strings.Contains(value, ".") {
		return i
	}

	if f, err := cast.ToFloat64E(value); err == nil {
		return f
	}

	return value
}

// parseIntList parses key=[schema.]type:v1,v2.
func parseIntList(flag string) (dbx.IntListParam, error) {
	key, rest, ok := strings.Cut(flag, "=")
	if !ok || key == "" {
		return dbx.IntListParam{}, fmt.Errorf("invalid --int-list %q, expected key=type:v1,v2", flag)
	}

	typeName, list, _ := strings.Cut(rest, ":")

	param := dbx.IntListParam{Key: key, TypeName: typeName}
	if schema, name, qualified := strings.Cut(typeName, "."); qualified {
		param.Schema, param.TypeName = schema, name
	}

	if param.TypeName == "" {
		return dbx.IntListParam{}, fmt.Errorf("invalid --int-list %q, missing collection type", flag)
	}

	for _, v := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' }) {
		i, err := cast.ToInt64E(strings.TrimSpace(v))
		if err != nil {
			return dbx.IntListParam{}, fmt.Errorf("invalid --int-list %q: %w", flag, err)
		}

		param.Values = append(param.Values, i)
	}

	return param, nil
}
