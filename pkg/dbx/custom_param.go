package dbx

// CustomParam is a typed collection parameter bound into a stored function call.
// The set of implementations is closed: IntListParam, StringListParam and ClobListParam.
//
// Every variant carries:
//   - the values to bind,
//   - the name of the stored collection type expected by the routine (e.g. "int_list"),
//   - the binding key, i.e. the name of the routine parameter receiving the collection,
//   - an optional schema qualifying the collection type.
type CustomParam interface {
	BindingKey() string
	CollectionTypeName() string
	SchemaName() string
	CollectionValues() any
	customParam()
}

// IntListParam binds a list of integers to a collection of integer elements.
type IntListParam struct {
	Key      string
	TypeName string
	Schema   string
	Values   []int64
}

// StringListParam binds a list of strings to a collection of varchar elements.
type StringListParam struct {
	Key      string
	TypeName string
	Schema   string
	Values   []string
}

// ClobListParam binds a list of large texts to a collection of clob/text elements.
type ClobListParam struct {
	Key      string
	TypeName string
	Schema   string
	Values   []string
}

func (p IntListParam) BindingKey() string         { return p.Key }
func (p IntListParam) CollectionTypeName() string { return p.TypeName }
func (p IntListParam) SchemaName() string         { return p.Schema }
func (p IntListParam) CollectionValues() any      { return p.Values }
func (IntListParam) customParam()                 {}

func (p StringListParam) BindingKey() string         { return p.Key }
func (p StringListParam) CollectionTypeName() string { return p.TypeName }
func (p StringListParam) SchemaName() string         { return p.Schema }
func (p StringListParam) CollectionValues() any      { return p.Values }
func (StringListParam) customParam()                 {}

func (p ClobListParam) BindingKey() string         { return p.Key }
func (p ClobListParam) CollectionTypeName() string { return p.TypeName }
func (p ClobListParam) SchemaName() string         { return p.Schema }
func (p ClobListParam) CollectionValues() any      { return p.Values }
func (ClobListParam) customParam()                 {}

// QualifiedTypeName returns the collection type name qualified by its schema, when one is set.
func QualifiedTypeName(p CustomParam) string {
	if p.SchemaName() == "" {
		return p.CollectionTypeName()
	}

	return p.SchemaName() + "." + p.CollectionTypeName()
}
