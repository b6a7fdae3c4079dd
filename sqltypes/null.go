package sqltypes

// DBNull is the type of Null.
type DBNull struct{}

func (DBNull) String() string { return "NULL" }

// Null is the database-null sentinel every local API returns for a null value.
// It never crosses a wire or a gob stream: ToWire substitutes the nil marker
// for it, and FromWire substitutes it back.
var Null = DBNull{}

func IsNull(v interface{}) bool {
	_, ok := v.(DBNull)
	return ok
}

func ToWire(v interface{}) interface{} {
	if IsNull(v) {
		return nil
	}
	return v
}

func FromWire(v interface{}) interface{} {
	if v == nil {
		return Null
	}
	return v
}

// ValuesToWire returns a copy of vs with every Null replaced by nil.
func ValuesToWire(vs []interface{}) []interface{} {
	if vs == nil {
		return nil
	}
	ret := make([]interface{}, len(vs))
	for i, v := range vs {
		ret[i] = ToWire(v)
	}
	return ret
}

// ValuesFromWire replaces nil with Null in place and returns vs.
func ValuesFromWire(vs []interface{}) []interface{} {
	for i, v := range vs {
		vs[i] = FromWire(v)
	}
	return vs
}
