package query

// Statement is a fully compiled SQL statement ready for execution:
// parameterized text with contiguous $1..$n placeholders and the ordered
// bind values. FieldMap tells the row-hydration layer which logical key each
// flat result column came from; it is nil for INSERT/UPDATE statements,
// whose RETURNING * shape mirrors the table directly.
type Statement struct {
	Text     string
	Params   []any
	FieldMap map[string]string
}
