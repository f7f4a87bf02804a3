package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"lab_test"`, quoteIdent("lab_test"))
	assert.Equal(t, `"odd ""name"""`, quoteIdent(`odd "name"`))
}

func TestBuildSelect(t *testing.T) {
	query, set := buildSelect(TableSpec{
		Table:         "vitals",
		TextColumn:    "lab_test",
		Prefix:        "vtl",
		NumericColumn: "test_result_numeric_value",
		DayColumn:     "observation_day_number",
		TimeColumn:    "observation_time_of_day",
	})
	assert.Equal(t,
		`SELECT visit_id, "lab_test"::text, "test_result_numeric_value", `+
			`"observation_day_number", "observation_time_of_day"::text `+
			`FROM "vitals" ORDER BY visit_id LIMIT $1 OFFSET $2`,
		query)
	assert.True(t, set.hasNumeric)
	assert.True(t, set.hasDay)
	assert.True(t, set.hasTime)
}

func TestBuildSelect_TextOnly(t *testing.T) {
	query, set := buildSelect(TableSpec{Table: "diag", TextColumn: "icd_code", Prefix: "dx"})
	assert.Equal(t,
		`SELECT visit_id, "icd_code"::text FROM "diag" ORDER BY visit_id LIMIT $1 OFFSET $2`,
		query)
	assert.False(t, set.hasNumeric)
	assert.False(t, set.hasDay)
	assert.False(t, set.hasTime)
}
