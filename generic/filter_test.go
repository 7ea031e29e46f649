package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hrstore/generic"
)

type row struct {
	Name   string
	Team   string
	Joined generic.TimePoint
	Pay    decimal.Decimal
}

func name(r row) string              { return r.Name }
func team(r row) string              { return r.Team }
func joined(r row) generic.TimePoint { return r.Joined }
func pay(r row) decimal.Decimal      { return r.Pay }

func keep(rows []row, f ...generic.Filter[row]) []string {
	var out []string
	for _, r := range rows {
		if generic.Match(r, f...) {
			out = append(out, r.Name)
		}
	}
	return out
}

var rows = []row{
	{Name: "Zoë Adams", Team: "HR", Joined: generic.NewTimePoint(2024, time.June, 1), Pay: decimal.NewFromInt(50000)},
	{Name: "Bob Stone", Team: "IT", Joined: generic.NewTimePoint(2025, time.January, 10), Pay: decimal.NewFromInt(72000)},
	{Name: "ÉMILE Roux", Team: "IT", Joined: generic.NewTimePoint(2025, time.March, 3), Pay: decimal.NewFromInt(64000)},
}

func TestFilters(t *testing.T) {
	lo := decimal.NewFromInt(60000)
	hi := decimal.NewFromInt(70000)

	tests := []struct {
		name    string
		filters []generic.Filter[row]
		want    []string
	}{
		{"no filters", nil, []string{"Zoë Adams", "Bob Stone", "ÉMILE Roux"}},
		{"nil filter matches all", []generic.Filter[row]{nil}, []string{"Zoë Adams", "Bob Stone", "ÉMILE Roux"}},
		{"equal", []generic.Filter[row]{generic.Equal(team, "IT")}, []string{"Bob Stone", "ÉMILE Roux"}},
		{"in", []generic.Filter[row]{generic.In(team, "HR", "Finance")}, []string{"Zoë Adams"}},
		{"search ignores case", []generic.Filter[row]{generic.Search("stone", name)}, []string{"Bob Stone"}},
		{"search folds non-ascii case", []generic.Filter[row]{generic.Search("émile", name)}, []string{"ÉMILE Roux"}},
		{"search any field", []generic.Filter[row]{generic.Search("hr", name, team)}, []string{"Zoë Adams"}},
		{"blank search matches all", []generic.Filter[row]{generic.Search("  ", name)}, []string{"Zoë Adams", "Bob Stone", "ÉMILE Roux"}},
		{"within inclusive", []generic.Filter[row]{generic.Within(joined, generic.Period{
			Start: generic.NewTimePoint(2025, time.January, 10),
			End:   generic.NewTimePoint(2025, time.March, 3),
		})}, []string{"Bob Stone", "ÉMILE Roux"}},
		{"within open end", []generic.Filter[row]{generic.Within(joined, generic.Period{
			Start: generic.NewTimePoint(2025, time.February, 1),
		})}, []string{"ÉMILE Roux"}},
		{"between", []generic.Filter[row]{generic.Between(pay, &lo, &hi)}, []string{"ÉMILE Roux"}},
		{"between lower only", []generic.Filter[row]{generic.Between(pay, &lo, nil)}, []string{"Bob Stone", "ÉMILE Roux"}},
		{"not", []generic.Filter[row]{generic.Not(generic.Equal(team, "IT"))}, []string{"Zoë Adams"}},
		{"any", []generic.Filter[row]{generic.Any(generic.Equal(team, "HR"), generic.Search("bob", name))}, []string{"Zoë Adams", "Bob Stone"}},
		{"and", []generic.Filter[row]{generic.Equal(team, "IT"), generic.Search("roux", name)}, []string{"ÉMILE Roux"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keep(rows, tt.filters...))
		})
	}
}

func TestFold_NormalizesComposition(t *testing.T) {
	// "e" + combining acute vs precomposed "É"
	assert.Equal(t, generic.Fold("e\u0301cole"), generic.Fold("ÉCOLE"))
	assert.Equal(t, "", generic.Fold(""))
}

// =============================================================================
// DATES
// =============================================================================

func TestDaysInclusive(t *testing.T) {
	tests := []struct {
		from, to generic.TimePoint
		want     int
	}{
		{generic.NewTimePoint(2025, 3, 10), generic.NewTimePoint(2025, 3, 10), 1},
		{generic.NewTimePoint(2025, 3, 10), generic.NewTimePoint(2025, 3, 14), 5},
		{generic.NewTimePoint(2024, 2, 28), generic.NewTimePoint(2024, 3, 1), 3},
		{generic.NewTimePoint(2025, 3, 14), generic.NewTimePoint(2025, 3, 10), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, generic.DaysInclusive(tt.from, tt.to), "%s..%s", tt.from, tt.to)
	}
}

func TestTimePoint_JSON(t *testing.T) {
	type doc struct {
		On  generic.TimePoint `json:"on"`
		Off generic.TimePoint `json:"off"`
	}

	out, err := json.Marshal(doc{On: generic.NewTimePoint(2025, time.July, 4)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"on": "2025-07-04", "off": null}`, string(out))

	var in doc
	require.NoError(t, json.Unmarshal([]byte(`{"on": "2025-07-04T15:30:00Z", "off": ""}`), &in))
	assert.True(t, in.On.Equal(generic.NewTimePoint(2025, time.July, 4)))
	assert.True(t, in.Off.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"on": "July 4th"}`), &in))
	assert.Error(t, json.Unmarshal([]byte(`{"on": 20250704}`), &in))
}

func TestPeriod(t *testing.T) {
	year := generic.CalendarYear(2025)
	assert.True(t, year.Contains(generic.NewTimePoint(2025, 1, 1)))
	assert.True(t, year.Contains(generic.NewTimePoint(2025, 12, 31)))
	assert.False(t, year.Contains(generic.NewTimePoint(2026, 1, 1)))
	assert.False(t, year.Contains(generic.TimePoint{}))
	assert.Equal(t, 365, year.Days())
	assert.True(t, year.Valid())
	assert.False(t, generic.Period{Start: generic.NewTimePoint(2025, 2, 1), End: generic.NewTimePoint(2025, 1, 1)}.Valid())
	assert.True(t, generic.Period{}.IsOpen())
}
