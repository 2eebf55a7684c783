package mapper

import (
	"math"
	"strings"
	"testing"

	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// row builds an ingest.Row: strings become text cells, numbers number cells,
// nil an empty cell.
func row(values ...any) ingest.Row {
	r := make(ingest.Row, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case nil:
			r[i] = ingest.Cell{}
		case string:
			if strings.TrimSpace(v) == "" {
				r[i] = ingest.Cell{Kind: ingest.CellEmpty, Text: v}
			} else {
				r[i] = ingest.Cell{Kind: ingest.CellString, Text: v}
			}
		case int:
			r[i] = ingest.Cell{Kind: ingest.CellNumber, Text: decimal.NewFromInt(int64(v)).String(), Number: float64(v)}
		case float64:
			r[i] = ingest.Cell{Kind: ingest.CellNumber, Text: decimal.NewFromFloat(v).String(), Number: v}
		}
	}
	return r
}

func scenarioA() []ingest.Row {
	return []ingest.Row{
		row("Brakes", "Pad Replacement", "", 60, 150),
		row("Brakes", "Rotor Resurface", "", 90, 80),
		row("Engine", "Oil Change", "", 30, 45),
	}
}

// ============================================================================
// BatchLabel Tests
// ============================================================================

func TestBatchLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BrakeJobs.xlsx", "BrakeJobs"},
		{"BrakeJobs.XLS", "BrakeJobs"},
		{"brake jobs.csv", "brake jobs"},
		{"uploads/2024/Engine.xlsm", "Engine"},
		{`C:\Users\me\Tyres.tsv`, "Tyres"},
		{"Report.v2.csv", "Report.v2"},
		{"NoExtension", "NoExtension"},
		{"archive.zip", "archive.zip"},
		{"  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, BatchLabel(tt.in))
		})
	}
}

// ============================================================================
// Schema Tests
// ============================================================================

func TestResolveSchema(t *testing.T) {
	tests := []struct {
		name   string
		header ingest.Row
		want   Schema
	}{
		{"no header", nil, Schema{0, 1, 2, 3, 4}},
		{"canonical names", row("Subcategory", "Job", "Description", "Estimated Time", "Price"), Schema{0, 1, 2, 3, 4}},
		{"reordered aliases", row("Price", "Service Name", "Sub-Category", "Duration", "Notes"), Schema{2, 1, 4, 3, 0}},
		{"unknown headers fall back to position", row("A", "B", "C", "D", "E"), Schema{0, 1, 2, 3, 4}},
		{"partial header", row("Job", "Subcategory"), Schema{1, 0, 2, 3, 4}},
		{"missing column claimed by another", row("Price", "Job"), Schema{-1, 1, 2, 3, 0}},
		{"formula artifacts", row(`="Subcategory"`, " JOB ", "desc"), Schema{0, 1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSchema(tt.header))
		})
	}
}

// ============================================================================
// Number Tests
// ============================================================================

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		cell     ingest.Cell
		want     string
		wantWarn bool
	}{
		{"number cell", row(89.5)[0], "89.5", false},
		{"rounds to cents", row(10.456)[0], "10.46", false},
		{"dollar and thousands", row("$1,250.00")[0], "1250", false},
		{"euro", row("€ 45")[0], "45", false},
		{"pound", row("£12.5")[0], "12.5", false},
		{"formula artifact", row(`="75"`)[0], "75", false},
		{"blank", row("")[0], "0", true},
		{"missing", ingest.Cell{}, "0", true},
		{"text", row("call us")[0], "0", true},
		{"negative", row("-5")[0], "0", true},
		{"accounting negative", row("(12.00)")[0], "0", true},
		{"negative number cell", row(-3.0)[0], "0", true},
		{"scientific", row("1.5e3")[0], "1500", false},
		{"largest stored price", row("9999999999.99")[0], "9999999999.99", false},
		{"above stored range", row("99999999999")[0], "0", true},
		{"above stored range number cell", row(1e20)[0], "0", true},
		{"huge exponent", row("1e7000000")[0], "0", true},
		{"nan number cell", ingest.Cell{Kind: ingest.CellNumber, Text: "NaN", Number: math.NaN()}, "0", true},
		{"infinite number cell", ingest.Cell{Kind: ingest.CellNumber, Text: "Inf", Number: math.Inf(1)}, "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warn := parsePrice(tt.cell)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s, want %s", got, tt.want)
			assert.Equal(t, tt.wantWarn, warn != "", "warning %q", warn)
		})
	}
}

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		name     string
		cell     ingest.Cell
		want     int
		wantWarn bool
	}{
		{"integer", row(60)[0], 60, false},
		{"rounds", row(44.6)[0], 45, false},
		{"text integer", row("30")[0], 30, false},
		{"with unit", row("45 min")[0], 45, false},
		{"with long unit", row("90 Minutes")[0], 90, false},
		{"blank", row("")[0], 0, true},
		{"invalid", row("about an hour")[0], 0, true},
		{"negative", row(-10)[0], 0, true},
		{"largest stored time", row("2147483647")[0], math.MaxInt32, false},
		{"above int32", row("99999999999")[0], 0, true},
		{"exponent above int32", row("1e20")[0], 0, true},
		{"huge exponent", row("1e7000000")[0], 0, true},
		{"nan number cell", ingest.Cell{Kind: ingest.CellNumber, Text: "NaN", Number: math.NaN()}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warn := parseMinutes(tt.cell)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantWarn, warn != "", "warning %q", warn)
		})
	}
}

func TestCleanCell(t *testing.T) {
	tests := map[string]string{
		"  plain  ":  "plain",
		`="0123"`:    "0123",
		`=SUM`:       "SUM",
		`"quoted"`:   "quoted",
		`'single'`:   "single",
		`=""`:        "",
		"":           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanCell(in), "CleanCell(%q)", in)
	}
}

// ============================================================================
// Map Tests
// ============================================================================

func TestMap_ScenarioA(t *testing.T) {
	res, err := Map(Input{
		SectorName: "Automotive",
		BatchLabel: BatchLabel("BrakeJobs.xlsx"),
		Rows:       scenarioA(),
	})
	require.NoError(t, err)

	tree := res.Tree
	assert.Equal(t, "Automotive", tree.SectorName)
	require.Len(t, tree.Categories, 1)
	assert.Equal(t, "BrakeJobs", tree.Categories[0].Name)

	subs := tree.Categories[0].Subcategories
	require.Len(t, subs, 2)
	assert.Equal(t, "Brakes", subs[0].Name)
	assert.Equal(t, "Engine", subs[1].Name)

	require.Len(t, subs[0].Jobs, 2)
	assert.Equal(t, "Pad Replacement", subs[0].Jobs[0].Name)
	assert.Equal(t, "Rotor Resurface", subs[0].Jobs[1].Name)
	assert.Equal(t, 60, subs[0].Jobs[0].EstimatedTime)
	assert.True(t, decimal.NewFromInt(150).Equal(subs[0].Jobs[0].Price))
	assert.Equal(t, "", subs[0].Jobs[0].Description)

	cats, subCount, jobs := tree.Size()
	assert.Equal(t, 1, cats)
	assert.Equal(t, 2, subCount)
	assert.Equal(t, 3, jobs)

	assert.Equal(t, 3, res.Mapped)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, res.Failed)
}

func TestMap_LineNumbers(t *testing.T) {
	res, err := Map(Input{SectorName: "S", BatchLabel: "L", Rows: scenarioA(), FirstLine: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Outcomes[0].Line)
	assert.Equal(t, 4, res.Outcomes[2].Line)
	assert.Equal(t, 4, res.Tree.Categories[0].Subcategories[1].Jobs[0].Line)
}

func TestMap_BlankColumnASkipsRow(t *testing.T) {
	rows := []ingest.Row{
		row("Brakes", "Pads"),
		row(),
		row("", "orphan job", "", 10, 10),
		row("Brakes", "Rotors"),
	}

	res, err := Map(Input{SectorName: "S", BatchLabel: "L", Rows: rows})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Mapped)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, StatusSkipped, res.Outcomes[1].Status)
	assert.Equal(t, StatusSkipped, res.Outcomes[2].Status)
	require.Len(t, res.Tree.Categories[0].Subcategories, 1)
	assert.Len(t, res.Tree.Categories[0].Subcategories[0].Jobs, 2)
}

func TestMap_Placeholders(t *testing.T) {
	rows := []ingest.Row{
		row(`=""`, "Inspect"),
		row("Brakes", ""),
		row("Brakes", nil),
	}

	res, err := Map(Input{SectorName: "S", BatchLabel: "L", Rows: rows})
	require.NoError(t, err)

	subs := res.Tree.Categories[0].Subcategories
	require.Len(t, subs, 2)
	assert.Equal(t, "Subcategory 1", subs[0].Name)
	assert.NotEmpty(t, res.Outcomes[0].Warnings)

	require.Len(t, subs[1].Jobs, 2)
	assert.Equal(t, "Service 1", subs[1].Jobs[0].Name)
	assert.Equal(t, "Service 2", subs[1].Jobs[1].Name)
}

func TestMap_MergesBucketsByNormalizedName(t *testing.T) {
	rows := []ingest.Row{
		row("Brakes", "Pads"),
		row("Engine", "Oil"),
		row("  BRAKES ", "Rotors"),
	}

	res, err := Map(Input{SectorName: "S", BatchLabel: "L", Rows: rows})
	require.NoError(t, err)

	subs := res.Tree.Categories[0].Subcategories
	require.Len(t, subs, 2)
	assert.Equal(t, "Brakes", subs[0].Name, "first spelling wins")
	assert.Equal(t, []string{"Pads", "Rotors"}, []string{subs[0].Jobs[0].Name, subs[0].Jobs[1].Name})
}

func TestMap_NumericLenience(t *testing.T) {
	rows := []ingest.Row{
		row("Brakes", "Pads", "desc", "soon", "call"),
	}

	res, err := Map(Input{SectorName: "S", BatchLabel: "L", Rows: rows})
	require.NoError(t, err)

	require.Equal(t, 1, res.Mapped)
	job := res.Tree.Categories[0].Subcategories[0].Jobs[0]
	assert.Zero(t, job.EstimatedTime)
	assert.True(t, job.Price.IsZero())
	assert.Len(t, res.Outcomes[0].Warnings, 2)
	assert.Equal(t, 1, res.Warnings())
}

func TestMap_OutOfRangeNumbers(t *testing.T) {
	rows := []ingest.Row{
		row("Brakes", "Pads", "", "1e20", 1e20),
		row("Brakes", "Rotors", "", nil, nil),
	}
	rows[1][3] = ingest.Cell{Kind: ingest.CellNumber, Text: "NaN", Number: math.NaN()}
	rows[1][4] = ingest.Cell{Kind: ingest.CellString, Text: "1e7000000"}

	res, err := Map(Input{SectorName: "S", BatchLabel: "L", Rows: rows})
	require.NoError(t, err)

	require.Equal(t, 2, res.Mapped)
	for i, job := range res.Tree.Categories[0].Subcategories[0].Jobs {
		assert.Zero(t, job.EstimatedTime, job.Name)
		assert.True(t, job.Price.IsZero(), job.Name)
		assert.Len(t, res.Outcomes[i].Warnings, 2, job.Name)
	}
}

func TestMap_DuplicateJobInBucket(t *testing.T) {
	rows := []ingest.Row{
		row("Brakes", "Pads", "", 10, 10),
		row("Brakes", "pads", "", 20, 20),
	}

	res, err := Map(Input{SectorName: "S", BatchLabel: "L", Rows: rows, FirstLine: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Mapped)
	assert.Equal(t, 1, res.Failed)

	out := res.Outcomes[1]
	assert.Equal(t, StatusError, out.Status)
	assert.True(t, taxonomy.IsKind(out.Err, taxonomy.KindValidation))

	var te *taxonomy.Error
	require.ErrorAs(t, out.Err, &te)
	assert.Equal(t, 3, te.Line)
	assert.Equal(t, "Brakes", te.Parent)
}

func TestMap_NameTooLong(t *testing.T) {
	long := strings.Repeat("x", taxonomy.MaxNameLength+1)
	rows := []ingest.Row{
		row("Brakes", long),
		row(long, "Pads"),
		row("Brakes", "Pads"),
	}

	res, err := Map(Input{SectorName: "S", BatchLabel: "L", Rows: rows})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Mapped)
	assert.True(t, taxonomy.IsKind(res.Outcomes[0].Err, taxonomy.KindValidation))
}

func TestMap_RequiresSectorAndLabel(t *testing.T) {
	_, err := Map(Input{SectorName: " ", BatchLabel: "L"})
	assert.True(t, taxonomy.IsKind(err, taxonomy.KindValidation))

	_, err = Map(Input{SectorName: "S", BatchLabel: ""})
	assert.True(t, taxonomy.IsKind(err, taxonomy.KindValidation))
}

func TestMap_HeaderSchema(t *testing.T) {
	res, err := Map(Input{
		SectorName: "S",
		BatchLabel: "L",
		Header:     row("Job", "Price", "Subcategory"),
		Rows:       []ingest.Row{row("Pads", 99, "Brakes")},
	})
	require.NoError(t, err)

	job := res.Tree.Categories[0].Subcategories[0].Jobs[0]
	assert.Equal(t, "Brakes", res.Tree.Categories[0].Subcategories[0].Name)
	assert.Equal(t, "Pads", job.Name)
	assert.True(t, decimal.NewFromInt(99).Equal(job.Price))
}

func TestMap_EmptyInput(t *testing.T) {
	res, err := Map(Input{SectorName: "S", BatchLabel: "L"})
	require.NoError(t, err)
	assert.Empty(t, res.Tree.Categories)
}

// ============================================================================
// Tree Tests
// ============================================================================

func TestTree_Merge(t *testing.T) {
	a, err := Map(Input{SectorName: "S", BatchLabel: "Brakes", Rows: []ingest.Row{row("Pads", "Front")}})
	require.NoError(t, err)
	b, err := Map(Input{SectorName: "S", BatchLabel: "brakes", Rows: []ingest.Row{
		row("pads", "Rear"),
		row("Pads", "front"),
		row("Rotors", "Skim"),
	}})
	require.NoError(t, err)
	c, err := Map(Input{SectorName: "S", BatchLabel: "Engine", Rows: []ingest.Row{row("Oil", "Change")}})
	require.NoError(t, err)

	tree := a.Tree
	errs := tree.Merge(b.Tree)
	require.Len(t, errs, 1)
	assert.Equal(t, "front", errs[0].Name)
	assert.Empty(t, tree.Merge(c.Tree))

	cats, subs, jobs := tree.Size()
	assert.Equal(t, 2, cats)
	assert.Equal(t, 3, subs)
	assert.Equal(t, 4, jobs)
}
