package schema

import (
	"fmt"

	"qachart/domain/report"
)

// Built-in defaults for the supported report vendors. A persisted template
// of the same name always shadows these.

func limit(v float64) *float64 { return &v }

type yDef struct {
	column   string
	ucl, lcl *float64
}

// mustTemplate builds a compiled-in template from symbolic column names.
// Any mistake here is a programming error, caught at package init.
func mustTemplate(name string, columns, uid, criteria []string, date string, ys []yDef) *report.ParserTemplate {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	resolve := func(c string) int {
		i, ok := index[c]
		if !ok {
			panic(fmt.Sprintf("builtin template %s references unknown column %q", name, c))
		}
		return i
	}

	tpl := &report.ParserTemplate{Name: name, Columns: columns, Date: resolve(date)}
	for _, c := range uid {
		tpl.Identity = append(tpl.Identity, resolve(c))
	}
	for _, c := range criteria {
		tpl.Criteria = append(tpl.Criteria, resolve(c))
	}
	for _, y := range ys {
		tpl.YCandidates = append(tpl.YCandidates, report.YCandidate{
			Name:     y.column,
			Column:   resolve(y.column),
			UCLLimit: y.ucl,
			LCLLimit: y.lcl,
		})
	}
	if err := tpl.Validate(); err != nil {
		panic(fmt.Sprintf("builtin template %s invalid: %v", name, err))
	}
	return tpl
}

var builtins = map[string]*report.ParserTemplate{
	"SNCPatient2020": mustTemplate("SNCPatient2020",
		[]string{
			"Patient Name", "Patient ID", "QA Date", "Plan Date", "Plan Name",
			"Energy", "Angle", "Dose Type", "Difference (%)", "Distance (mm)",
			"Threshold (%)", "Meas Uncertainty", "Use Global (%)", "Summary Type",
			"Total Points", "Passed", "Failed", "Pass Rate (%)",
			"report_file_creation", "report_file_path",
		},
		[]string{"Patient ID", "QA Date"},
		[]string{"Difference (%)", "Distance (mm)", "Threshold (%)"},
		"QA Date",
		[]yDef{
			{column: "Pass Rate (%)", ucl: limit(100)},
			{column: "Total Points"},
			{column: "Passed"},
			{column: "Failed", lcl: limit(0)},
		},
	),
	"SNCPatientCustom": mustTemplate("SNCPatientCustom",
		[]string{
			"Patient Name", "Patient ID", "QA Date", "Plan Date",
			"Difference (%)", "Distance (mm)", "Threshold (%)",
			"Total Points", "Passed", "Failed", "Pass Rate (%)",
			"report_file_creation", "report_file_path",
		},
		[]string{"Patient ID", "QA Date"},
		[]string{"Difference (%)", "Distance (mm)", "Threshold (%)"},
		"QA Date",
		[]yDef{
			{column: "Pass Rate (%)", ucl: limit(100)},
			{column: "Total Points"},
			{column: "Passed"},
			{column: "Failed", lcl: limit(0)},
		},
	),
	"Delta4": mustTemplate("Delta4",
		[]string{
			"Patient Name", "Patient ID", "Plan Name", "Plan Date", "Meas Date",
			"Radiation Dev", "Energy", "Daily Corr", "Norm Dose", "Dev", "DTA",
			"Gamma-Index", "Dose Dev", "Threshold",
			"Gamma Dose Criteria", "Gamma Dist Criteria",
			"report_file_creation", "report_file_path",
		},
		[]string{"Patient ID", "Meas Date"},
		[]string{"Gamma Dose Criteria", "Gamma Dist Criteria", "Threshold"},
		"Meas Date",
		[]yDef{
			{column: "Gamma-Index", ucl: limit(100)},
			{column: "DTA", ucl: limit(100)},
			{column: "Dev"},
			{column: "Dose Dev"},
		},
	),
	"VeriSoft": mustTemplate("VeriSoft",
		[]string{
			"Institution", "Patient Name", "Patient ID", "Comment", "Date",
			"Plan", "Dose Comparison", "Gamma Dist (mm)", "Gamma Dose (%)",
			"Threshold (%)", "Pass Rate (%)", "Passed Points", "Failed Points",
			"Checked Points", "report_file_creation", "report_file_path",
		},
		[]string{"Patient ID", "Date"},
		[]string{"Gamma Dose (%)", "Gamma Dist (mm)", "Threshold (%)"},
		"Date",
		[]yDef{
			{column: "Pass Rate (%)", ucl: limit(100)},
			{column: "Passed Points"},
			{column: "Failed Points", lcl: limit(0)},
			{column: "Checked Points"},
		},
	),
}

// BuiltinNames returns the built-in template names in stable order.
func BuiltinNames() []string {
	return []string{"Delta4", "SNCPatient2020", "SNCPatientCustom", "VeriSoft"}
}

// Builtin returns the named built-in template.
func Builtin(name string) (*report.ParserTemplate, bool) {
	tpl, ok := builtins[name]
	return tpl, ok
}
