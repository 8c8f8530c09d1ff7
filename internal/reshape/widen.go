// Package reshape converts narrow per-measurement tables into wide
// one-row-per-observation form keyed by identity key and criteria signature.
package reshape

import (
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"qachart/adapters/tabular"
	"qachart/domain/core"
	"qachart/domain/report"
)

// Spec configures one widen pass.
type Spec struct {
	// IdentityColumns joined with the key separator form the identity key.
	IdentityColumns []string
	// CriteriaColumns joined form the criteria signature.
	CriteriaColumns []string
	// YColumn is the dependent variable being charted.
	YColumn string
	// DateColumn orders observations; empty disables date grouping and sort.
	DateColumn string
	// CreationDateColumn is an optional per-measurement timestamp used to
	// break first/last ties and as a sort-order backup when DateColumn
	// fails to parse. It never appears in the output.
	CreationDateColumn string
	// Policy resolves multiple values colliding on one
	// (identity, date, criteria) triple.
	Policy report.DuplicatePolicy
	// Coerce converts raw y cells to floats; nil uses the default coercer.
	Coerce report.Coercer
	// SortByDate sorts output rows ascending by parsed date.
	SortByDate bool
}

// Output is wide-format data ready for matrix assembly: one row per
// (identity, date) pair observed, one column per distinct criteria
// signature, NaN for cells with no observation.
type Output struct {
	UIDs     []string
	Dates    []string
	VarNames []string
	Values   [][]float64
}

type obsKey struct {
	uid  string
	date string
}

// cellAcc accumulates every y value observed for one
// (identity, date, criteria) triple, with creation stamps when available.
type cellAcc struct {
	raw      []string
	stamps   []float64
	stampsOK bool
}

// Widen reshapes a narrow table as configured. The policy is validated
// before any row processing; per-cell coercion and per-merge failures are
// recovered locally as NaN with a logged warning.
func Widen(t *tabular.RawTable, spec Spec) (*Output, error) {
	if _, err := report.ParsePolicy(string(spec.Policy)); err != nil {
		return nil, err
	}
	coerce := spec.Coerce
	if coerce == nil {
		coerce = report.DefaultCoercer
	}

	cols, err := resolveColumns(t, spec)
	if err != nil {
		return nil, err
	}

	out := &Output{}
	if t.RowCount() == 0 {
		return out, nil
	}

	groups := make(map[obsKey]map[string]*cellAcc)
	order := make([]obsKey, 0)
	sortBackup := make(map[obsKey]string)

	for row := 0; row < t.RowCount(); row++ {
		uid := joinKey(cols.identity, row, false)
		sig := joinKey(cols.criteria, row, true)

		date := ""
		if cols.date != nil {
			date = cols.date[row]
		}

		key := obsKey{uid: uid, date: date}
		cells, seen := groups[key]
		if !seen {
			cells = make(map[string]*cellAcc)
			groups[key] = cells
			order = append(order, key)
		}

		acc, ok := cells[sig]
		if !ok {
			acc = &cellAcc{stampsOK: true}
			cells[sig] = acc
		}
		acc.raw = append(acc.raw, cols.y[row])

		if cols.creation != nil {
			stamp, ok := parseStamp(cols.creation[row])
			if !ok {
				acc.stampsOK = false
			}
			acc.stamps = append(acc.stamps, stamp)
			if _, have := sortBackup[key]; !have {
				sortBackup[key] = cols.creation[row]
			}
		}
	}

	out.VarNames = variableUniverse(groups)

	for _, key := range order {
		out.UIDs = append(out.UIDs, key.uid)
		out.Dates = append(out.Dates, key.date)

		values := make([]float64, len(out.VarNames))
		for i, sig := range out.VarNames {
			acc, ok := groups[key][sig]
			if !ok {
				values[i] = math.NaN()
				continue
			}
			values[i] = resolve(acc, spec.Policy, coerce, key, sig)
		}
		out.Values = append(out.Values, values)
	}

	if spec.DateColumn != "" && spec.SortByDate {
		sortByDate(out, sortBackup)
	}

	return out, nil
}

type resolvedColumns struct {
	identity [][]string
	criteria [][]string
	y        []string
	date     []string
	creation []string
}

func resolveColumns(t *tabular.RawTable, spec Spec) (*resolvedColumns, error) {
	out := &resolvedColumns{}
	for _, name := range spec.IdentityColumns {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		out.identity = append(out.identity, col)
	}
	for _, name := range spec.CriteriaColumns {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		out.criteria = append(out.criteria, col)
	}
	var err error
	if out.y, err = t.Column(spec.YColumn); err != nil {
		return nil, err
	}
	if spec.DateColumn != "" {
		if out.date, err = t.Column(spec.DateColumn); err != nil {
			return nil, err
		}
	}
	if spec.CreationDateColumn != "" && t.HasColumn(spec.CreationDateColumn) {
		if out.creation, err = t.Column(spec.CreationDateColumn); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// joinKey builds a composite key from one row. Criteria parts are
// numerically normalized so "5" and "5.0" collapse to one signature.
func joinKey(cols [][]string, row int, normalize bool) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		if normalize {
			parts[i] = report.NormalizeNumeric(col[row])
		} else {
			parts[i] = col[row]
		}
	}
	return strings.Join(parts, report.KeySeparator)
}

// variableUniverse collects every distinct criteria signature observed
// anywhere, sorted lexicographically for determinism.
func variableUniverse(groups map[obsKey]map[string]*cellAcc) []string {
	seen := make(map[string]bool)
	var names []string
	for _, cells := range groups {
		for sig := range cells {
			if !seen[sig] {
				seen[sig] = true
				names = append(names, sig)
			}
		}
	}
	sort.Strings(names)
	return names
}

// resolve collapses one accumulated cell to a single float under the
// duplicate policy.
func resolve(acc *cellAcc, policy report.DuplicatePolicy, coerce report.Coercer, key obsKey, sig string) float64 {
	vals := make([]float64, len(acc.raw))
	for i, raw := range acc.raw {
		v, ok := coerce(raw)
		if !ok {
			log.Printf("[Reshaper] cannot coerce %q for uid=%q criteria=%q, using NaN", raw, key.uid, sig)
			vals[i] = math.NaN()
			continue
		}
		vals[i] = v
	}

	if len(vals) == 1 {
		return vals[0]
	}

	if policy.IsPositional() {
		// Creation stamps pick the value; without them array order is the
		// documented tie-break, dependent on upstream row order.
		if acc.stampsOK && len(acc.stamps) == len(vals) {
			if policy == report.PolicyFirst {
				return vals[argMin(acc.stamps)]
			}
			return vals[argMax(acc.stamps)]
		}
		if policy == report.PolicyFirst {
			return vals[0]
		}
		return vals[len(vals)-1]
	}

	v := policy.Reduce(vals)
	if math.IsNaN(v) {
		log.Printf("[Reshaper] policy %q failed for uid=%q criteria=%q, using NaN", policy, key.uid, sig)
	}
	return v
}

// parseStamp interprets a creation cell as a sortable number: a float as-is,
// otherwise a parsed date's Unix time.
func parseStamp(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if t, ok := core.ParseDate(s); ok {
		return float64(t.UnixNano()) / 1e9, true
	}
	return 0, false
}

// sortByDate orders rows ascending by parsed primary date, falling back to
// the creation backup per row. Rows whose dates cannot be parsed at all
// keep their relative order ahead of parsed rows.
func sortByDate(out *Output, backup map[obsKey]string) {
	keys := make([]time.Time, len(out.Dates))
	for i, raw := range out.Dates {
		if t, ok := core.ParseDate(raw); ok {
			keys[i] = t
			continue
		}
		if alt, have := backup[obsKey{uid: out.UIDs[i], date: raw}]; have {
			if t, ok := core.ParseDate(alt); ok {
				keys[i] = t
				continue
			}
		}
		log.Printf("[Reshaper] unparseable date %q for uid=%q, sorting first", raw, out.UIDs[i])
	}

	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]].Before(keys[idx[b]])
	})

	uids := make([]string, len(idx))
	dates := make([]string, len(idx))
	values := make([][]float64, len(idx))
	for i, j := range idx {
		uids[i] = out.UIDs[j]
		dates[i] = out.Dates[j]
		values[i] = out.Values[j]
	}
	out.UIDs, out.Dates, out.Values = uids, dates, values
}

func argMin(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] < v[best] {
			best = i
		}
	}
	return best
}

func argMax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
