package journal

import (
	"io"
	"os"
	"strings"
	"text/template"
	"time"
)

// OrgReport is everything rendered into one Org-mode run entry.
type OrgReport struct {
	Run   RunRecord
	Fills []FillRecord
	Notes []string
}

var orgFuncs = template.FuncMap{
	"join": strings.Join,
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"short": func(s string) string {
		if len(s) <= 10 {
			return s
		}
		return s[:10]
	},
}

var orgTemplate = template.Must(template.New("run").Funcs(orgFuncs).Parse(RunOrgTemplate))

// WriteOrg renders rep as an Org-mode entry with the summary in a
// PROPERTIES drawer for easy search.
func WriteOrg(w io.Writer, rep OrgReport) error {
	return orgTemplate.Execute(w, rep)
}

// WriteOrgFile writes the Org entry to path.
func WriteOrgFile(path string, rep OrgReport) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteOrg(fh, rep); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

const RunOrgTemplate = `* BACKTEST: Turtle {{join .Run.Instruments " "}}
:PROPERTIES:
:RUN_ID:      {{if .Run.RunID}}{{.Run.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    turtle
:SIGNALS:     {{join .Run.Signals " "}}
:DATASET:     {{if .Run.Dataset}}{{.Run.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Run.Start.Format "2006-01-02"}}
:END_DATE:    {{.Run.End.Format "2006-01-02"}}
:DAYS:        {{.Run.Days}}
:START_BAL:   {{printf "%.2f" .Run.StartBalance}}
:END_BAL:     {{printf "%.2f" .Run.EndBalance}}
:NET_PNL:     {{printf "%.2f" .Run.NetPnL}}
:RETURN_PCT:  {{printf "%.2f" .Run.TotalReturn}}
:ANNUAL_PCT:  {{printf "%.2f" .Run.AnnualReturn}}
:MAX_DD:      {{printf "%.2f" .Run.MaxDrawdown}}
:MAX_DD_PCT:  {{printf "%.2f" .Run.MaxDrawdownPct}}
:SHARPE:      {{printf "%.2f" .Run.Sharpe}}
:TRADES:      {{.Run.Trades}}
:CREATED:     [{{(orTime .Run.Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Net PnL:          *{{printf "%.2f" .Run.NetPnL}}*
- Commission:       *{{printf "%.2f" .Run.Commission}}*
- Slippage:         *{{printf "%.2f" .Run.Slippage}}*
- Return:           *{{printf "%.2f" .Run.TotalReturn}}%*
- Max Drawdown:     *{{printf "%.2f" .Run.MaxDrawdownPct}}%*
- Sharpe:           *{{printf "%.2f" .Run.Sharpe}}*
{{- if .Fills }}

** Fills
| Fill       | Time       | Instrument | Dir   | Offset | Price | Volume |
|------------+------------+------------+-------+--------+-------+--------|
{{- range .Fills }}
| {{short .FillID}} | {{.Time.Format "2006-01-02"}} | {{.Instrument}} | {{.Direction}} | {{.Offset}} | {{printf "%.2f" .Price}} | {{.Volume}} |
{{- end }}
{{- end }}
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
