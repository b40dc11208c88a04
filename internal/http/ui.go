package http

import (
	"bytes"
	"html/template"
	nethttp "net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	mysqlstore "resource-summary-ui/internal/connectors/mysql"
	"resource-summary-ui/internal/querysymbol"
)

type chartCard struct {
	Symbol querysymbol.Symbol
	Name   string
}

type summaryPage struct {
	Group       string
	Org         string
	Query       string
	StatsPeriod string
	Variant     string
	Charts      []chartCard
	ExportLimit string
	ExportOn    bool
}

var summaryPageTemplate = template.Must(template.New("summary").Parse(summaryPageHTML))

func dashboardHandler(flags featureStore, defaults summaryDefaults, logger *zap.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/" {
			nethttp.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		org := orgParam(r, defaults.Org)

		variant, err := resolveVariant(r.Context(), flags, org)
		if err != nil {
			logger.Warn("symbol variant lookup failed", zap.String("org", org), zap.Error(err))
		}

		names := mysqlstore.ChartNames()
		ids := make([]int, len(names))
		for i := range ids {
			ids[i] = i
		}
		symbols, _, err := querysymbol.RenderAll(ids, variant, querysymbol.Options{Size: "sm"})
		if err != nil {
			nethttp.Error(w, "failed to render page", nethttp.StatusInternalServerError)
			return
		}
		cards := make([]chartCard, 0, len(symbols))
		for _, sym := range symbols {
			cards = append(cards, chartCard{Symbol: sym, Name: names[sym.QueryID]})
		}

		// Without a feature store the export route allows everything, so the button shows.
		exportOn := true
		if flags != nil {
			exportOn, err = flags.Enabled(r.Context(), org, featureXLSXExport)
			if err != nil {
				logger.Warn("export capability lookup failed", zap.String("org", org), zap.Error(err))
				exportOn = false
			}
		}

		period := strings.TrimSpace(q.Get("statsPeriod"))
		if period == "" {
			period = defaults.Period.String()
		}

		page := summaryPage{
			Group:       strings.TrimSpace(q.Get("group")),
			Org:         org,
			Query:       q.Get("query"),
			StatsPeriod: period,
			Variant:     variant.String(),
			Charts:      cards,
			ExportLimit: humanize.Comma(int64(defaults.MaxRows)),
			ExportOn:    exportOn,
		}

		var buf bytes.Buffer
		if err := summaryPageTemplate.Execute(&buf, page); err != nil {
			logger.Error("render summary page", zap.Error(err))
			nethttp.Error(w, "failed to render page", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(nethttp.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func faviconHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	w.WriteHeader(nethttp.StatusNoContent)
}

const summaryPageHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Resource Summary{{with .Group}} · {{.}}{{end}}</title>
  <style>
    :root {
      --brand: #0e5d8f;
      --brand-2: #0971b2;
      --bg: #f7f7f7;
      --paper: #fff;
      --text: #333;
      --muted: #777;
      --line: #ddd;
      --head: #f0f0f0;
      --bad-bg: #f2dede;
      --bad-text: #a94442;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      background: var(--bg);
      color: var(--text);
      font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
      font-size: 14px;
    }
    header {
      background: linear-gradient(to right, var(--brand) 0, var(--brand-2) 100%);
      color: #fff;
      padding: 16px 0;
    }
    .container { margin: 0 auto; padding: 0 15px; max-width: 1480px; }
    .breadcrumb { font-size: 13px; color: rgba(255, 255, 255, 0.85); }
    .breadcrumb a { color: #fff; }
    h1 { margin: 4px 0 0; font-weight: 300; font-size: 22px; }
    .meta { color: var(--muted); font-size: 12px; margin: 10px 0; }
    form.filters { display: flex; gap: 8px; margin: 16px 0; flex-wrap: wrap; }
    form.filters input[type=text] { flex: 1; min-width: 280px; padding: 6px 8px; border: 1px solid var(--line); }
    form.filters select, form.filters button { padding: 6px 10px; border: 1px solid var(--line); background: var(--paper); }
    .charts { display: grid; grid-template-columns: repeat(auto-fit, minmax(260px, 1fr)); gap: 12px; }
    .card { background: var(--paper); border: 1px solid var(--line); padding: 10px 12px; }
    .card h3 { margin: 0 0 8px; font-size: 13px; font-weight: 600; display: flex; gap: 6px; align-items: center; }
    .bars { display: flex; align-items: flex-end; gap: 1px; height: 80px; }
    .bars span { flex: 1; background: var(--brand-2); min-height: 1px; }
    .query-symbol { display: inline-block; min-width: 18px; text-align: center; font-family: monospace; }
    .query-symbol--legacy { color: var(--brand); font-weight: 700; }
    .query-symbol--current { background: var(--brand); color: #fff; border-radius: 3px; padding: 0 4px; }
    table { width: 100%; border-collapse: collapse; background: var(--paper); margin-top: 16px; }
    th, td { border: 1px solid var(--line); padding: 6px 8px; text-align: left; }
    th { background: var(--head); font-weight: 600; }
    td.num { text-align: right; font-variant-numeric: tabular-nums; }
    .error { background: var(--bad-bg); color: var(--bad-text); padding: 8px 12px; margin-top: 12px; display: none; }
  </style>
</head>
<body>
  <header>
    <div class="container">
      <div class="breadcrumb"><a href="/?org={{.Org}}">Performance</a> / Resources{{with .Group}} / <span id="crumb-group">{{.}}</span>{{end}}</div>
      <h1 id="title">{{if .Group}}Resource {{.Group}}{{else}}Resource Summary{{end}}</h1>
    </div>
  </header>
  <main class="container">
    <form class="filters" method="get" action="/">
      <input type="hidden" name="org" value="{{.Org}}" />
      <input type="text" name="group" placeholder="resource group" value="{{.Group}}" />
      <input type="text" name="query" placeholder="span.domain:cdn.example.com transaction:/checkout" value="{{.Query}}" />
      <select name="statsPeriod">
        <option value="1h"{{if eq .StatsPeriod "1h0m0s" "1h"}} selected{{end}}>Last hour</option>
        <option value="24h"{{if eq .StatsPeriod "24h0m0s" "24h"}} selected{{end}}>Last 24 hours</option>
        <option value="7d"{{if eq .StatsPeriod "168h0m0s" "7d"}} selected{{end}}>Last 7 days</option>
        <option value="14d"{{if eq .StatsPeriod "336h0m0s" "14d"}} selected{{end}}>Last 14 days</option>
      </select>
      <button type="submit">Apply</button>
      {{if .ExportOn}}<button type="button" id="export">Export xlsx (max {{.ExportLimit}} rows)</button>{{end}}
    </form>
    <div class="meta">Symbols: {{.Variant}} style · Org {{.Org}}</div>
    <div class="error" id="error"></div>

    <section class="charts">
      {{range .Charts}}
      <div class="card" data-symbol="{{.Symbol.Label}}">
        <h3>{{.Symbol.HTML}} <span>{{.Name}}</span></h3>
        <div class="bars"></div>
      </div>
      {{end}}
    </section>

    <table id="pages">
      <thead>
        <tr><th>Transaction</th><th>Method</th><th>Count</th><th>Throughput (spm)</th><th>Avg duration</th><th>p95 duration</th><th>Avg size</th></tr>
      </thead>
      <tbody></tbody>
    </table>

    <table id="samples">
      <thead>
        <tr><th>Span</th><th>Trace</th><th>Transaction</th><th>Duration</th><th>Encoded size</th><th>Transfer size</th><th>When</th></tr>
      </thead>
      <tbody></tbody>
    </table>
  </main>
  <script>
    (function () {
      const params = new URLSearchParams(window.location.search);
      const group = params.get("group");
      const errorBox = document.getElementById("error");

      function showError(msg) {
        errorBox.textContent = msg;
        errorBox.style.display = "block";
      }

      function cell(text, num) {
        const td = document.createElement("td");
        td.textContent = text;
        if (num) td.className = "num";
        return td;
      }

      function row(tbody, values) {
        const tr = document.createElement("tr");
        values.forEach(function (v) { tr.appendChild(cell(v[0], v[1])); });
        tbody.appendChild(tr);
      }

      function bytes(n) {
        if (!n) return "0 B";
        const units = ["B", "kB", "MB", "GB"];
        let i = 0;
        while (n >= 1000 && i < units.length - 1) { n /= 1000; i++; }
        return n.toFixed(i ? 1 : 0) + " " + units[i];
      }

      const summaryQuery = new URLSearchParams();
      ["org", "query", "statsPeriod", "interval", "sort", "limit", "offset"].forEach(function (k) {
        if (params.get(k)) summaryQuery.set(k, params.get(k));
      });

      const exportBtn = document.getElementById("export");
      if (exportBtn && group) {
        exportBtn.addEventListener("click", function () {
          window.location = "/api/v1/resources/" + encodeURIComponent(group) + "/summary.xlsx?" + summaryQuery.toString();
        });
      }

      if (!group) return;

      fetch("/api/v1/resources/" + encodeURIComponent(group) + "/summary?" + summaryQuery.toString())
        .then(function (res) { return res.json().then(function (body) { return [res.ok, body]; }); })
        .then(function (pair) {
          const ok = pair[0], body = pair[1];
          if (!ok) { showError(body.error || "request failed"); return; }
          const data = body.data;
          if (data.header && data.header.description) {
            document.getElementById("title").textContent = data.header.description;
          }

          (data.charts || []).forEach(function (series) {
            const card = document.querySelector('.card[data-symbol="' + series.symbol + '"] .bars');
            if (!card) return;
            const max = Math.max.apply(null, series.points.map(function (p) { return p.value; }).concat([0]));
            series.points.forEach(function (p) {
              const bar = document.createElement("span");
              bar.style.height = (max > 0 ? (p.value / max) * 100 : 0) + "%";
              bar.title = p.timestamp + ": " + p.value;
              card.appendChild(bar);
            });
          });

          const pages = document.querySelector("#pages tbody");
          (data.pages || []).forEach(function (p) {
            row(pages, [
              [p.transaction], [p.method], [String(p.count), true], [p.spm.toFixed(2), true],
              [p.avg_duration_ms.toFixed(2) + " ms", true], [p.p95_duration_ms.toFixed(2) + " ms", true],
              [bytes(p.avg_encoded_size), true]
            ]);
          });

          const samples = document.querySelector("#samples tbody");
          (data.samples || []).forEach(function (s) {
            row(samples, [
              [s.span_id], [s.trace_id], [s.transaction], [s.duration_ms.toFixed(2) + " ms", true],
              [bytes(s.encoded_size), true], [bytes(s.transfer_size), true], [s.timestamp || ""]
            ]);
          });
        })
        .catch(function (err) { showError(String(err)); });
    })();
  </script>
</body>
</html>
`
