package html

import (
	"fmt"

	"github.com/JonMunkholm/tabx/internal/core"
)

func stylesheet(p core.Palette) string {
	return fmt.Sprintf(`body { font-family: Segoe UI, Arial, sans-serif; color: #%[5]s; margin: 1.5em; }
h1 { color: #%[7]s; }
.controls { margin: 0.5em 0; }
.controls input { padding: 4px; border: 1px solid #%[6]s; }
.controls button { padding: 4px 10px; background: #%[1]s; color: #%[2]s; border: none; cursor: pointer; }
.count { margin-left: 0.5em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th { background: #%[1]s; color: #%[2]s; text-align: left; }
th, td { border: 1px solid #%[6]s; padding: 4px 8px; }
td { background: #%[3]s; }
tr.alt td { background: #%[4]s; }
`, p.Header, p.HeaderText, p.Row, p.AltRow, p.Text, p.Border, p.Accent)
}

// filterScript caches each row's lower-cased text once, then shows the rows
// containing the filter text and updates the visible/total counter.
const filterScript = `var rowCache = {};
function cachedRows(n) {
  if (!rowCache[n]) {
    var rows = document.querySelectorAll('#table-' + n + ' tbody tr');
    rowCache[n] = Array.prototype.map.call(rows, function (r) {
      return { row: r, text: r.textContent.toLowerCase() };
    });
  }
  return rowCache[n];
}
function applyFilter(n) {
  var q = document.getElementById('filter-' + n).value.toLowerCase();
  var rows = cachedRows(n);
  var visible = 0;
  rows.forEach(function (e) {
    var show = q === '' || e.text.indexOf(q) !== -1;
    e.row.style.display = show ? '' : 'none';
    if (show) { visible++; }
  });
  document.getElementById('count-' + n).textContent = visible + ' / ' + rows.length;
}
function clearFilter(n) {
  document.getElementById('filter-' + n).value = '';
  applyFilter(n);
}
`
