package httpapi

import (
	"html/template"
	"net/http"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<title>Контроль блистеров {{.Version}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; margin-top: 1rem; }
td, th { border: 1px solid #ccc; padding: 4px 8px; }
img { max-width: 320px; margin: 4px; }
.Approved { color: #0a0; } .DeformedPill, .EmptyCavity { color: #c00; }
</style>
</head>
<body>
<h1>Контроль блистеров</h1>
<p>Режим источника: <b id="mode">{{.Mode}}</b></p>
<form id="upload">
  <input type="file" name="file" accept=".png,.jpg,.jpeg">
  <button type="submit">Проверить</button>
</form>
<div id="summary"></div>
<table id="results"></table>
<div id="images"></div>
<script>
document.getElementById("upload").addEventListener("submit", async (e) => {
  e.preventDefault();
  const resp = await fetch("/api/inspect", { method: "POST", body: new FormData(e.target) });
  const data = await resp.json();
  if (!data.success) {
    document.getElementById("summary").textContent = data.error;
    return;
  }
  document.getElementById("summary").textContent =
    "Партия " + data.batch_id + ": ячеек " + data.results.length + ", брак " + data.defects + ", пересчёт " + data.qa_count;
  const rows = data.results.map(r =>
    "<tr><td>" + r.id + "</td><td>" + r.area + "</td><td>" + r.circularity + "</td><td class=\"" + r.status + "\">" + r.status + "</td></tr>");
  document.getElementById("results").innerHTML = "<tr><th>#</th><th>Площадь</th><th>Округлость</th><th>Статус</th></tr>" + rows.join("");
  document.getElementById("images").innerHTML = Object.values(data.images).map(u => "<img src=\"" + u + "\">").join("");
});
</script>
</body>
</html>
`))

type indexData struct {
	Version string
	Mode    string
}

func (s *server) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, indexData{Version: s.Version, Mode: string(s.mode())}); err != nil {
		s.log.Errorw("failed to render index", "error", err)
	}
}
