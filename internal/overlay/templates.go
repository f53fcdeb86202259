package overlay

// blockTemplate is the consent modal spliced into every delivered page.
// Both controls lead to the configured redirect: the modal exists for
// attribution and compliance display, not to gate access.
const blockTemplate = `
<div id="psk-overlay" style="position:fixed;inset:0;z-index:2147483647;display:flex;align-items:center;justify-content:center;background:rgba(0,0,0,0.55);font-family:Arial,Helvetica,sans-serif;">
  <div id="psk-modal" style="{{.ModalStyle}}">
    <h2 style="margin:0 0 12px;font-size:20px;{{.TextStyle}}">{{.Title}}</h2>
    <p style="margin:0 0 8px;font-size:15px;line-height:1.5;{{.TextStyle}}">{{.Message}}</p>
    <button type="button" id="psk-accept" style="{{.AcceptStyle}}">{{.AcceptLabel}}</button>
    <button type="button" id="psk-close" style="{{.CloseStyle}}">{{.CloseLabel}}</button>
  </div>
</div>
<script>
(function () {
  var clickURL = {{.ClickURLJSON}};
  var redirect = {{.RedirectJSON}};
  var backdrop = document.getElementById('psk-overlay');

  function track(control) {
    try {
      fetch(clickURL + '?control=' + control, { method: 'POST', keepalive: true })
        .catch(function () {});
    } catch (err) { /* tracking is fire-and-forget */ }
  }

  function leave(control) {
    track(control);
    window.location.href = redirect;
  }

  document.getElementById('psk-accept').addEventListener('click', function () { leave('accept'); });
  document.getElementById('psk-close').addEventListener('click', function () { leave('close'); });
  backdrop.addEventListener('click', function (ev) {
    if (ev.target === backdrop) { leave('close'); }
  });
})();
</script>
`

// screenshotTemplate hosts the captured images. The swap script picks the
// capture width closest to the live viewport, first minimum wins on ties.
const screenshotTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  html, body { margin: 0; padding: 0; }
  #psk-shot { display: block; width: 100vw; height: auto; }
</style>
</head>
<body>
<img id="psk-shot" src="/screenshots/{{.InitialPath}}" alt="">
<script>
(function () {
  var widths = {{.WidthsJSON}};
  var index = {{.IndexJSON}};
  var img = document.getElementById('psk-shot');

  function closest(w) {
    var best = widths[0];
    var bestDist = Math.abs(w - best);
    for (var i = 1; i < widths.length; i++) {
      var d = Math.abs(w - widths[i]);
      if (d < bestDist) { best = widths[i]; bestDist = d; }
    }
    return best;
  }

  function swap() {
    var path = index[String(closest(window.innerWidth))];
    if (path) { img.src = '/screenshots/' + path; }
  }

  window.addEventListener('resize', swap);
  swap();
})();
</script>
{{.OverlayBlock}}
</body>
</html>
`
