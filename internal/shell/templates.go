package shell

import "html/template"

const layoutTemplate = `{{define "layout"}}<!doctype html>
<html lang="en" data-theme="{{.Theme.ID}}" data-mode="{{.Theme.Palette.Mode}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{- if .Refresh}}
<meta http-equiv="refresh" content="{{.Refresh}}{{if .RefreshURL}}; url={{.RefreshURL}}{{end}}">
{{- end}}
<title>{{if .PanelTitle}}{{.PanelTitle}} · {{end}}{{.Title}}</title>
<style>
:root {
  --color-primary: {{.Theme.Palette.Primary}};
  --color-secondary: {{.Theme.Palette.Secondary}};
  --color-background: {{.Theme.Palette.Background}};
  --color-surface: {{.Theme.Palette.Surface}};
  --color-text: {{.Theme.Palette.Text}};
  --radius: {{.Theme.Shape.BorderRadius}}px;
}
body { margin: 0; font-family: system-ui, sans-serif; background: var(--color-background); color: var(--color-text); }
header { display: flex; gap: 1rem; align-items: center; padding: .75rem 1rem; background: var(--color-primary); color: #fff; }
header nav a { color: inherit; margin-right: .75rem; text-decoration: none; }
header nav a.active { text-decoration: underline; }
header .user { margin-left: auto; }
main { padding: 1rem; }
.card { background: var(--color-surface); border-radius: var(--radius); padding: 1rem; }
</style>
</head>
<body>
<header>
  <strong>{{.Title}}</strong>
  <nav>{{range .Nav}}<a href="{{.Href}}"{{if .Active}} class="active"{{end}}>{{.Title}}</a>{{end}}</nav>
  <span class="user">
  {{- if .User}}{{.User.Username}}
    <form method="post" action="/auth/sign-out" style="display:inline"><button type="submit">Sign out</button></form>
  {{- else}}<a href="{{.SignInPath}}">Sign in</a>{{end}}
  </span>
</header>
<main>{{template "content" .}}</main>
<script type="module">
const apply = (theme) => {
  const root = document.documentElement;
  root.dataset.theme = theme.id;
  root.dataset.mode = theme.palette.mode;
  for (const [k, v] of Object.entries(theme.palette)) {
    if (v) root.style.setProperty("--color-" + k, v);
  }
  root.style.setProperty("--radius", (theme.shape?.borderRadius ?? 0) + "px");
};
const events = new EventSource("/api/events?topic=theme:changed");
events.addEventListener("theme:changed", (ev) => apply(JSON.parse(ev.data).payload));
</script>
</body>
</html>{{end}}`

const readyTemplate = `{{define "content"}}<div id="panel-root" data-panel="{{.Panel}}" data-origin="{{.Origin}}"></div>
<script type="module">
import * as mod from {{.EntryURL}};
const component = mod[{{.Export}}];
const root = document.getElementById("panel-root");
const ctx = { panel: {{.Panel}}, theme: {{.Theme}}, api: "/api" };
if (typeof component === "function") {
  component(root, ctx);
} else if (component && typeof component.mount === "function") {
  component.mount(root, ctx);
}
</script>{{end}}`

const loadingTemplate = `{{define "content"}}<div class="card" role="status">
  <p>Loading {{.PanelTitle}}…</p>
</div>{{end}}`

const errorTemplate = `{{define "content"}}<div class="card" role="alert">
  <h2>{{.PanelTitle}} failed to load</h2>
  <p>{{.Error}}</p>
  <p><a href="{{.RetryURL}}">Retry</a></p>
</div>{{end}}`

const notFoundTemplate = `{{define "content"}}<div class="card">
  <h2>Not found</h2>
  <p>Nothing is registered at <code>{{.Path}}</code>.</p>
  {{- if .Suggestion}}
  <p>Did you mean <a href="{{.Suggestion}}">{{.Suggestion}}</a>?</p>
  {{- end}}
  <p><a href="{{.HomePath}}">Go home</a></p>
</div>{{end}}`

const signInTemplate = `{{define "content"}}<div class="card">
  {{- if .Error}}<p role="alert">{{.Error}}</p>{{end}}
  {{- if .Rotate}}
  <h2>Set a new password</h2>
  <form method="post" action="/auth/rotate">
    <input type="hidden" name="next" value="{{.Next}}">
    <label>New password <input type="password" name="new_password" autocomplete="new-password" required></label>
    <button type="submit">Continue</button>
  </form>
  {{- else}}
  <h2>Sign in</h2>
  <form method="post" action="/auth/sign-in">
    <input type="hidden" name="next" value="{{.Next}}">
    <label>Username <input name="username" autocomplete="username" required></label>
    <label>Password <input type="password" name="password" autocomplete="current-password" required></label>
    <button type="submit">Sign in</button>
  </form>
  {{- end}}
</div>{{end}}`

var views = map[string]*template.Template{
	viewReady:    mustView(readyTemplate),
	viewLoading:  mustView(loadingTemplate),
	viewError:    mustView(errorTemplate),
	viewNotFound: mustView(notFoundTemplate),
	viewSignIn:   mustView(signInTemplate),
}

func mustView(content string) *template.Template {
	t := template.Must(template.New("layout").Parse(layoutTemplate))
	return template.Must(t.Parse(content))
}
