package views

import (
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/trexim"
	"github.com/eringen/trexim/analytics"
)

// adminScript sends DELETE requests for [data-delete] buttons and swaps the
// returned page in.
const adminScript = `<script>
document.addEventListener("click", function (e) {
  var b = e.target.closest("[data-delete]");
  if (!b || !confirm("Delete?")) return;
  fetch(b.getAttribute("data-delete"), {
    method: "DELETE",
    headers: {"X-CSRF-Token": document.body.getAttribute("data-csrf")}
  }).then(function (r) { return r.text(); }).then(function (html) {
    document.open(); document.write(html); document.close();
  });
});
</script>`

var adminNav = [][2]string{
	{"/admin/", "Posts"},
	{"/admin/categories/", "Categories"},
	{"/admin/tags/", "Tags"},
	{"/admin/images/", "Images"},
	{"/admin/forms/", "Leads"},
	{"/admin/analytics/", "Analytics"},
}

func adminLayout(title, csrf string, body templ.Component) templ.Component {
	return component(func(w *writer) {
		w.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="robots" content="noindex"><title>`)
		w.text(title)
		w.raw(` | Admin</title><link rel="stylesheet" href="/public/admin.css"></head><body`)
		w.attr("data-csrf", csrf)
		w.raw(`><header class="admin-header"><nav>`)
		for _, item := range adminNav {
			w.raw(`<a`)
			w.attr("href", item[0])
			w.raw(`>`)
			w.text(item[1])
			w.raw(`</a>`)
		}
		w.raw(`</nav><form method="post" action="/admin/logout/">`)
		csrfField(w, csrf)
		w.raw(`<button type="submit">Log out</button></form></header><main>`)
		w.render(body)
		w.raw(`</main>`, adminScript, `</body></html>`)
	})
}

func message(w *writer, msg string) {
	if msg == "" {
		return
	}
	w.raw(`<p class="notice">`)
	w.text(msg)
	w.raw(`</p>`)
}

// AdminLogin renders the password form.
func AdminLogin(showError bool, csrf string) templ.Component {
	return component(func(w *writer) {
		w.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="robots" content="noindex"><title>Admin login</title>`)
		w.raw(`<link rel="stylesheet" href="/public/admin.css"></head><body class="login"><form method="post" action="/admin/login/">`)
		csrfField(w, csrf)
		if showError {
			w.raw(`<p class="notice error" role="alert">Invalid password.</p>`)
		}
		w.raw(`<label>Password<input type="password" name="password" autofocus required></label>`)
		w.raw(`<button type="submit">Log in</button></form></body></html>`)
	})
}

// AdminDashboard lists every post, drafts included.
func AdminDashboard(d trexim.AdminDashboard) templ.Component {
	return adminLayout("Posts", d.CSRFToken, component(func(w *writer) {
		w.raw(`<h1>Posts</h1>`)
		message(w, d.Message)
		w.raw(`<p><a class="button" href="/admin/post/new/">New post</a></p>`)
		w.raw(`<table><thead><tr><th>Title</th><th>Category</th><th>Status</th><th>Home</th><th>Updated</th><th></th></tr></thead><tbody>`)
		for _, p := range d.Posts {
			w.raw(`<tr><td><a`)
			w.attr("href", "/admin/post/"+p.Slug+"/")
			w.raw(`>`)
			w.text(p.Emoji + " " + p.UK.Title)
			w.raw(`</a></td><td>`)
			w.text(p.Category)
			w.raw(`</td><td>`)
			w.text(p.Status)
			w.raw(`</td><td>`)
			if p.ShowOnHomepage {
				w.raw(`✓`)
			}
			w.raw(`</td><td>`)
			if !p.UpdatedAt.IsZero() {
				w.text(p.UpdatedAt.Format("2006-01-02 15:04"))
			}
			w.raw(`</td><td><button type="button"`)
			w.attr("data-delete", "/admin/post/"+p.Slug+"/")
			w.raw(`>Delete</button></td></tr>`)
		}
		w.raw(`</tbody></table>`)
	}))
}

func input(w *writer, label, name, value string) {
	w.raw(`<label>`)
	w.text(label)
	w.raw(`<input type="text"`)
	w.attr("name", name)
	w.attr("value", value)
	w.raw(`></label>`)
}

func textarea(w *writer, label, name, value string, rows int) {
	w.raw(`<label>`)
	w.text(label)
	w.raw(`<textarea`)
	w.attr("name", name)
	w.attr("rows", strconv.Itoa(rows))
	w.raw(`>`)
	w.text(value)
	w.raw(`</textarea></label>`)
}

func checkbox(w *writer, label, name string, checked bool) {
	w.raw(`<label class="check"><input type="checkbox" value="1"`)
	w.attr("name", name)
	if checked {
		w.raw(` checked`)
	}
	w.raw(`> `)
	w.text(label)
	w.raw(`</label>`)
}

// AdminPostForm renders the bilingual post editor.
func AdminPostForm(d trexim.AdminPostForm) templ.Component {
	p := d.Post
	title := "New post"
	if p.Slug != "" {
		title = "Edit " + p.Slug
	}
	return adminLayout(title, d.CSRFToken, component(func(w *writer) {
		w.raw(`<h1>`)
		w.text(title)
		w.raw(`</h1><form method="post" action="/admin/save/" class="post-form">`)
		csrfField(w, d.CSRFToken)
		input(w, "Slug", "slug", p.Slug)

		w.raw(`<label>Category<select name="category"><option value="">-</option>`)
		for _, c := range d.Refs.Categories {
			w.raw(`<option`)
			w.attr("value", c.Code)
			if c.Code == p.Category {
				w.raw(` selected`)
			}
			w.raw(`>`)
			w.text(c.NameUK)
			w.raw(`</option>`)
		}
		w.raw(`</select></label><fieldset><legend>Tags</legend>`)
		for _, t := range d.Refs.Tags {
			w.raw(`<label class="check"><input type="checkbox" name="tags"`)
			w.attr("value", t.Code)
			if p.HasTag(t.Code) {
				w.raw(` checked`)
			}
			w.raw(`> `)
			w.text(t.NameUK)
			w.raw(`</label>`)
		}
		w.raw(`</fieldset>`)

		input(w, "Emoji", "emoji", p.Emoji)
		input(w, "Color", "color", p.Color)
		readTime := ""
		if p.ReadTime > 0 {
			readTime = strconv.Itoa(p.ReadTime)
		}
		input(w, "Read time (min)", "read_time", readTime)
		input(w, "Image URL", "image_url", p.ImageURL)

		for _, lang := range []struct {
			code string
			t    trexim.Translation
		}{{"uk", p.UK}, {"en", p.EN}} {
			w.raw(`<fieldset><legend>`)
			w.text(strings.ToUpper(lang.code))
			w.raw(`</legend>`)
			input(w, "Title", "title_"+lang.code, lang.t.Title)
			input(w, "Date", "date_"+lang.code, lang.t.Date)
			textarea(w, "Excerpt", "excerpt_"+lang.code, lang.t.Excerpt, 3)
			textarea(w, "Content (HTML)", "content_"+lang.code, lang.t.Content, 20)
			w.raw(`</fieldset>`)
		}

		w.raw(`<label>Status<select name="status">`)
		for _, s := range []string{trexim.StatusDraft, trexim.StatusPublished} {
			w.raw(`<option`)
			w.attr("value", s)
			if s == p.Status {
				w.raw(` selected`)
			}
			w.raw(`>`)
			w.text(s)
			w.raw(`</option>`)
		}
		w.raw(`</select></label>`)
		checkbox(w, "Show on homepage", "show_on_homepage", p.ShowOnHomepage)
		w.raw(`<button type="submit">Save</button></form>`)
	}))
}

// AdminReferences renders the category or tag editor.
func AdminReferences(d trexim.AdminReferences) templ.Component {
	title := "Categories"
	if d.Kind == "tags" {
		title = "Tags"
	}
	base := "/admin/" + d.Kind + "/"
	return adminLayout(title, d.CSRFToken, component(func(w *writer) {
		w.raw(`<h1>`)
		w.text(title)
		w.raw(`</h1>`)
		message(w, d.Message)
		w.raw(`<table><thead><tr><th>Code</th><th>UK</th><th>EN</th><th>Active</th><th></th></tr></thead><tbody>`)
		for _, r := range d.Items {
			w.raw(`<tr><td>`)
			w.text(r.Code)
			w.raw(`</td><td>`)
			w.text(r.NameUK)
			w.raw(`</td><td>`)
			w.text(r.NameEN)
			w.raw(`</td><td>`)
			if r.Active {
				w.raw(`✓`)
			}
			w.raw(`</td><td><button type="button"`)
			w.attr("data-delete", base+r.Code+"/")
			w.raw(`>Delete</button></td></tr>`)
		}
		w.raw(`</tbody></table><h2>Add or update</h2><form method="post"`)
		w.attr("action", base)
		w.raw(`>`)
		csrfField(w, d.CSRFToken)
		input(w, "Code", "code", "")
		input(w, "Name (UK)", "name_uk", "")
		input(w, "Name (EN)", "name_en", "")
		checkbox(w, "Active", "active", true)
		w.raw(`<button type="submit">Save</button></form>`)
	}))
}

// AdminImages lists uploads with the upload form.
func AdminImages(images []trexim.Image, csrf string) templ.Component {
	return adminLayout("Images", csrf, component(func(w *writer) {
		w.raw(`<h1>Images</h1><form method="post" action="/admin/images/upload/" enctype="multipart/form-data">`)
		csrfField(w, csrf)
		w.raw(`<input type="file" name="image" accept="image/*" required><button type="submit">Upload</button></form><ul class="images">`)
		for _, img := range images {
			w.raw(`<li><img loading="lazy"`)
			w.attr("src", img.URL())
			w.attr("alt", img.OriginalName)
			w.raw(`><code>`)
			w.text(img.URL())
			w.raw(`</code><small>`)
			w.textf("%dx%d, %d KB", img.Width, img.Height, img.Size/1024)
			w.raw(`</small><button type="button"`)
			w.attr("data-delete", "/admin/images/"+img.Filename+"/")
			w.raw(`>Delete</button></li>`)
		}
		w.raw(`</ul>`)
	}))
}

var formStatuses = []string{analytics.FormStatusNew, analytics.FormStatusProcessed, analytics.FormStatusSpam}

// AdminForms renders the lead inbox.
func AdminForms(d trexim.AdminForms) templ.Component {
	return adminLayout("Leads", d.CSRFToken, component(func(w *writer) {
		w.raw(`<h1>Leads</h1>`)
		message(w, d.Message)
		if len(d.Forms) == 0 {
			w.raw(`<p class="empty">No submissions in this period.</p>`)
			return
		}
		w.raw(`<table><thead><tr><th>Received</th><th>Type</th><th>Company</th><th>Contact</th><th>Message</th><th>Status</th></tr></thead><tbody>`)
		for _, f := range d.Forms {
			w.raw(`<tr`)
			w.attr("class", "status-"+f.Status)
			w.raw(`><td>`)
			w.text(f.Timestamp.Format("2006-01-02 15:04"))
			w.raw(`</td><td>`)
			w.text(f.FormType)
			if f.RequestType != "" {
				w.text(" / " + f.RequestType)
			}
			w.raw(`</td><td>`)
			w.text(f.Company)
			w.raw(`</td><td>`)
			w.text(strings.TrimSpace(f.Email + " " + f.Phone))
			w.raw(`</td><td>`)
			w.text(f.Message)
			w.raw(`</td><td><form method="post"`)
			w.attr("action", "/admin/forms/"+strconv.FormatInt(f.ID, 10)+"/status/")
			w.raw(`>`)
			csrfField(w, d.CSRFToken)
			w.raw(`<select name="status" onchange="this.form.submit()">`)
			for _, s := range formStatuses {
				w.raw(`<option`)
				w.attr("value", s)
				if s == f.Status {
					w.raw(` selected`)
				}
				w.raw(`>`)
				w.text(s)
				w.raw(`</option>`)
			}
			w.raw(`</select></form></td></tr>`)
		}
		w.raw(`</tbody></table>`)
	}))
}

// dashboardScript fills the analytics page from the summary endpoint.
const dashboardScript = `<script>
(function () {
  var days = document.getElementById("days");
  function cell(v) { var td = document.createElement("td"); td.textContent = v; return td; }
  function table(id, rows, cols) {
    var tb = document.querySelector("#" + id + " tbody");
    tb.textContent = "";
    rows.forEach(function (r) {
      var tr = document.createElement("tr");
      cols.forEach(function (c) { tr.appendChild(cell(r[c])); });
      tb.appendChild(tr);
    });
  }
  function metric(id, m, text) {
    var el = document.getElementById(id);
    el.querySelector(".value").textContent = text || m.count;
    el.querySelector(".change").textContent = (m.change > 0 ? "+" : "") + m.change + "%";
  }
  function load() {
    fetch("/admin/analytics/api/summary?days=" + days.value, {credentials: "same-origin"})
      .then(function (r) { return r.json(); })
      .then(function (s) {
        metric("m-visitors", s.visitors);
        metric("m-views", s.page_views);
        metric("m-time", s.avg_time, s.avg_time.formatted);
        metric("m-cta", s.cta_clicks);
        var t = s.traffic_by_day;
        table("traffic", t.labels.map(function (l, i) {
          return {day: l + " " + t.dates[i], visitors: t.visitors[i], views: t.views[i]};
        }), ["day", "visitors", "views"]);
        table("sources", s.sources, ["name", "count", "percentage"]);
        table("pages", s.popular_pages, ["name", "path", "views", "visitors"]);
        table("devices", s.devices, ["name", "count", "percentage"]);
        table("browsers", s.browsers, ["name", "count", "percentage"]);
        table("events", s.recent_events, ["timestamp", "type", "path"]);
      });
  }
  days.addEventListener("change", load);
  load();
})();
</script>`

func statTable(w *writer, id, title string, cols ...string) {
	w.raw(`<section><h2>`)
	w.text(title)
	w.raw(`</h2><table`)
	w.attr("id", id)
	w.raw(`><thead><tr>`)
	for _, c := range cols {
		w.raw(`<th>`)
		w.text(c)
		w.raw(`</th>`)
	}
	w.raw(`</tr></thead><tbody></tbody></table></section>`)
}

// AdminAnalytics renders the analytics dashboard shell.
func AdminAnalytics(csrf string) templ.Component {
	return adminLayout("Analytics", csrf, component(func(w *writer) {
		w.raw(`<h1>Analytics</h1><label>Period <select id="days">`)
		for _, d := range []int{7, 30, 90} {
			w.raw(`<option`)
			w.attr("value", strconv.Itoa(d))
			w.raw(`>`)
			w.textf("%d days", d)
			w.raw(`</option>`)
		}
		w.raw(`</select></label><div class="metrics">`)
		for _, m := range [][2]string{
			{"m-visitors", "Visitors"}, {"m-views", "Page views"},
			{"m-time", "Avg. session"}, {"m-cta", "CTA clicks"},
		} {
			w.raw(`<div class="metric"`)
			w.attr("id", m[0])
			w.raw(`><span class="label">`)
			w.text(m[1])
			w.raw(`</span><span class="value">-</span><span class="change"></span></div>`)
		}
		w.raw(`</div>`)
		statTable(w, "traffic", "Traffic by day", "Day", "Visitors", "Views")
		statTable(w, "sources", "Sources", "Source", "Views", "%")
		statTable(w, "pages", "Popular pages", "Page", "Path", "Views", "Visitors")
		statTable(w, "devices", "Devices", "Device", "Views", "%")
		statTable(w, "browsers", "Browsers", "Browser", "Views", "%")
		statTable(w, "events", "Recent events", "Time", "Type", "Path")
		w.raw(dashboardScript)
	}))
}
