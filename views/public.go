package views

import (
	"github.com/a-h/templ"

	"github.com/eringen/trexim"
)

// pageIntros holds the lead paragraph of each marketing page, uk then en.
var pageIntros = map[string][2]string{
	"about": {
		"Trexim допомагає компаніям налагодити міжнародну торгівлю: від пошуку постачальників до митного оформлення.",
		"Trexim helps companies run international trade, from sourcing suppliers to customs clearance.",
	},
	"services": {
		"Зовнішньоекономічний супровід, логістика, сертифікація та консультації для імпортерів і експортерів.",
		"Foreign trade support, logistics, certification and advisory for importers and exporters.",
	},
	"pricing": {
		"Прозорі тарифи без прихованих платежів. Оберіть пакет або замовте індивідуальний розрахунок.",
		"Transparent pricing with no hidden fees. Pick a package or request a custom quote.",
	},
	"partners": {
		"Ми працюємо з перевізниками, брокерами та банками, яким довіряємо.",
		"We work with carriers, brokers and banks we trust.",
	},
	"tools": {
		"Калькулятори та довідники, що спрощують планування поставок.",
		"Calculators and references that make shipment planning easier.",
	},
	"contact": {
		"Залиште заявку, і ми зв'яжемося з вами протягом робочого дня.",
		"Leave a request and we will get back to you within one business day.",
	},
}

// pricingPlans are the request types offered by the pricing CTAs.
var pricingPlans = []struct {
	Code   string
	UK, EN string
}{
	{"start", "Старт", "Start"},
	{"business", "Бізнес", "Business"},
	{"enterprise", "Корпоративний", "Enterprise"},
}

func postCard(w *writer, p trexim.BlogPost, refs trexim.References, lang trexim.Lang) {
	t := p.In(lang)
	w.raw(`<article class="post-card"`)
	w.attr("style", "--accent:"+p.Color)
	w.raw(`>`)
	if p.Emoji != "" {
		w.raw(`<span class="emoji">`)
		w.text(p.Emoji)
		w.raw(`</span>`)
	}
	if cat, ok := refs.Category(p.Category); ok {
		w.raw(`<span class="category">`)
		w.text(cat.Name(lang))
		w.raw(`</span>`)
	}
	w.raw(`<h3><a`)
	w.attr("href", href(lang, p.Link()))
	w.raw(`>`)
	w.text(t.Title)
	w.raw(`</a></h3><p>`)
	w.text(t.Excerpt)
	w.raw(`</p><footer><time>`)
	w.text(t.Date)
	w.raw(`</time> · `)
	w.textf(tr(lang, "%d хв читання", "%d min read"), p.ReadTime)
	w.raw(`</footer></article>`)
}

func postGrid(w *writer, posts []trexim.BlogPost, refs trexim.References, lang trexim.Lang) {
	if len(posts) == 0 {
		w.raw(`<p class="empty">`)
		w.text(tr(lang, "Статей поки немає.", "No articles yet."))
		w.raw(`</p>`)
		return
	}
	w.raw(`<div class="post-grid">`)
	for _, p := range posts {
		postCard(w, p, refs, lang)
	}
	w.raw(`</div>`)
}

func ctaButton(w *writer, lang trexim.Lang, label, trackLabel string) {
	w.raw(`<a class="cta"`)
	w.attr("href", href(lang, "/contact/"))
	w.raw(` data-track="cta_click"`)
	w.attr("data-track-label", trackLabel)
	w.raw(`>`)
	w.text(label)
	w.raw(`</a>`)
}

// Home renders the landing page.
func Home(d trexim.HomePage) templ.Component {
	lang := d.Meta.Lang
	return layout(d.Meta, d.Site, component(func(w *writer) {
		w.raw(`<section class="hero"><h1>`)
		w.text(d.Site.Name)
		w.raw(`</h1><p>`)
		w.text(d.Site.Description)
		w.raw(`</p>`)
		ctaButton(w, lang, tr(lang, "Отримати консультацію", "Get a consultation"), "hero")
		w.raw(`</section><section class="services"><h2>`)
		w.text(trexim.PageTitle("services", lang))
		w.raw(`</h2><p>`)
		w.text(tr(lang, pageIntros["services"][0], pageIntros["services"][1]))
		w.raw(`</p></section><section class="latest"><h2>`)
		w.text(tr(lang, "Свіжі статті", "Latest articles"))
		w.raw(`</h2>`)
		postGrid(w, d.Posts, d.Refs, lang)
		w.raw(`</section>`)
	}))
}

// Blog renders the article index with the tag filter.
func Blog(d trexim.BlogPage) templ.Component {
	lang := d.Meta.Lang
	return layout(d.Meta, d.Site, component(func(w *writer) {
		w.raw(`<h1>`)
		w.text(d.Meta.Title)
		w.raw(`</h1><nav class="tags"><a`)
		w.attr("href", href(lang, "/blog/"))
		if d.ActiveTag == "" {
			w.raw(` class="active"`)
		}
		w.raw(`>`)
		w.text(tr(lang, "Усі", "All"))
		w.raw(`</a>`)
		for _, tag := range d.Refs.Tags {
			w.raw(`<a`)
			w.attr("href", href(lang, "/blog/?tag="+tag.Code))
			if tag.Code == d.ActiveTag {
				w.raw(` class="active"`)
			}
			w.raw(`>#`)
			w.text(tag.Name(lang))
			w.raw(`</a>`)
		}
		w.raw(`</nav>`)
		postGrid(w, d.Posts, d.Refs, lang)
	}))
}

// Post renders a single article. Content is trusted admin-authored HTML.
func Post(d trexim.PostPage) templ.Component {
	lang := d.Meta.Lang
	p := d.Post
	t := p.In(lang)
	ld := trexim.BlogPostingJsonLD(p, lang, d.Site)
	return layout(d.Meta, d.Site, component(func(w *writer) {
		w.raw(`<article class="post"><header><p class="meta">`)
		w.text(p.Emoji + " ")
		if cat, ok := d.Refs.Category(p.Category); ok {
			w.text(cat.Name(lang) + " · ")
		}
		w.text(t.Date)
		w.raw(` · `)
		w.textf(tr(lang, "%d хв читання", "%d min read"), p.ReadTime)
		w.raw(`</p><h1>`)
		w.text(t.Title)
		w.raw(`</h1></header>`)
		if p.ImageURL != "" {
			w.raw(`<img class="cover"`)
			w.attr("src", p.ImageURL)
			w.attr("alt", t.Title)
			w.raw(`>`)
		}
		w.raw(`<div class="content">`)
		w.render(templ.Raw(t.Content))
		w.raw(`</div><ul class="tags">`)
		for _, code := range p.Tags {
			name := code
			if tag, ok := d.Refs.Tag(code); ok {
				name = tag.Name(lang)
			}
			w.raw(`<li><a`)
			w.attr("href", href(lang, "/blog/?tag="+code))
			w.raw(`>#`)
			w.text(name)
			w.raw(`</a></li>`)
		}
		w.raw(`</ul>`)
		ctaButton(w, lang, tr(lang, "Обговорити ваш проєкт", "Discuss your project"), "post")
		w.raw(`</article>`)
		if len(d.Related) > 0 {
			w.raw(`<section class="related"><h2>`)
			w.text(tr(lang, "Схожі статті", "Related articles"))
			w.raw(`</h2>`)
			postGrid(w, d.Related, d.Refs, lang)
			w.raw(`</section>`)
		}
	}), ld)
}

// Page renders a marketing page. The contact and pricing pages carry the
// lead form.
func Page(d trexim.StaticPage) templ.Component {
	lang := d.Meta.Lang
	return layout(d.Meta, d.Site, component(func(w *writer) {
		w.raw(`<h1>`)
		w.text(d.Meta.Title)
		w.raw(`</h1><p class="lead">`)
		intro := pageIntros[d.Slug]
		w.text(tr(lang, intro[0], intro[1]))
		w.raw(`</p>`)
		switch d.Slug {
		case "pricing":
			w.raw(`<div class="plans">`)
			for _, plan := range pricingPlans {
				w.raw(`<div class="plan"><h3>`)
				w.text(tr(lang, plan.UK, plan.EN))
				w.raw(`</h3><a class="cta"`)
				w.attr("href", href(lang, "/contact/?plan="+plan.Code))
				w.raw(` data-track="cta_click"`)
				w.attr("data-track-label", "pricing_"+plan.Code)
				w.raw(`>`)
				w.text(tr(lang, "Замовити", "Request"))
				w.raw(`</a></div>`)
			}
			w.raw(`</div>`)
		case "contact":
			contactForm(w, d, lang)
		default:
			ctaButton(w, lang, tr(lang, "Зв'язатися з нами", "Contact us"), d.Slug)
		}
	}))
}

func contactForm(w *writer, d trexim.StaticPage, lang trexim.Lang) {
	if d.Sent {
		w.raw(`<p class="notice success">`)
		w.text(tr(lang, "Дякуємо! Ми скоро зв'яжемося з вами.", "Thank you! We will be in touch soon."))
		w.raw(`</p>`)
		return
	}
	if d.FormError != "" {
		w.raw(`<p class="notice error" role="alert">`)
		w.text(d.FormError)
		w.raw(`</p>`)
	}
	w.raw(`<form class="contact-form" method="post"`)
	w.attr("action", href(lang, "/contact/"))
	w.raw(`>`)
	csrfField(w, d.CSRFToken)
	w.raw(`<input type="hidden" name="form_type" value="contact">`)
	fields := []struct{ name, typ, uk, en string }{
		{"company", "text", "Компанія", "Company"},
		{"email", "email", "Email", "Email"},
		{"phone", "tel", "Телефон", "Phone"},
	}
	for _, f := range fields {
		w.raw(`<label>`)
		w.text(tr(lang, f.uk, f.en))
		w.raw(`<input`)
		w.attr("type", f.typ)
		w.attr("name", f.name)
		w.raw(` maxlength="255"></label>`)
	}
	w.raw(`<label>`)
	w.text(tr(lang, "Тип запиту", "Request type"))
	w.raw(`<select name="request_type"><option value="">-</option>`)
	for _, plan := range pricingPlans {
		w.raw(`<option`)
		w.attr("value", plan.Code)
		w.raw(`>`)
		w.text(tr(lang, plan.UK, plan.EN))
		w.raw(`</option>`)
	}
	w.raw(`</select></label><label>`)
	w.text(tr(lang, "Повідомлення", "Message"))
	w.raw(`<textarea name="message" rows="5" maxlength="5000"></textarea></label>`)
	w.raw(`<div class="hp" aria-hidden="true"><input type="text" name="website" tabindex="-1" autocomplete="off"></div>`)
	w.raw(`<button type="submit" data-track="form_submit" data-track-label="contact">`)
	w.text(tr(lang, "Надіслати", "Send"))
	w.raw(`</button></form>`)
}

func errorPage(lang trexim.Lang, code, uk, en string) templ.Component {
	return component(func(w *writer) {
		w.raw(`<!DOCTYPE html><html`)
		w.attr("lang", string(lang))
		w.raw(`><head><meta charset="utf-8"><title>`)
		w.text(code)
		w.raw(`</title><link rel="stylesheet" href="/public/styles.css"></head><body class="error-page"><h1>`)
		w.text(code)
		w.raw(`</h1><p>`)
		w.text(tr(lang, uk, en))
		w.raw(`</p><a`)
		w.attr("href", href(lang, "/"))
		w.raw(`>`)
		w.text(tr(lang, "На головну", "Back to home"))
		w.raw(`</a></body></html>`)
	})
}

// NotFound renders the 404 page.
func NotFound(lang trexim.Lang) templ.Component {
	return errorPage(lang, "404", "Сторінку не знайдено.", "Page not found.")
}

// ServerError renders the 500 page.
func ServerError(lang trexim.Lang) templ.Component {
	return errorPage(lang, "500", "Щось пішло не так. Спробуйте пізніше.", "Something went wrong. Please try again later.")
}
