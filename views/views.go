// Package views is the default markup of the Trexim site, written as
// templ components.
package views

import "github.com/eringen/trexim"

// Default returns the stock ViewFuncs.
func Default() trexim.ViewFuncs {
	return trexim.ViewFuncs{
		Home:            Home,
		Blog:            Blog,
		Post:            Post,
		Page:            Page,
		AdminLogin:      AdminLogin,
		AdminDashboard:  AdminDashboard,
		AdminPostForm:   AdminPostForm,
		AdminReferences: AdminReferences,
		AdminImages:     AdminImages,
		AdminForms:      AdminForms,
		AdminAnalytics:  AdminAnalytics,
		NotFound:        NotFound,
		ServerError:     ServerError,
	}
}
