package sso

import (
	"html/template"
	"net/http"
)

var deniedTemplate = template.Must(template.New("denied").Parse(`<!DOCTYPE html>
<html>
<head><title>Access denied</title></head>
<body>
<h1>Access denied</h1>
<p>Your sign-in could not be completed. Contact your administrator if you believe this is an error.</p>
<p><a href="{{.LoginURL}}">Try again</a></p>
</body>
</html>
`))

var signedOutTemplate = template.Must(template.New("signedout").Parse(`<!DOCTYPE html>
<html>
<head><title>Signed out</title></head>
<body>
<h1>You have been signed out</h1>
<p><a href="{{.LoginURL}}">Sign in again</a></p>
</body>
</html>
`))

func renderDenied(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	deniedTemplate.Execute(w, struct{ LoginURL string }{LoginURL: SignInPath})
}

func renderSignedOut(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	signedOutTemplate.Execute(w, struct{ LoginURL string }{LoginURL: SignInPath})
}
