// Package shell renders the application page: a single login or logout
// button depending on the request's authentication state.
package shell

import (
	"html/template"
	"net/http"

	"auth-shell/internal/authctx"
	"auth-shell/internal/logger"

	"github.com/gin-gonic/gin"
)

var page = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>auth-shell</title>
</head>
<body>
<main>
{{- if .IsAuthenticated }}
<form method="post" action="/logout"><button type="submit">logout</button></form>
{{- else }}
<form method="get" action="/login"><button type="submit">login</button></form>
{{- end }}
</main>
</body>
</html>
`))

// Handler serves the shell page. It must run under authctx.Provider.Mount.
func Handler(c *gin.Context) {
	v, err := authctx.FromContext(c.Request.Context())
	if err != nil {
		logger.Error("shell rendered outside provider", nil)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)

	if err := page.Execute(c.Writer, v.State); err != nil {
		logger.FromContext(c.Request.Context()).Error("shell render failed", "error", err)
	}
}
