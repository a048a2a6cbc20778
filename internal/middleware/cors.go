package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// CORS applies rs/cors to gin. An empty origin list allows any origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	opts := cors.Options{
		AllowedOrigins:       allowedOrigins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions, http.MethodPatch},
		AllowedHeaders:       []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:       []string{requestIDHeader},
		AllowCredentials:     true,
		OptionsSuccessStatus: http.StatusNoContent,
	}
	if len(allowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	c := cors.New(opts)

	return func(ctx *gin.Context) {
		// Preflight responses are written by HandlerFunc itself.
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
